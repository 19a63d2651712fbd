package titles

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Select picks the title used as the matching query from a localized title
// map. English-tagged entries win (any region variant, so "en", "en-US", and
// "en-us" all qualify); otherwise the first entry by sorted language tag is
// used; an empty map yields a synthesized placeholder carrying the show id.
func Select(localized map[string]string, id string) string {
	if len(localized) == 0 {
		return fmt.Sprintf("Unknown (%s)", id)
	}

	keys := make([]string, 0, len(localized))
	for key := range localized {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if isEnglish(key) && strings.TrimSpace(localized[key]) != "" {
			return localized[key]
		}
	}
	for _, key := range keys {
		if strings.TrimSpace(localized[key]) != "" {
			return localized[key]
		}
	}
	return fmt.Sprintf("Unknown (%s)", id)
}

func isEnglish(tag string) bool {
	parsed, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return false
	}
	base, _ := parsed.Base()
	return base.String() == "en"
}
