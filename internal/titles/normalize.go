package titles

import "strings"

// Normalize lowercases a title and collapses every run of non-alphanumeric
// characters to a single space, trimming the result. Two titles that differ
// only in punctuation or casing normalize to the same string.
func Normalize(value string) string {
	return collapse(value, ' ')
}

// NormalizeNoArticle returns Normalize(value) with a single leading English
// article ("the", "a", "an") removed.
func NormalizeNoArticle(value string) string {
	return StripArticle(Normalize(value))
}

// Slugify lowercases a title and collapses non-alphanumeric runs to single
// hyphens, trimming leading and trailing hyphens. Matches the slug scheme the
// tracking platform derives from titles.
func Slugify(value string) string {
	return collapse(value, '-')
}

// StripArticle removes one leading "the ", "a ", or "an " from an
// already-normalized string.
func StripArticle(normalized string) string {
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(normalized, article) {
			return normalized[len(article):]
		}
	}
	return normalized
}

func collapse(value string, sep byte) string {
	var b strings.Builder
	b.Grow(len(value))
	pendingSep := false
	for _, r := range strings.ToLower(value) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte(sep)
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
