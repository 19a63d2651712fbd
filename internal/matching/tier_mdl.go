package matching

import (
	"context"
	"fmt"
)

// resolveMDL is the last-resort tier for shows whose Viki title appears in
// no catalog: the alias site supplies community-curated English titles,
// each of which is tried through TVDB into Trakt. Confidence drops with
// every alias tried since later aliases are less canonical.
func (e *Engine) resolveMDL(ctx context.Context, vikiID, title string) *Result {
	if e.aliases == nil {
		return e.unmatched(vikiID, title, "alias lookup not configured")
	}
	if e.tvdb == nil {
		return e.unmatched(vikiID, title, "TVDB not configured")
	}
	if e.trakt == nil {
		return e.unmatched(vikiID, title, "Trakt not configured")
	}

	aliases, err := e.aliases.SearchAliases(ctx, title)
	if err != nil {
		return e.unmatched(vikiID, title, fmt.Sprintf("alias lookup failed: %v", err))
	}
	if len(aliases.EnglishAliases) == 0 {
		return e.unmatched(vikiID, title, "no English aliases found")
	}

	for i, alias := range aliases.EnglishAliases {
		confidence := 0.95 - float64(i)*0.03
		if confidence <= 0 {
			break
		}

		results, err := e.tvdb.SearchSeries(ctx, alias)
		if err != nil || len(results) == 0 {
			continue
		}
		tvdbID := results[0].TVDBID
		if tvdbID == 0 {
			continue
		}

		show, err := e.trakt.GetShowByTVDB(ctx, tvdbID)
		if err != nil || show.IDs.Trakt == 0 {
			continue
		}

		return &Result{
			VikiID:      vikiID,
			SourceTitle: title,
			TraktID:     show.IDs.Trakt,
			TraktSlug:   show.IDs.Slug,
			TraktTitle:  show.Title,
			TVDBID:      tvdbID,
			Confidence:  confidence,
			Method:      MethodMDL,
			MatchedAt:   e.now().UTC(),
		}
	}
	return e.unmatched(vikiID, title, "no alias resolved to a Trakt show")
}
