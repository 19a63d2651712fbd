package matching

import (
	"context"
	"fmt"

	"vikisync/internal/titles"
)

// How many TVDB search results the alias-expansion tier fetches details for.
const aliasScanLimit = 10

// resolveTVDB searches TVDB by title and cross-references the best series
// id to Trakt. TVDB indexes many localized titles that Trakt search misses.
func (e *Engine) resolveTVDB(ctx context.Context, vikiID, title string) *Result {
	if e.tvdb == nil {
		return e.unmatched(vikiID, title, "TVDB not configured")
	}
	if e.trakt == nil {
		return e.unmatched(vikiID, title, "Trakt not configured")
	}

	results, err := e.tvdb.SearchSeries(ctx, title)
	if err != nil {
		return e.unmatched(vikiID, title, fmt.Sprintf("TVDB search failed: %v", err))
	}
	if len(results) == 0 {
		return e.unmatched(vikiID, title, "TVDB no results")
	}

	normQuery := titles.Normalize(title)
	chosen := results[0]
	found := false
	for _, candidate := range results {
		if titles.Normalize(candidate.Name) == normQuery {
			chosen = candidate
			found = true
			break
		}
	}
	// The search index carries inline alternate names; an exact hit there
	// is as trustworthy as a primary-name hit.
	if !found {
	scan:
		for _, candidate := range results {
			for _, alias := range candidate.Aliases {
				if titles.Normalize(alias) == normQuery {
					chosen = candidate
					break scan
				}
			}
		}
	}

	return e.crossReference(ctx, vikiID, title, chosen.TVDBID, 0.95, MethodTVDB)
}

// resolveTVDBAliases goes deeper than resolveTVDB: it fetches the full
// detail record for the top search candidates and tests the primary name
// plus every English alias against the query, exact and article-stripped.
func (e *Engine) resolveTVDBAliases(ctx context.Context, vikiID, title string) *Result {
	if e.tvdb == nil {
		return e.unmatched(vikiID, title, "TVDB not configured")
	}
	if e.trakt == nil {
		return e.unmatched(vikiID, title, "Trakt not configured")
	}

	results, err := e.tvdb.SearchSeries(ctx, title)
	if err != nil {
		return e.unmatched(vikiID, title, fmt.Sprintf("TVDB search failed: %v", err))
	}
	if len(results) == 0 {
		return e.unmatched(vikiID, title, "TVDB no results")
	}
	if len(results) > aliasScanLimit {
		results = results[:aliasScanLimit]
	}

	normQuery := titles.Normalize(title)
	normQueryNoArticle := titles.NormalizeNoArticle(title)

	type candidate struct {
		tvdbID     int64
		confidence float64
		method     string
	}
	var best candidate

scan:
	for _, entry := range results {
		detail, err := e.tvdb.GetSeriesDetail(ctx, entry.TVDBID)
		if err != nil {
			continue
		}

		switch {
		case titles.Normalize(detail.Name) == normQuery:
			best = candidate{detail.TVDBID, 0.95, MethodTVDBAliasPrimary}
			break scan
		case titles.NormalizeNoArticle(detail.Name) == normQueryNoArticle && best.confidence < 0.85:
			best = candidate{detail.TVDBID, 0.85, MethodTVDBAliasPrimaryArticle}
		}

		for _, alias := range detail.Aliases {
			if alias.Language != "eng" || alias.Name == "" {
				continue
			}
			if titles.Normalize(alias.Name) == normQuery {
				best = candidate{detail.TVDBID, 0.92, MethodTVDBAliasMatch}
				break
			}
			if titles.NormalizeNoArticle(alias.Name) == normQueryNoArticle && best.confidence < 0.82 {
				best = candidate{detail.TVDBID, 0.82, MethodTVDBAliasMatchArticle}
			}
		}

		// An alias-exact hit is strong enough to stop scanning further
		// candidates; only an exact primary name could beat it.
		if best.confidence >= 0.92 {
			break
		}
	}

	if best.tvdbID == 0 {
		return e.unmatched(vikiID, title, "no TVDB alias matched")
	}
	return e.crossReference(ctx, vikiID, title, best.tvdbID, best.confidence, best.method)
}

// crossReference maps a TVDB series id onto Trakt. If Trakt has no entry
// for the id, the whole tier reports unmatched.
func (e *Engine) crossReference(ctx context.Context, vikiID, title string, tvdbID int64, confidence float64, method string) *Result {
	show, err := e.trakt.GetShowByTVDB(ctx, tvdbID)
	if err != nil {
		return e.unmatched(vikiID, title, fmt.Sprintf("Trakt lookup for TVDB id %d failed: %v", tvdbID, err))
	}
	if show.IDs.Trakt == 0 {
		return e.unmatched(vikiID, title, fmt.Sprintf("Trakt show for TVDB id %d missing ids", tvdbID))
	}
	return &Result{
		VikiID:      vikiID,
		SourceTitle: title,
		TraktID:     show.IDs.Trakt,
		TraktSlug:   show.IDs.Slug,
		TraktTitle:  show.Title,
		TVDBID:      tvdbID,
		Confidence:  confidence,
		Method:      method,
		MatchedAt:   e.now().UTC(),
	}
}
