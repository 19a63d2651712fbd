package matching

import (
	"context"
	"fmt"
	"strings"

	"vikisync/internal/services/trakt"
	"vikisync/internal/titles"
)

// resolveExact is the first and cheapest tier: a Trakt text search graded by
// how exactly the winning candidate's title or slug matches the query, with
// direct slug probes as a safety net for shows the search index misses.
func (e *Engine) resolveExact(ctx context.Context, vikiID, title string) *Result {
	if e.trakt == nil {
		return e.unmatched(vikiID, title, "Trakt not configured")
	}

	results, err := e.trakt.SearchShows(ctx, title)
	if err != nil {
		return e.unmatched(vikiID, title, fmt.Sprintf("Trakt search failed: %v", err))
	}
	if len(results) == 0 {
		return e.unmatched(vikiID, title, "")
	}

	normQuery := titles.Normalize(title)
	normQueryNoArticle := titles.NormalizeNoArticle(title)
	slugQuery := titles.Slugify(title)
	slugQueryNoArticle := titles.Slugify(titles.StripArticle(title))

	var chosen, articleCandidate *trakt.Show
	matchedViaArticle := false

	// One pass: exact normalized title wins outright, article-stripped
	// equality is remembered as a fallback.
	for i := range results {
		show := &results[i].Show
		if titles.Normalize(show.Title) == normQuery {
			chosen = show
			break
		}
		if articleCandidate == nil && titles.NormalizeNoArticle(show.Title) == normQueryNoArticle {
			articleCandidate = show
		}
	}
	if chosen == nil && articleCandidate != nil {
		chosen = articleCandidate
		matchedViaArticle = true
	}

	// Slug prefix handles year-suffixed slugs like my-youth-2025.
	if chosen == nil {
		for i := range results {
			if strings.HasPrefix(results[i].Show.IDs.Slug, slugQuery) {
				chosen = &results[i].Show
				break
			}
		}
	}
	if chosen == nil && slugQueryNoArticle != slugQuery {
		for i := range results {
			if strings.HasPrefix(results[i].Show.IDs.Slug, slugQueryNoArticle) {
				chosen = &results[i].Show
				matchedViaArticle = true
				break
			}
		}
	}

	if chosen == nil {
		if result := e.probeSlugs(ctx, vikiID, title, slugQuery); result != nil {
			return result
		}
		// Last resort: trust the search ranking.
		chosen = &results[0].Show
	}

	confidence := 0.8
	method := MethodExactTraktFirst
	switch {
	case titles.Normalize(chosen.Title) == normQuery || strings.HasPrefix(chosen.IDs.Slug, slugQuery):
		confidence = 1.0
		method = MethodExactTrakt
	case matchedViaArticle ||
		titles.NormalizeNoArticle(chosen.Title) == normQueryNoArticle ||
		strings.HasPrefix(chosen.IDs.Slug, slugQueryNoArticle):
		confidence = 0.9
		method = MethodExactTraktArticle
	}

	return &Result{
		VikiID:      vikiID,
		SourceTitle: title,
		TraktID:     chosen.IDs.Trakt,
		TraktSlug:   chosen.IDs.Slug,
		TraktTitle:  chosen.Title,
		Confidence:  confidence,
		Method:      method,
		MatchedAt:   e.now().UTC(),
	}
}

// probeSlugs tries the slugified query and year-suffixed variants directly
// against the by-slug endpoint. Airing years drift between catalogs, so the
// previous and next year are probed alongside the current one.
func (e *Engine) probeSlugs(ctx context.Context, vikiID, title, slugQuery string) *Result {
	if slugQuery == "" {
		return nil
	}
	year := e.now().Year()
	candidates := []string{
		slugQuery,
		fmt.Sprintf("%s-%d", slugQuery, year),
		fmt.Sprintf("%s-%d", slugQuery, year-1),
		fmt.Sprintf("%s-%d", slugQuery, year+1),
	}
	for _, slug := range candidates {
		show, err := e.trakt.GetShowBySlug(ctx, slug)
		if err != nil || show == nil || show.IDs.Trakt == 0 {
			continue
		}
		return &Result{
			VikiID:      vikiID,
			SourceTitle: title,
			TraktID:     show.IDs.Trakt,
			TraktSlug:   show.IDs.Slug,
			TraktTitle:  show.Title,
			Confidence:  1.0,
			Method:      MethodSlugLookup,
			MatchedAt:   e.now().UTC(),
		}
	}
	return nil
}
