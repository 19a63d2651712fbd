package matching

import "time"

// Match methods, in rough order of trust. The method records which tier
// produced a result so cached entries stay auditable.
const (
	MethodCache                   = "cache"
	MethodExactTrakt              = "exact_trakt"
	MethodExactTraktArticle       = "exact_trakt_article"
	MethodExactTraktFirst         = "exact_trakt_first"
	MethodSlugLookup              = "slug_lookup"
	MethodTVDB                    = "tvdb"
	MethodTVDBAliasPrimary        = "tvdb_alias_primary"
	MethodTVDBAliasPrimaryArticle = "tvdb_alias_primary_article"
	MethodTVDBAliasMatch          = "tvdb_alias_match"
	MethodTVDBAliasMatchArticle   = "tvdb_alias_match_article"
	MethodMDL                     = "mdl"
	MethodManual                  = "manual"
	MethodNoMatch                 = "no_match"
)

// Show is the engine's input: a source show identity with its localized
// titles. Callers construct one per match call.
type Show struct {
	VikiID         string
	Titles         map[string]string
	OriginCountry  string
	OriginLanguage string
}

// Result is the outcome of resolving one show against Trakt. Zero TraktID
// means unmatched; Confidence grades how much the match can be trusted.
type Result struct {
	VikiID      string
	SourceTitle string
	TraktID     int64
	TraktSlug   string
	TraktTitle  string
	TVDBID      int64
	Confidence  float64
	Method      string
	Notes       string
	MatchedAt   time.Time
	UpdatedAt   time.Time
}

// IsMatched reports whether the result points at a Trakt show with nonzero
// confidence. A TraktID with zero confidence is never produced.
func (r *Result) IsMatched() bool {
	return r != nil && r.TraktID != 0 && r.Confidence > 0
}
