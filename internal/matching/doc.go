// Package matching resolves Viki shows to Trakt shows.
//
// Resolution runs through a fixed ladder of tiers, each cheaper and more
// trustworthy than the next: a Trakt text search graded by normalized-title
// and slug equality, a TVDB cross-reference, a deeper TVDB alias scan, and
// finally a community alias site. Each tier has its own acceptance
// threshold; the first tier to clear its threshold wins and the outcome is
// persisted so repeat calls are served from cache. A weak exact-search hit
// is only accepted after every other tier has failed.
package matching
