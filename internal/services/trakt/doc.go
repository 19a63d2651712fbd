// Package trakt is a typed client for the Trakt v2 API covering the
// endpoints the matcher and syncer need: text search, slug probes, TVDB
// cross-reference lookups, and history submission.
package trakt
