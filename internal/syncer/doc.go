// Package syncer orchestrates the watch-status-first sync: fetch watch
// markers from Viki, persist shows and episodes locally, resolve each show
// to Trakt through the matching engine, and push watched episodes to Trakt
// history. Runs are serialized per data directory with a file lock.
package syncer
