// Package matchstore persists match results in SQLite so shows already
// resolved against Trakt are never re-looked-up. Unmatched outcomes are
// stored too; the engine retries those instead of trusting them.
package matchstore
