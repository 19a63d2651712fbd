// Package services holds the glue shared by the external API clients:
// sentinel errors for failure classification and an HTTP helper that retries
// transient failures with bounded exponential backoff.
//
// Each external collaborator (Viki, Trakt, TVDB, MyDramaList) lives in its
// own subpackage and parses responses into typed values at the boundary so
// matching tiers never see raw JSON shapes.
package services
