// Package tvdb is a typed client for the TVDB v4 API. It handles bearer
// token acquisition transparently and exposes the series search and detail
// lookups the TVDB matching tiers rely on.
package tvdb
