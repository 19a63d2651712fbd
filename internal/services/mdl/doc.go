// Package mdl scrapes mydramalist.com for alternate English titles and
// Viki cross-links. It backs the last-resort matching tier for shows whose
// localized titles never appear in Trakt or TVDB search results.
package mdl
