// Command vikisync syncs Viki watch history to Trakt. It fetches watch
// markers from Viki, stores watch progress locally, matches shows to Trakt
// through a tiered lookup ladder, and pushes watched episodes to Trakt
// history.
package main
