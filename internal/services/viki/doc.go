// Package viki is a client for the two Viki surfaces the sync needs: the
// cookie-authenticated website endpoint that returns the user's watch
// markers, and the public v4 API for container and episode metadata.
package viki
