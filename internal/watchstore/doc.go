// Package watchstore is the local record of what the user watched on Viki:
// shows, per-episode watch progress, sync bookkeeping, and the incremental
// fetch timestamp for the watch markers endpoint.
package watchstore
