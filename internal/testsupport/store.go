package testsupport

import (
	"testing"

	"vikisync/internal/config"
	"vikisync/internal/matchstore"
	"vikisync/internal/watchstore"
)

// MustOpenMatchStore opens a match store for tests and registers cleanup.
func MustOpenMatchStore(t testing.TB, cfg *config.Config) *matchstore.Store {
	t.Helper()

	store, err := matchstore.Open(cfg)
	if err != nil {
		t.Fatalf("matchstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenWatchStore opens a watch store for tests and registers cleanup.
func MustOpenWatchStore(t testing.TB, cfg *config.Config) *watchstore.Store {
	t.Helper()

	store, err := watchstore.Open(cfg)
	if err != nil {
		t.Fatalf("watchstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
