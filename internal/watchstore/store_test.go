package watchstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"vikisync/internal/watchstore"
)

func openStore(t *testing.T) *watchstore.Store {
	t.Helper()
	store, err := watchstore.OpenPath(filepath.Join(t.TempDir(), "watch.db"), 0.9)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertShowPreservesFirstSeen(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.UpsertShow(ctx, watchstore.Show{VikiID: "36782c", Title: "First Love Again", Type: "series"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}
	first, err := store.GetShow(ctx, "36782c")
	if err != nil {
		t.Fatalf("GetShow failed: %v", err)
	}

	// Update with a new origin but empty title; title must survive.
	if err := store.UpsertShow(ctx, watchstore.Show{VikiID: "36782c", OriginCountry: "kr"}); err != nil {
		t.Fatalf("second UpsertShow failed: %v", err)
	}
	updated, err := store.GetShow(ctx, "36782c")
	if err != nil {
		t.Fatalf("GetShow after update failed: %v", err)
	}
	if updated.Title != "First Love Again" || updated.OriginCountry != "kr" {
		t.Fatalf("update clobbered fields: %+v", updated)
	}
	if !updated.FirstSeenAt.Equal(first.FirstSeenAt) {
		t.Fatalf("first_seen_at must be preserved: %v vs %v", first.FirstSeenAt, updated.FirstSeenAt)
	}
	if !updated.LastFetchedAt.After(first.LastFetchedAt) && !updated.LastFetchedAt.Equal(first.LastFetchedAt) {
		t.Fatalf("last_fetched_at should advance: %v vs %v", first.LastFetchedAt, updated.LastFetchedAt)
	}
}

func TestEpisodeProgressComputation(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.UpsertShow(ctx, watchstore.Show{VikiID: "1c", Title: "Show"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}

	cases := []struct {
		name     string
		episode  watchstore.Episode
		percent  float64
		watched  bool
	}{
		{
			name:    "past credits marker",
			episode: watchstore.Episode{VikiVideoID: "1v", VikiID: "1c", EpisodeNumber: 1, Duration: 3600, WatchedSeconds: 3450, CreditsMarker: 3400},
			percent: 95.83333333333334,
			watched: true,
		},
		{
			name:    "past completion threshold without credits marker",
			episode: watchstore.Episode{VikiVideoID: "2v", VikiID: "1c", EpisodeNumber: 2, Duration: 3600, WatchedSeconds: 3240},
			percent: 90,
			watched: true,
		},
		{
			name:    "halfway",
			episode: watchstore.Episode{VikiVideoID: "3v", VikiID: "1c", EpisodeNumber: 3, Duration: 3600, WatchedSeconds: 1800, CreditsMarker: 3400},
			percent: 50,
			watched: false,
		},
		{
			name:    "zero duration never watched",
			episode: watchstore.Episode{VikiVideoID: "4v", VikiID: "1c", EpisodeNumber: 4, WatchedSeconds: 1200},
			percent: 0,
			watched: false,
		},
	}

	for _, tc := range cases {
		if err := store.UpsertEpisode(ctx, tc.episode); err != nil {
			t.Fatalf("%s: UpsertEpisode failed: %v", tc.name, err)
		}
		got, err := store.GetEpisode(ctx, tc.episode.VikiVideoID)
		if err != nil {
			t.Fatalf("%s: GetEpisode failed: %v", tc.name, err)
		}
		if got.IsWatched != tc.watched {
			t.Errorf("%s: is_watched=%v, want %v", tc.name, got.IsWatched, tc.watched)
		}
		if diff := got.ProgressPercent - tc.percent; diff > 0.001 || diff < -0.001 {
			t.Errorf("%s: progress=%v, want %v", tc.name, got.ProgressPercent, tc.percent)
		}
	}
}

func TestUpsertEpisodeWithoutMetadataKeepsWatchState(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.UpsertShow(ctx, watchstore.Show{VikiID: "1c", Title: "Show"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}
	if err := store.UpsertEpisode(ctx, watchstore.Episode{
		VikiVideoID: "1v", VikiID: "1c", EpisodeNumber: 1,
		Duration: 3600, WatchedSeconds: 3500, CreditsMarker: 3400,
	}); err != nil {
		t.Fatalf("UpsertEpisode failed: %v", err)
	}

	// A marker refresh with no episode metadata must derive from the
	// stored duration, not the incoming zero.
	if err := store.UpsertEpisode(ctx, watchstore.Episode{
		VikiVideoID: "1v", VikiID: "1c", WatchedSeconds: 3500,
	}); err != nil {
		t.Fatalf("metadata-less UpsertEpisode failed: %v", err)
	}

	got, err := store.GetEpisode(ctx, "1v")
	if err != nil {
		t.Fatalf("GetEpisode failed: %v", err)
	}
	if got.Duration != 3600 || got.EpisodeNumber != 1 || got.CreditsMarker != 3400 {
		t.Fatalf("stored metadata regressed: %+v", got)
	}
	if !got.IsWatched {
		t.Fatal("episode must stay watched after metadata-less update")
	}
	if diff := got.ProgressPercent - 97.22222222222223; diff > 0.001 || diff < -0.001 {
		t.Fatalf("progress must derive from stored duration, got %v", got.ProgressPercent)
	}

	unsynced, err := store.UnsyncedEpisodes(ctx)
	if err != nil {
		t.Fatalf("UnsyncedEpisodes failed: %v", err)
	}
	if len(unsynced) != 1 {
		t.Fatalf("watched episode must stay pending sync, got %d", len(unsynced))
	}
}

func TestUnsyncedAndMarkSynced(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.UpsertShow(ctx, watchstore.Show{VikiID: "1c", Title: "Show"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}
	episodes := []watchstore.Episode{
		{VikiVideoID: "1v", VikiID: "1c", EpisodeNumber: 1, Duration: 100, WatchedSeconds: 100},
		{VikiVideoID: "2v", VikiID: "1c", EpisodeNumber: 2, Duration: 100, WatchedSeconds: 95},
		{VikiVideoID: "3v", VikiID: "1c", EpisodeNumber: 3, Duration: 100, WatchedSeconds: 10},
	}
	for _, episode := range episodes {
		if err := store.UpsertEpisode(ctx, episode); err != nil {
			t.Fatalf("UpsertEpisode %s failed: %v", episode.VikiVideoID, err)
		}
	}

	unsynced, err := store.UnsyncedEpisodes(ctx)
	if err != nil {
		t.Fatalf("UnsyncedEpisodes failed: %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("expected 2 watched unsynced episodes, got %d", len(unsynced))
	}

	sessionID, err := store.LogSync(ctx, watchstore.SyncLogEntry{Operation: "sync", EpisodesSynced: 2})
	if err != nil {
		t.Fatalf("LogSync failed: %v", err)
	}
	if err := store.MarkSynced(ctx, []string{"1v", "2v"}, sessionID); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	unsynced, err = store.UnsyncedEpisodes(ctx)
	if err != nil {
		t.Fatalf("UnsyncedEpisodes after mark failed: %v", err)
	}
	if len(unsynced) != 0 {
		t.Fatalf("expected no unsynced episodes, got %d", len(unsynced))
	}

	reverted, err := store.UndoSync(ctx, sessionID)
	if err != nil {
		t.Fatalf("UndoSync failed: %v", err)
	}
	if reverted != 2 {
		t.Fatalf("expected 2 episodes reverted, got %d", reverted)
	}
	unsynced, err = store.UnsyncedEpisodes(ctx)
	if err != nil {
		t.Fatalf("UnsyncedEpisodes after undo failed: %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("undo should restore pending episodes, got %d", len(unsynced))
	}
}

func TestWatchMarkersTimestampDefaultsToOne(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if ts := store.LastWatchMarkersTimestamp(ctx); ts != 1 {
		t.Fatalf("fresh store must default to 1 (full history), got %d", ts)
	}
	if err := store.SetLastWatchMarkersTimestamp(ctx, 1768474054); err != nil {
		t.Fatalf("SetLastWatchMarkersTimestamp failed: %v", err)
	}
	if ts := store.LastWatchMarkersTimestamp(ctx); ts != 1768474054 {
		t.Fatalf("expected stored timestamp, got %d", ts)
	}
}

func TestLastSyncAndStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.LastSync(ctx); !errors.Is(err, watchstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty log, got %v", err)
	}

	if _, err := store.LogSync(ctx, watchstore.SyncLogEntry{Operation: "sync", ShowsProcessed: 3, EpisodesSynced: 7, Status: "success"}); err != nil {
		t.Fatalf("LogSync failed: %v", err)
	}
	last, err := store.LastSync(ctx)
	if err != nil {
		t.Fatalf("LastSync failed: %v", err)
	}
	if last.Operation != "sync" || last.EpisodesSynced != 7 {
		t.Fatalf("unexpected log entry: %+v", last)
	}

	if err := store.UpsertShow(ctx, watchstore.Show{VikiID: "1c", Title: "Show"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}
	if err := store.UpsertEpisode(ctx, watchstore.Episode{VikiVideoID: "1v", VikiID: "1c", Duration: 100, WatchedSeconds: 100}); err != nil {
		t.Fatalf("UpsertEpisode failed: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalShows != 1 || stats.WatchedEpisodes != 1 || stats.PendingSync != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
