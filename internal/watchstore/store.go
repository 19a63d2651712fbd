package watchstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"vikisync/internal/config"
)

// ErrNotFound indicates a show or episode is not in the store.
var ErrNotFound = errors.New("not found")

const metaLastMarkersKey = "last_watch_markers_timestamp"

// Store persists shows, episodes, and sync bookkeeping in SQLite. Watch
// completeness is derived at write time: an episode counts as watched once
// playback reaches the credits marker or the completion threshold of its
// duration.
type Store struct {
	db                *sql.DB
	path              string
	completeThreshold float64
}

// Show is one Viki show row.
type Show struct {
	VikiID         string
	Title          string
	Type           string
	OriginCountry  string
	OriginLanguage string
	FirstSeenAt    time.Time
	LastFetchedAt  time.Time
}

// Episode is one Viki episode row with derived watch state.
type Episode struct {
	VikiVideoID     string
	VikiID          string
	EpisodeNumber   int
	Duration        int64
	WatchedSeconds  int64
	CreditsMarker   int64
	ProgressPercent float64
	IsWatched       bool
	LastWatchedAt   time.Time
	SyncedToTrakt   bool
	SyncedAt        time.Time
}

// Open initializes or connects to the watch database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "watch.db"), cfg.Sync.CompleteThreshold)
}

// OpenPath opens the store at an explicit path. Tests use this directly.
func OpenPath(dbPath string, completeThreshold float64) (*Store, error) {
	if completeThreshold <= 0 || completeThreshold > 1 {
		completeThreshold = 0.9
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, completeThreshold: completeThreshold}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertShow creates or updates a show. first_seen_at is preserved on
// update; empty fields never overwrite existing values.
func (s *Store) UpsertShow(ctx context.Context, show Show) error {
	if show.VikiID == "" {
		return errors.New("show must carry a viki id")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shows (viki_id, title, type, origin_country, origin_language, first_seen_at, last_fetched_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(viki_id) DO UPDATE SET
            title = COALESCE(NULLIF(excluded.title, ''), shows.title),
            type = COALESCE(NULLIF(excluded.type, ''), shows.type),
            origin_country = COALESCE(NULLIF(excluded.origin_country, ''), shows.origin_country),
            origin_language = COALESCE(NULLIF(excluded.origin_language, ''), shows.origin_language),
            last_fetched_at = excluded.last_fetched_at`,
		show.VikiID, show.Title, show.Type, show.OriginCountry, show.OriginLanguage, now, now)
	if err != nil {
		return fmt.Errorf("upsert show: %w", err)
	}
	return nil
}

// GetShow returns a show by Viki id.
func (s *Store) GetShow(ctx context.Context, vikiID string) (*Show, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT viki_id, COALESCE(title, ''), COALESCE(type, ''),
                COALESCE(origin_country, ''), COALESCE(origin_language, ''),
                first_seen_at, last_fetched_at
         FROM shows WHERE viki_id = ?`, vikiID)

	var show Show
	var firstSeen, lastFetched string
	err := row.Scan(&show.VikiID, &show.Title, &show.Type, &show.OriginCountry,
		&show.OriginLanguage, &firstSeen, &lastFetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: show %s", ErrNotFound, vikiID)
	}
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	show.FirstSeenAt = parseTime(firstSeen)
	show.LastFetchedAt = parseTime(lastFetched)
	return &show, nil
}

// ListShows returns all shows ordered by title.
func (s *Store) ListShows(ctx context.Context) ([]*Show, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT viki_id, COALESCE(title, ''), COALESCE(type, ''),
                COALESCE(origin_country, ''), COALESCE(origin_language, ''),
                first_seen_at, last_fetched_at
         FROM shows ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []*Show
	for rows.Next() {
		var show Show
		var firstSeen, lastFetched string
		if err := rows.Scan(&show.VikiID, &show.Title, &show.Type, &show.OriginCountry,
			&show.OriginLanguage, &firstSeen, &lastFetched); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		show.FirstSeenAt = parseTime(firstSeen)
		show.LastFetchedAt = parseTime(lastFetched)
		shows = append(shows, &show)
	}
	return shows, rows.Err()
}

// UpsertEpisode creates or updates an episode, recomputing progress and
// watch state from the supplied marker data.
func (s *Store) UpsertEpisode(ctx context.Context, episode Episode) error {
	if episode.VikiVideoID == "" || episode.VikiID == "" {
		return errors.New("episode must carry video and show ids")
	}

	// A watch-marker refresh may arrive without episode metadata. Merge the
	// stored number, duration, and credits marker first so the derived
	// columns are always computed from the best-known values; otherwise a
	// metadata-less update would reset a watched episode to unwatched.
	var (
		storedNumber      int
		storedDuration    int64
		storedCredits     int64
		storedLastWatched sql.NullString
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(episode_number, 0), COALESCE(duration, 0), COALESCE(credits_marker, 0), last_watched_at
         FROM episodes WHERE viki_video_id = ?`, episode.VikiVideoID)
	switch err := row.Scan(&storedNumber, &storedDuration, &storedCredits, &storedLastWatched); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read episode for upsert: %w", err)
	default:
		if episode.EpisodeNumber <= 0 {
			episode.EpisodeNumber = storedNumber
		}
		if episode.Duration <= 0 {
			episode.Duration = storedDuration
		}
		if episode.CreditsMarker <= 0 {
			episode.CreditsMarker = storedCredits
		}
		if episode.LastWatchedAt.IsZero() && storedLastWatched.Valid {
			episode.LastWatchedAt = parseTime(storedLastWatched.String)
		}
	}

	var progress float64
	watched := false
	if episode.Duration > 0 {
		progress = float64(episode.WatchedSeconds) / float64(episode.Duration) * 100
		credits := episode.CreditsMarker
		if credits <= 0 {
			credits = episode.Duration
		}
		watched = episode.WatchedSeconds >= credits ||
			float64(episode.WatchedSeconds) >= float64(episode.Duration)*s.completeThreshold
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (
            viki_video_id, viki_id, episode_number, duration, watched_seconds,
            credits_marker, progress_percent, is_watched, last_watched_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(viki_video_id) DO UPDATE SET
            episode_number = excluded.episode_number,
            duration = excluded.duration,
            watched_seconds = excluded.watched_seconds,
            credits_marker = excluded.credits_marker,
            progress_percent = excluded.progress_percent,
            is_watched = excluded.is_watched,
            last_watched_at = excluded.last_watched_at`,
		episode.VikiVideoID, episode.VikiID, episode.EpisodeNumber, episode.Duration,
		episode.WatchedSeconds, episode.CreditsMarker, progress, watched,
		nullableTime(episode.LastWatchedAt))
	if err != nil {
		return fmt.Errorf("upsert episode: %w", err)
	}
	return nil
}

// GetEpisode returns an episode by Viki video id.
func (s *Store) GetEpisode(ctx context.Context, vikiVideoID string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, episodeSelect+` WHERE viki_video_id = ?`, vikiVideoID)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: episode %s", ErrNotFound, vikiVideoID)
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// ListShowEpisodes returns a show's episodes ordered by number.
func (s *Store) ListShowEpisodes(ctx context.Context, vikiID string) ([]*Episode, error) {
	return s.listEpisodes(ctx, episodeSelect+` WHERE viki_id = ? ORDER BY episode_number`, vikiID)
}

// UnsyncedEpisodes returns watched episodes not yet pushed to Trakt,
// limited to shows present in the store.
func (s *Store) UnsyncedEpisodes(ctx context.Context) ([]*Episode, error) {
	return s.listEpisodes(ctx,
		episodeSelect+` WHERE is_watched = 1 AND synced_to_trakt = 0 ORDER BY viki_id, episode_number`)
}

// MarkSynced flags episodes as pushed to Trakt under one sync session.
func (s *Store) MarkSynced(ctx context.Context, videoIDs []string, sessionID int64) error {
	if len(videoIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark synced tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, videoID := range videoIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE episodes SET synced_to_trakt = 1, synced_at = ?, sync_session_id = ?
             WHERE viki_video_id = ?`, now, sessionID, videoID); err != nil {
			return fmt.Errorf("mark episode %s synced: %w", videoID, err)
		}
	}
	return tx.Commit()
}

// UndoSync clears the synced flag for every episode in a sync session.
func (s *Store) UndoSync(ctx context.Context, sessionID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET synced_to_trakt = 0, synced_at = NULL, sync_session_id = NULL
         WHERE sync_session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("undo sync session %d: %w", sessionID, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// SyncLogEntry is one row of the sync audit log.
type SyncLogEntry struct {
	ID             int64
	Operation      string
	ShowsProcessed int
	EpisodesSynced int
	Status         string
	Notes          string
	CreatedAt      time.Time
}

// LogSync appends a sync log entry and returns its id.
func (s *Store) LogSync(ctx context.Context, entry SyncLogEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (operation, shows_processed, episodes_synced, status, notes, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Operation, entry.ShowsProcessed, entry.EpisodesSynced, entry.Status,
		entry.Notes, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("log sync: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// LastSync returns the most recent sync log entry, or ErrNotFound.
func (s *Store) LastSync(ctx context.Context) (*SyncLogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, shows_processed, episodes_synced, status, COALESCE(notes, ''), created_at
         FROM sync_log ORDER BY id DESC LIMIT 1`)

	var entry SyncLogEntry
	var createdAt string
	err := row.Scan(&entry.ID, &entry.Operation, &entry.ShowsProcessed,
		&entry.EpisodesSynced, &entry.Status, &entry.Notes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no sync log entries", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("last sync: %w", err)
	}
	entry.CreatedAt = parseTime(createdAt)
	return &entry, nil
}

// LastWatchMarkersTimestamp returns the timestamp of the last marker fetch.
// Defaults to 1 so a fresh database always fetches complete history.
func (s *Store) LastWatchMarkersTimestamp(ctx context.Context) int64 {
	value, err := s.getMetadata(ctx, metaLastMarkersKey)
	if err != nil {
		return 1
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ts < 1 {
		return 1
	}
	return ts
}

// SetLastWatchMarkersTimestamp stores the timestamp for the next
// incremental marker fetch.
func (s *Store) SetLastWatchMarkersTimestamp(ctx context.Context, ts int64) error {
	return s.setMetadata(ctx, metaLastMarkersKey, strconv.FormatInt(ts, 10))
}

// Stats summarizes the watch database.
type Stats struct {
	TotalShows      int
	TotalEpisodes   int
	WatchedEpisodes int
	SyncedEpisodes  int
	PendingSync     int
}

// Stats aggregates counts for status reporting.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	row := s.db.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(1) FROM shows),
            COUNT(1),
            SUM(CASE WHEN is_watched = 1 THEN 1 ELSE 0 END),
            SUM(CASE WHEN synced_to_trakt = 1 THEN 1 ELSE 0 END)
        FROM episodes`)
	var watched, synced sql.NullInt64
	if err := row.Scan(&stats.TotalShows, &stats.TotalEpisodes, &watched, &synced); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	stats.WatchedEpisodes = int(watched.Int64)
	stats.SyncedEpisodes = int(synced.Int64)
	stats.PendingSync = stats.WatchedEpisodes - stats.SyncedEpisodes
	return stats, nil
}

func (s *Store) getMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: metadata %s", ErrNotFound, key)
	}
	return value, err
}

func (s *Store) setMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_metadata (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

const episodeSelect = `
    SELECT viki_video_id, viki_id, COALESCE(episode_number, 0), COALESCE(duration, 0),
           COALESCE(watched_seconds, 0), COALESCE(credits_marker, 0),
           COALESCE(progress_percent, 0), is_watched, last_watched_at,
           synced_to_trakt, synced_at
    FROM episodes`

func (s *Store) listEpisodes(ctx context.Context, query string, args ...any) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (*Episode, error) {
	var episode Episode
	var lastWatched, syncedAt sql.NullString
	if err := row.Scan(
		&episode.VikiVideoID, &episode.VikiID, &episode.EpisodeNumber, &episode.Duration,
		&episode.WatchedSeconds, &episode.CreditsMarker, &episode.ProgressPercent,
		&episode.IsWatched, &lastWatched, &episode.SyncedToTrakt, &syncedAt,
	); err != nil {
		return nil, err
	}
	if lastWatched.Valid {
		episode.LastWatchedAt = parseTime(lastWatched.String)
	}
	if syncedAt.Valid {
		episode.SyncedAt = parseTime(syncedAt.String)
	}
	return &episode, nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
