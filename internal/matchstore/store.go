package matchstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vikisync/internal/config"
	"vikisync/internal/matching"
)

// ErrNotFound indicates no cached result exists for a show.
var ErrNotFound = errors.New("match result not found")

// Store persists match results in SQLite, one row per Viki show.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the match cache database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "matches.db"))
}

// OpenPath opens the store at an explicit path. Tests use this directly.
func OpenPath(dbPath string) (*Store, error) {
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

	store := &Store{db: db, path: dbPath}
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

// Get returns the cached result for a show, or ErrNotFound.
func (s *Store) Get(ctx context.Context, vikiID string) (*matching.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT viki_id, source_title, trakt_id, trakt_slug, trakt_title, tvdb_id,
                confidence, method, notes, matched_at, updated_at
         FROM match_results WHERE viki_id = ?`, vikiID)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, vikiID)
	}
	if err != nil {
		return nil, fmt.Errorf("get match result: %w", err)
	}
	return result, nil
}

// Save writes a result, overwriting any previous entry for the same show.
func (s *Store) Save(ctx context.Context, result *matching.Result) error {
	if result == nil || result.VikiID == "" {
		return errors.New("result must carry a viki id")
	}
	updatedAt := result.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO match_results (
            viki_id, source_title, trakt_id, trakt_slug, trakt_title, tvdb_id,
            confidence, method, notes, matched_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.VikiID,
		result.SourceTitle,
		nullableInt(result.TraktID),
		nullableText(result.TraktSlug),
		nullableText(result.TraktTitle),
		nullableInt(result.TVDBID),
		result.Confidence,
		nullableText(result.Method),
		result.Notes,
		nullableTime(result.MatchedAt),
		updatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save match result: %w", err)
	}
	return nil
}

// Delete removes the cached result for a show. Deleting an absent entry
// reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, vikiID string) error {
	if vikiID == "" {
		return errors.New("viki id required")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM match_results WHERE viki_id = ?`, vikiID)
	if err != nil {
		return fmt.Errorf("delete match result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete match result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, vikiID)
	}
	return nil
}

// ListMatched returns all matched results ordered by source title.
func (s *Store) ListMatched(ctx context.Context) ([]*matching.Result, error) {
	return s.list(ctx,
		`SELECT viki_id, source_title, trakt_id, trakt_slug, trakt_title, tvdb_id,
                confidence, method, notes, matched_at, updated_at
         FROM match_results
         WHERE trakt_id IS NOT NULL AND confidence > 0
         ORDER BY source_title`)
}

// ListUnmatched returns all results that never resolved to a Trakt show.
func (s *Store) ListUnmatched(ctx context.Context) ([]*matching.Result, error) {
	return s.list(ctx,
		`SELECT viki_id, source_title, trakt_id, trakt_slug, trakt_title, tvdb_id,
                confidence, method, notes, matched_at, updated_at
         FROM match_results
         WHERE trakt_id IS NULL OR confidence <= 0
         ORDER BY source_title`)
}

// Stats summarizes cache contents by method.
type Stats struct {
	Total     int
	Matched   int
	Unmatched int
	ByMethod  map[string]int
}

// Stats aggregates counts over the whole cache.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByMethod: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(method, ''), COUNT(1),
                SUM(CASE WHEN trakt_id IS NOT NULL AND confidence > 0 THEN 1 ELSE 0 END)
         FROM match_results GROUP BY method`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var method string
		var count, matched int
		if err := rows.Scan(&method, &count, &matched); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		if method != "" {
			stats.ByMethod[method] = count
		}
		stats.Total += count
		stats.Matched += matched
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	stats.Unmatched = stats.Total - stats.Matched
	return stats, nil
}

func (s *Store) list(ctx context.Context, query string) ([]*matching.Result, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list match results: %w", err)
	}
	defer rows.Close()

	var results []*matching.Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match results: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*matching.Result, error) {
	var (
		result     matching.Result
		traktID    sql.NullInt64
		traktSlug  sql.NullString
		traktTitle sql.NullString
		tvdbID     sql.NullInt64
		method     sql.NullString
		matchedAt  sql.NullString
		updatedAt  string
	)
	if err := row.Scan(
		&result.VikiID, &result.SourceTitle, &traktID, &traktSlug, &traktTitle,
		&tvdbID, &result.Confidence, &method, &result.Notes, &matchedAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	result.TraktID = traktID.Int64
	result.TraktSlug = traktSlug.String
	result.TraktTitle = traktTitle.String
	result.TVDBID = tvdbID.Int64
	result.Method = method.String
	if matchedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, matchedAt.String); err == nil {
			result.MatchedAt = ts
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		result.UpdatedAt = ts
	}
	return &result, nil
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
