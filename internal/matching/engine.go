package matching

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vikisync/internal/logging"
	"vikisync/internal/services/mdl"
	"vikisync/internal/services/trakt"
	"vikisync/internal/services/tvdb"
	"vikisync/internal/titles"
)

// TraktService is the subset of the Trakt client the tiers need.
type TraktService interface {
	SearchShows(ctx context.Context, title string) ([]trakt.SearchResult, error)
	GetShowBySlug(ctx context.Context, slug string) (*trakt.Show, error)
	GetShowByTVDB(ctx context.Context, tvdbID int64) (*trakt.Show, error)
}

// TVDBService is the subset of the TVDB client the tiers need.
type TVDBService interface {
	SearchSeries(ctx context.Context, query string) ([]tvdb.SearchResult, error)
	GetSeriesDetail(ctx context.Context, seriesID int64) (*tvdb.SeriesDetail, error)
}

// AliasService resolves community-sourced English aliases for a title.
type AliasService interface {
	SearchAliases(ctx context.Context, title string) (*mdl.AliasResult, error)
}

// Store persists match results. Get returns an error when no entry exists;
// the engine treats any Get error as a cache miss.
type Store interface {
	Get(ctx context.Context, vikiID string) (*Result, error)
	Save(ctx context.Context, result *Result) error
}

// ErrMissingID is returned when the input show carries no identifier. This
// is the only condition Match reports as an error; every lookup failure
// degrades to an unmatched result instead.
var ErrMissingID = errors.New("show missing viki id")

// Engine resolves Viki shows to Trakt shows through a fixed ladder of
// lookup tiers, caching every outcome. Any of the service handles may be
// nil; the corresponding tiers then report unmatched with a note.
type Engine struct {
	trakt   TraktService
	tvdb    TVDBService
	aliases AliasService
	store   Store
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrakt wires the Trakt client.
func WithTrakt(service TraktService) Option {
	return func(e *Engine) { e.trakt = service }
}

// WithTVDB wires the TVDB client.
func WithTVDB(service TVDBService) Option {
	return func(e *Engine) { e.tvdb = service }
}

// WithAliases wires the alias-site client.
func WithAliases(service AliasService) Option {
	return func(e *Engine) { e.aliases = service }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a matching engine writing through the given store.
func NewEngine(store Store, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("matching store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	engine := &Engine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "matcher"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// A tier resolves a title to a candidate result. Tiers never return errors;
// failures become unmatched results with diagnostic notes.
type tier struct {
	name      string
	threshold float64
	resolve   func(ctx context.Context, vikiID, title string) *Result
}

// Match resolves one show. Matched cache entries are returned as-is; cached
// no-matches are retried. Every outcome, matched or not, overwrites the
// cache entry for the show.
func (e *Engine) Match(ctx context.Context, show Show) (*Result, error) {
	return e.match(ctx, show, true)
}

// Rematch resolves a show through the full tier ladder even when a cached
// result exists. The fresh outcome overwrites the cache entry.
func (e *Engine) Rematch(ctx context.Context, show Show) (*Result, error) {
	return e.match(ctx, show, false)
}

func (e *Engine) match(ctx context.Context, show Show, useCache bool) (*Result, error) {
	if show.VikiID == "" {
		return nil, ErrMissingID
	}
	title := titles.Select(show.Titles, show.VikiID)
	log := e.logger.With(logging.String("viki_id", show.VikiID), logging.String("title", title))

	if useCache {
		if cached, err := e.store.Get(ctx, show.VikiID); err == nil {
			if cached.IsMatched() {
				log.Debug("cache hit",
					logging.String("source", MethodCache),
					logging.Int64("trakt_id", cached.TraktID))
				return cached, nil
			}
			log.Debug("cached no-match, retrying")
		}
	}

	// The exact-search result is kept around: if no later tier clears its
	// own threshold, a weak exact hit is still accepted at the end.
	exact := e.resolveExact(ctx, show.VikiID, title)
	if exact.IsMatched() && exact.Confidence > 0.85 {
		return e.persist(ctx, log, exact)
	}

	tiers := []tier{
		{name: "tvdb", threshold: 0.7, resolve: e.resolveTVDB},
		{name: "tvdb_aliases", threshold: 0.65, resolve: e.resolveTVDBAliases},
		{name: "mdl", threshold: 0.6, resolve: e.resolveMDL},
	}
	for _, t := range tiers {
		result := t.resolve(ctx, show.VikiID, title)
		if result.IsMatched() && result.Confidence > t.threshold {
			return e.persist(ctx, log, result)
		}
		if result.Notes != "" {
			log.Debug("tier unmatched", logging.String("tier", t.name), logging.String("notes", result.Notes))
		}
	}

	if exact.IsMatched() && exact.Confidence >= 0.8 {
		return e.persist(ctx, log, exact)
	}

	noMatch := &Result{
		VikiID:      show.VikiID,
		SourceTitle: title,
		Method:      MethodNoMatch,
		Notes:       "no matching show found",
	}
	return e.persist(ctx, log, noMatch)
}

func (e *Engine) persist(ctx context.Context, log *slog.Logger, result *Result) (*Result, error) {
	result.UpdatedAt = e.now().UTC()
	if err := e.store.Save(ctx, result); err != nil {
		return nil, err
	}
	if result.IsMatched() {
		log.Info("matched show",
			logging.Int64("trakt_id", result.TraktID),
			logging.String("method", result.Method),
			logging.Float64("confidence", result.Confidence))
	} else {
		log.Info("no match found", logging.String("notes", result.Notes))
	}
	return result, nil
}

func (e *Engine) unmatched(vikiID, title, notes string) *Result {
	return &Result{VikiID: vikiID, SourceTitle: title, Notes: notes}
}
