package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"vikisync/internal/config"
	"vikisync/internal/logging"
	"vikisync/internal/matching"
	"vikisync/internal/matchstore"
	"vikisync/internal/notifications"
	"vikisync/internal/services/trakt"
	"vikisync/internal/services/viki"
	"vikisync/internal/titles"
	"vikisync/internal/watchstore"
)

// ErrAlreadyRunning indicates another sync process holds the lock.
var ErrAlreadyRunning = errors.New("another sync is already running")

// VikiService is the subset of the Viki client the syncer uses.
type VikiService interface {
	GetWatchMarkers(ctx context.Context, from int64) (viki.WatchMarkers, error)
	GetContainer(ctx context.Context, containerID string) (*viki.Container, error)
	GetEpisodes(ctx context.Context, containerID string) ([]viki.Episode, error)
}

// HistoryService posts watched episodes to Trakt.
type HistoryService interface {
	AddToHistory(ctx context.Context, items []trakt.HistoryItem) (*trakt.HistoryResponse, error)
}

// Matcher resolves a show to Trakt.
type Matcher interface {
	Match(ctx context.Context, show matching.Show) (*matching.Result, error)
}

// Options controls a single sync run.
type Options struct {
	// DryRun previews what would be synced without posting to Trakt.
	DryRun bool
	// ForceFull refetches all watch history instead of the incremental window.
	ForceFull bool
}

// Result reports what one sync run did.
type Result struct {
	ShowsFetched    int
	EpisodesFetched int
	MatchesFound    int
	MatchesMissing  int
	EpisodesSynced  int
	Errors          []string
}

// Syncer runs the watch-status-first sync: fetch watch markers from Viki,
// enrich and store them locally, match shows to Trakt, and push watched
// episodes to Trakt history.
type Syncer struct {
	cfg      *config.Config
	watch    *watchstore.Store
	matches  *matchstore.Store
	matcher  Matcher
	viki     VikiService
	trakt    HistoryService
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Syncer. The Trakt history service may be nil, in which case
// runs behave as dry runs.
func New(cfg *config.Config, watch *watchstore.Store, matches *matchstore.Store, matcher Matcher, vikiSvc VikiService, traktSvc HistoryService, notifier notifications.Service, logger *slog.Logger) (*Syncer, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if watch == nil || matches == nil {
		return nil, errors.New("stores required")
	}
	if matcher == nil {
		return nil, errors.New("matcher required")
	}
	if vikiSvc == nil {
		return nil, errors.New("viki service required")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		cfg:      cfg,
		watch:    watch,
		matches:  matches,
		matcher:  matcher,
		viki:     vikiSvc,
		trakt:    traktSvc,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "syncer"),
		now:      time.Now,
	}, nil
}

// Run executes one sync. Only one run may be active per data directory;
// concurrent invocations fail with ErrAlreadyRunning.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Result, error) {
	lock := flock.New(filepath.Join(s.cfg.Paths.DataDir, "sync.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	defer func() { _ = lock.Unlock() }()

	started := s.now()
	result := &Result{}

	from := s.watch.LastWatchMarkersTimestamp(ctx)
	if opts.ForceFull {
		from = 1
	}
	incremental := from > 1
	if incremental {
		s.logger.Info("incremental sync", logging.Int64("from", from))
	} else {
		s.logger.Info("first sync, fetching complete watch history")
	}
	_ = s.notifier.NotifySyncStarted(ctx, incremental)

	// Capture the timestamp before the fetch so markers written while the
	// request is in flight are picked up next run.
	current := s.now().Unix()
	markers, err := s.viki.GetWatchMarkers(ctx, from)
	if err != nil {
		_ = s.notifier.NotifyError(ctx, err, "watch marker fetch")
		return nil, fmt.Errorf("fetch watch markers: %w", err)
	}
	if len(markers) == 0 {
		s.logger.Info("no new watch history")
		if err := s.watch.SetLastWatchMarkersTimestamp(ctx, current); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		s.logSync(ctx, result, opts)
		return result, nil
	}

	s.ingestMarkers(ctx, markers, result)
	if err := s.watch.SetLastWatchMarkersTimestamp(ctx, current); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("save markers timestamp: %v", err))
	}

	s.matchShows(ctx, result)

	if err := s.pushHistory(ctx, opts, result); err != nil {
		result.Errors = append(result.Errors, err.Error())
		_ = s.notifier.NotifyError(ctx, err, "trakt sync")
	}

	s.logSync(ctx, result, opts)
	_ = s.notifier.NotifySyncCompleted(ctx, result.ShowsFetched, result.EpisodesSynced, s.now().Sub(started))
	return result, nil
}

// ingestMarkers upserts shows and episodes from the marker payload,
// enriching each show with container and episode metadata.
func (s *Syncer) ingestMarkers(ctx context.Context, markers viki.WatchMarkers, result *Result) {
	result.ShowsFetched = len(markers)

	containerIDs := make([]string, 0, len(markers))
	for containerID := range markers {
		containerIDs = append(containerIDs, containerID)
	}
	sort.Strings(containerIDs)

	for _, containerID := range containerIDs {
		show := watchstore.Show{VikiID: containerID}
		if container, err := s.viki.GetContainer(ctx, containerID); err == nil {
			show.Title = titles.Select(container.Titles, containerID)
			show.Type = container.Type
			show.OriginCountry = container.Origin.Country
			show.OriginLanguage = container.Origin.Language
		} else {
			s.logger.Warn("container fetch failed",
				logging.String("viki_id", containerID), logging.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("container %s: %v", containerID, err))
			show.Title = fmt.Sprintf("Show %s", containerID)
			show.Type = "series"
		}
		if err := s.watch.UpsertShow(ctx, show); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("upsert show %s: %v", containerID, err))
			continue
		}

		metadata := make(map[string]viki.Episode)
		if episodes, err := s.viki.GetEpisodes(ctx, containerID); err == nil {
			for _, episode := range episodes {
				metadata[episode.VideoID] = episode
			}
		} else {
			s.logger.Warn("episode fetch failed",
				logging.String("viki_id", containerID), logging.Error(err))
		}

		for videoID, marker := range markers[containerID] {
			meta := metadata[videoID]
			episode := watchstore.Episode{
				VikiVideoID:    videoID,
				VikiID:         containerID,
				EpisodeNumber:  meta.Number,
				Duration:       meta.Duration,
				WatchedSeconds: marker.WatchedSeconds,
				CreditsMarker:  meta.CreditsMarker,
			}
			// Viki markers carry no timestamps, so the observation time is
			// the best available watch time.
			if marker.WatchedSeconds > 0 {
				episode.LastWatchedAt = s.now().UTC()
			}
			if err := s.watch.UpsertEpisode(ctx, episode); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("upsert episode %s: %v", videoID, err))
				continue
			}
			result.EpisodesFetched++
		}
	}
}

// matchShows runs the matching engine over every stored show. Matched and
// cached results are cheap; only genuinely unknown shows hit the network.
func (s *Syncer) matchShows(ctx context.Context, result *Result) {
	shows, err := s.watch.ListShows(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list shows: %v", err))
		return
	}
	for _, show := range shows {
		input := matching.Show{
			VikiID:         show.VikiID,
			OriginCountry:  show.OriginCountry,
			OriginLanguage: show.OriginLanguage,
		}
		if show.Title != "" {
			input.Titles = map[string]string{"en": show.Title}
		}

		// Only new outcomes notify; cache hits and repeated no-matches
		// stay quiet.
		prior, priorErr := s.matches.Get(ctx, show.VikiID)
		alreadyMatched := priorErr == nil && prior.IsMatched()

		match, err := s.matcher.Match(ctx, input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("match %s: %v", show.VikiID, err))
			continue
		}
		if match.IsMatched() {
			result.MatchesFound++
			if !alreadyMatched {
				_ = s.notifier.NotifyShowMatched(ctx, match.SourceTitle, match.Method, match.Confidence)
			}
		} else {
			result.MatchesMissing++
			if priorErr != nil {
				_ = s.notifier.NotifyShowUnmatched(ctx, match.SourceTitle)
			}
		}
	}
}

// pushHistory sends watched, unsynced episodes of matched shows to Trakt
// and marks them synced under a new sync session.
func (s *Syncer) pushHistory(ctx context.Context, opts Options, result *Result) error {
	unsynced, err := s.watch.UnsyncedEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("list unsynced episodes: %w", err)
	}
	if len(unsynced) == 0 {
		s.logger.Info("all episodes already synced")
		return nil
	}

	byShow := make(map[string][]*watchstore.Episode)
	for _, episode := range unsynced {
		byShow[episode.VikiID] = append(byShow[episode.VikiID], episode)
	}

	var items []trakt.HistoryItem
	var videoIDs []string
	for vikiID, episodes := range byShow {
		match, err := s.matches.Get(ctx, vikiID)
		if err != nil || !match.IsMatched() {
			continue
		}
		item := trakt.HistoryItem{
			TraktID: match.TraktID,
			Season:  s.cfg.Sync.DefaultSeason,
		}
		for _, episode := range episodes {
			if episode.EpisodeNumber <= 0 {
				continue
			}
			item.Episodes = append(item.Episodes, episode.EpisodeNumber)
			videoIDs = append(videoIDs, episode.VikiVideoID)
			if episode.LastWatchedAt.After(item.WatchedAt) {
				item.WatchedAt = episode.LastWatchedAt
			}
		}
		if len(item.Episodes) > 0 {
			sort.Ints(item.Episodes)
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		s.logger.Info("no matched episodes pending sync")
		return nil
	}

	if opts.DryRun || s.trakt == nil {
		s.logger.Info("dry run, skipping trakt push", logging.Int("episodes", len(videoIDs)))
		return nil
	}

	resp, err := s.trakt.AddToHistory(ctx, items)
	if err != nil {
		return fmt.Errorf("add to trakt history: %w", err)
	}
	s.logger.Info("pushed history to trakt",
		logging.Int("added", resp.Added.Episodes),
		logging.Int("updated", resp.Updated.Episodes))

	sessionID, err := s.watch.LogSync(ctx, watchstore.SyncLogEntry{
		Operation:      "history_push",
		ShowsProcessed: len(items),
		EpisodesSynced: len(videoIDs),
		Status:         "success",
	})
	if err != nil {
		return fmt.Errorf("log sync session: %w", err)
	}
	if err := s.watch.MarkSynced(ctx, videoIDs, sessionID); err != nil {
		return fmt.Errorf("mark episodes synced: %w", err)
	}
	result.EpisodesSynced = len(videoIDs)
	return nil
}

func (s *Syncer) logSync(ctx context.Context, result *Result, opts Options) {
	status := "success"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	operation := "sync"
	if opts.DryRun {
		operation = "dry_run"
	}
	notes := ""
	if len(result.Errors) > 0 {
		notes = result.Errors[0]
		if len(result.Errors) > 1 {
			notes = fmt.Sprintf("%s (+%d more)", notes, len(result.Errors)-1)
		}
	}
	if _, err := s.watch.LogSync(ctx, watchstore.SyncLogEntry{
		Operation:      operation,
		ShowsProcessed: result.ShowsFetched,
		EpisodesSynced: result.EpisodesSynced,
		Status:         status,
		Notes:          notes,
	}); err != nil {
		s.logger.Warn("sync log write failed", logging.Error(err))
	}
}
