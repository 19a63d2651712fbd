package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vikisync/internal/matching"
	"vikisync/internal/services/mdl"
	"vikisync/internal/services/trakt"
	"vikisync/internal/services/tvdb"
)

type fakeStore struct {
	entries map[string]*matching.Result
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*matching.Result)}
}

func (s *fakeStore) Get(ctx context.Context, vikiID string) (*matching.Result, error) {
	if result, ok := s.entries[vikiID]; ok {
		copied := *result
		return &copied, nil
	}
	return nil, errors.New("not found")
}

func (s *fakeStore) Save(ctx context.Context, result *matching.Result) error {
	copied := *result
	s.entries[result.VikiID] = &copied
	s.saves++
	return nil
}

type fakeTrakt struct {
	searchResults []trakt.SearchResult
	searchErr     error
	searchCalls   int
	slugShows     map[string]*trakt.Show
	tvdbShows     map[int64]*trakt.Show
}

func (f *fakeTrakt) SearchShows(ctx context.Context, title string) ([]trakt.SearchResult, error) {
	f.searchCalls++
	return f.searchResults, f.searchErr
}

func (f *fakeTrakt) GetShowBySlug(ctx context.Context, slug string) (*trakt.Show, error) {
	if show, ok := f.slugShows[slug]; ok {
		return show, nil
	}
	return nil, errors.New("not found: " + slug)
}

func (f *fakeTrakt) GetShowByTVDB(ctx context.Context, tvdbID int64) (*trakt.Show, error) {
	if show, ok := f.tvdbShows[tvdbID]; ok {
		return show, nil
	}
	return nil, errors.New("no trakt show for tvdb id")
}

type fakeTVDB struct {
	searchByQuery map[string][]tvdb.SearchResult
	details       map[int64]*tvdb.SeriesDetail
	searchCalls   int
}

func (f *fakeTVDB) SearchSeries(ctx context.Context, query string) ([]tvdb.SearchResult, error) {
	f.searchCalls++
	return f.searchByQuery[query], nil
}

func (f *fakeTVDB) GetSeriesDetail(ctx context.Context, seriesID int64) (*tvdb.SeriesDetail, error) {
	if detail, ok := f.details[seriesID]; ok {
		return detail, nil
	}
	return nil, errors.New("no detail")
}

type fakeAliases struct {
	result *mdl.AliasResult
	err    error
}

func (f *fakeAliases) SearchAliases(ctx context.Context, title string) (*mdl.AliasResult, error) {
	return f.result, f.err
}

func searchResult(title, slug string, id int64) trakt.SearchResult {
	return trakt.SearchResult{
		Type: "show",
		Show: trakt.Show{Title: title, IDs: trakt.IDs{Trakt: id, Slug: slug}},
	}
}

func newEngine(t *testing.T, store matching.Store, opts ...matching.Option) *matching.Engine {
	t.Helper()
	opts = append(opts, matching.WithClock(func() time.Time {
		return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	}))
	engine, err := matching.NewEngine(store, nil, opts...)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestMatchRequiresID(t *testing.T) {
	engine := newEngine(t, newFakeStore())
	_, err := engine.Match(context.Background(), matching.Show{Titles: map[string]string{"en": "X"}})
	if !errors.Is(err, matching.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestExactTitleMatch(t *testing.T) {
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("Some Other", "some-other", 1),
		searchResult("Ms. Incognito", "ms-incognito", 261744),
	}}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Ms. Incognito"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.TraktID != 261744 || result.Confidence != 1.0 || result.Method != matching.MethodExactTrakt {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.SourceTitle != "Ms. Incognito" {
		t.Fatalf("source title not recorded: %q", result.SourceTitle)
	}
}

func TestArticleStrippedMatch(t *testing.T) {
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("Divorce Lawyer in Love", "divorce-lawyer-in-love", 555),
	}}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "The Divorce Lawyer in Love"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodExactTraktArticle || result.Confidence != 0.9 {
		t.Fatalf("expected article match at 0.9, got %+v", result)
	}
	if result.TraktID != 555 {
		t.Fatalf("wrong show chosen: %+v", result)
	}
}

func TestSlugLookupFallback(t *testing.T) {
	traktFake := &fakeTrakt{
		searchResults: []trakt.SearchResult{
			searchResult("Totally Different", "totally-different", 42),
		},
		slugShows: map[string]*trakt.Show{
			"idol-i": {Title: "IDOL I", IDs: trakt.IDs{Trakt: 9001, Slug: "idol-i"}},
		},
	}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "40155c",
		Titles: map[string]string{"en": "IDOL I"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodSlugLookup || result.Confidence != 1.0 {
		t.Fatalf("expected slug_lookup at 1.0, got %+v", result)
	}
	if result.TraktID != 9001 {
		t.Fatalf("wrong show: %+v", result)
	}
}

func TestFirstResultFallbackBound(t *testing.T) {
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("Totally Different", "totally-different", 42),
	}}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Obscure Drama"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodExactTraktFirst || result.Confidence != 0.8 {
		t.Fatalf("expected first-result fallback at exactly 0.8, got %+v", result)
	}
}

func TestFirstResultOnlyAcceptedAfterOtherTiers(t *testing.T) {
	traktFake := &fakeTrakt{
		searchResults: []trakt.SearchResult{
			searchResult("Totally Different", "totally-different", 42),
		},
		tvdbShows: map[int64]*trakt.Show{
			700: {Title: "Obscure Drama", IDs: trakt.IDs{Trakt: 777, Slug: "obscure-drama"}},
		},
	}
	tvdbFake := &fakeTVDB{searchByQuery: map[string][]tvdb.SearchResult{
		"Obscure Drama": {{TVDBID: 700, Name: "Obscure Drama"}},
	}}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake), matching.WithTVDB(tvdbFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Obscure Drama"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodTVDB || result.Confidence != 0.95 {
		t.Fatalf("cross-reference should beat a 0.8 fallback, got %+v", result)
	}
	if result.TraktID != 777 || result.TVDBID != 700 {
		t.Fatalf("unexpected ids: %+v", result)
	}
}

func TestNoMatchTerminal(t *testing.T) {
	store := newFakeStore()
	traktFake := &fakeTrakt{}
	engine := newEngine(t, store, matching.WithTrakt(traktFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Nothing Anywhere"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.IsMatched() {
		t.Fatalf("expected unmatched, got %+v", result)
	}
	if result.Method != matching.MethodNoMatch || result.Confidence != 0 || result.TraktID != 0 {
		t.Fatalf("unexpected terminal result: %+v", result)
	}
	if _, ok := store.entries["X"]; !ok {
		t.Fatal("no-match outcome must be persisted")
	}
}

func TestCacheIdempotence(t *testing.T) {
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("Ms. Incognito", "ms-incognito", 261744),
	}}
	store := newFakeStore()
	engine := newEngine(t, store, matching.WithTrakt(traktFake))

	show := matching.Show{VikiID: "X", Titles: map[string]string{"en": "Ms. Incognito"}}
	first, err := engine.Match(context.Background(), show)
	if err != nil {
		t.Fatalf("first Match failed: %v", err)
	}
	second, err := engine.Match(context.Background(), show)
	if err != nil {
		t.Fatalf("second Match failed: %v", err)
	}
	if traktFake.searchCalls != 1 {
		t.Fatalf("second call must be served from cache, got %d searches", traktFake.searchCalls)
	}
	if second.TraktID != first.TraktID || second.TraktSlug != first.TraktSlug || second.Confidence != first.Confidence {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestCachedNoMatchRetried(t *testing.T) {
	store := newFakeStore()
	store.entries["X"] = &matching.Result{
		VikiID: "X", SourceTitle: "Ms. Incognito", Method: matching.MethodNoMatch,
	}
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("Ms. Incognito", "ms-incognito", 261744),
	}}
	engine := newEngine(t, store, matching.WithTrakt(traktFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Ms. Incognito"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !result.IsMatched() || result.Method != matching.MethodExactTrakt {
		t.Fatalf("stale no-match should be retried, got %+v", result)
	}
}

func TestRematchBypassesCachedMatch(t *testing.T) {
	store := newFakeStore()
	store.entries["X"] = &matching.Result{
		VikiID: "X", SourceTitle: "Ms. Incognito", TraktID: 111,
		Confidence: 1.0, Method: matching.MethodExactTrakt,
	}
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("Ms. Incognito", "ms-incognito", 261744),
	}}
	engine := newEngine(t, store, matching.WithTrakt(traktFake))

	show := matching.Show{VikiID: "X", Titles: map[string]string{"en": "Ms. Incognito"}}

	cached, err := engine.Match(context.Background(), show)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if cached.TraktID != 111 || traktFake.searchCalls != 0 {
		t.Fatalf("Match should serve the cached entry, got %+v after %d searches", cached, traktFake.searchCalls)
	}

	fresh, err := engine.Rematch(context.Background(), show)
	if err != nil {
		t.Fatalf("Rematch failed: %v", err)
	}
	if traktFake.searchCalls != 1 {
		t.Fatalf("Rematch must run the tiers, got %d searches", traktFake.searchCalls)
	}
	if fresh.TraktID != 261744 {
		t.Fatalf("unexpected rematch result: %+v", fresh)
	}
	if store.entries["X"].TraktID != 261744 {
		t.Fatal("rematch outcome must overwrite the cache entry")
	}
}

func TestTVDBSearchResultAliasMatch(t *testing.T) {
	traktFake := &fakeTrakt{
		tvdbShows: map[int64]*trakt.Show{
			602: {Title: "Moon Lovers", IDs: trakt.IDs{Trakt: 888, Slug: "moon-lovers"}},
		},
	}
	tvdbFake := &fakeTVDB{searchByQuery: map[string][]tvdb.SearchResult{
		"Scarlet Heart Ryeo": {
			{TVDBID: 601, Name: "Unrelated Series"},
			{TVDBID: 602, Name: "Moon Lovers", Aliases: []string{"Scarlet Heart Ryeo"}},
		},
	}}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake), matching.WithTVDB(tvdbFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Scarlet Heart Ryeo"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	// The inline alias resolves in the primary tier, before any detail fetch.
	if result.Method != matching.MethodTVDB || result.Confidence != 0.95 {
		t.Fatalf("expected tvdb tier via search alias, got %+v", result)
	}
	if result.TraktID != 888 || result.TVDBID != 602 {
		t.Fatalf("unexpected ids: %+v", result)
	}
}

func TestTierPriorityExactWins(t *testing.T) {
	traktFake := &fakeTrakt{searchResults: []trakt.SearchResult{
		searchResult("My Drama", "my-drama", 11),
	}}
	tvdbFake := &fakeTVDB{searchByQuery: map[string][]tvdb.SearchResult{
		"My Drama": {{TVDBID: 500, Name: "My Drama"}},
	}}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake), matching.WithTVDB(tvdbFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "My Drama"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodExactTrakt {
		t.Fatalf("exact tier must win: %+v", result)
	}
	if tvdbFake.searchCalls != 0 {
		t.Fatalf("later tiers must not run after a confident exact hit, got %d TVDB searches", tvdbFake.searchCalls)
	}
}

func TestTVDBAliasTier(t *testing.T) {
	traktFake := &fakeTrakt{
		tvdbShows: map[int64]*trakt.Show{
			// Only the second candidate cross-references to Trakt; the
			// primary-mode pick (first candidate) does not.
			602: {Title: "Moon Lovers", IDs: trakt.IDs{Trakt: 888, Slug: "moon-lovers"}},
		},
	}
	tvdbFake := &fakeTVDB{
		searchByQuery: map[string][]tvdb.SearchResult{
			"Scarlet Heart Ryeo": {
				{TVDBID: 601, Name: "Unrelated Series"},
				{TVDBID: 602, Name: "Moon Lovers"},
			},
		},
		details: map[int64]*tvdb.SeriesDetail{
			601: {TVDBID: 601, Name: "Unrelated Series"},
			602: {TVDBID: 602, Name: "Moon Lovers", Aliases: []tvdb.Alias{
				{Language: "kor", Name: "달의 연인"},
				{Language: "eng", Name: "Scarlet Heart Ryeo"},
			}},
		},
	}
	engine := newEngine(t, newFakeStore(), matching.WithTrakt(traktFake), matching.WithTVDB(tvdbFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "X",
		Titles: map[string]string{"en": "Scarlet Heart Ryeo"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodTVDBAliasMatch || result.Confidence != 0.92 {
		t.Fatalf("expected alias match at 0.92, got %+v", result)
	}
	if result.TraktID != 888 || result.TVDBID != 602 {
		t.Fatalf("unexpected ids: %+v", result)
	}
}

func TestMDLTier(t *testing.T) {
	traktFake := &fakeTrakt{
		tvdbShows: map[int64]*trakt.Show{
			703: {Title: "First Love Again", IDs: trakt.IDs{Trakt: 999, Slug: "first-love-again"}},
		},
	}
	tvdbFake := &fakeTVDB{searchByQuery: map[string][]tvdb.SearchResult{
		"First Love, Again": {{TVDBID: 703, Name: "First Love Again"}},
	}}
	aliasFake := &fakeAliases{result: &mdl.AliasResult{
		EnglishAliases: []string{"No Such Title", "First Love, Again"},
		VikiID:         "36782c",
	}}
	engine := newEngine(t, newFakeStore(),
		matching.WithTrakt(traktFake), matching.WithTVDB(tvdbFake), matching.WithAliases(aliasFake))

	result, err := engine.Match(context.Background(), matching.Show{
		VikiID: "36782c",
		Titles: map[string]string{"ko": "다시 첫사랑"},
	})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Method != matching.MethodMDL {
		t.Fatalf("expected mdl method, got %+v", result)
	}
	// Second alias tried, so confidence steps down once.
	if result.Confidence != 0.92 {
		t.Fatalf("expected 0.92 for second alias, got %v", result.Confidence)
	}
	if result.TraktID != 999 {
		t.Fatalf("unexpected trakt id: %+v", result)
	}
}

func TestMatchedInvariantHolds(t *testing.T) {
	cases := []struct {
		result  matching.Result
		matched bool
	}{
		{matching.Result{TraktID: 1, Confidence: 0.8}, true},
		{matching.Result{TraktID: 1, Confidence: 0}, false},
		{matching.Result{TraktID: 0, Confidence: 0.9}, false},
		{matching.Result{}, false},
	}
	for i, tc := range cases {
		if got := tc.result.IsMatched(); got != tc.matched {
			t.Errorf("case %d: IsMatched()=%v, want %v", i, got, tc.matched)
		}
	}
}
