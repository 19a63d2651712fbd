package trakt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vikisync/internal/services"
	"vikisync/internal/services/trakt"
)

func newClient(t *testing.T, server *httptest.Server, opts ...trakt.Option) *trakt.Client {
	t.Helper()
	opts = append(opts, trakt.WithHTTPClient(server.Client()))
	client, err := trakt.New("client-id", server.URL, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestSearchShowsSetsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/show" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("trakt-api-version"); got != "2" {
			t.Errorf("missing api version header, got %q", got)
		}
		if got := r.Header.Get("trakt-api-key"); got != "client-id" {
			t.Errorf("missing api key header, got %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "ms incognito" {
			t.Errorf("unexpected query %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"type": "show", "show": map[string]any{
				"title": "Ms. Incognito",
				"year":  2024,
				"ids":   map[string]any{"trakt": 261744, "slug": "ms-incognito"},
			}},
		})
	}))
	defer server.Close()

	results, err := newClient(t, server).SearchShows(context.Background(), "ms incognito")
	if err != nil {
		t.Fatalf("SearchShows failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Show.IDs.Trakt != 261744 || results[0].Show.IDs.Slug != "ms-incognito" {
		t.Fatalf("unexpected show ids: %+v", results[0].Show.IDs)
	}
}

func TestGetShowBySlugNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newClient(t, server).GetShowBySlug(context.Background(), "no-such-show")
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetShowByTVDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tvdb/443533" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "show" {
			t.Errorf("expected type=show, got %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"type": "show", "show": map[string]any{
				"title": "IDOL I",
				"ids":   map[string]any{"trakt": 9001, "slug": "idol-i", "tvdb": 443533},
			}},
		})
	}))
	defer server.Close()

	show, err := newClient(t, server).GetShowByTVDB(context.Background(), 443533)
	if err != nil {
		t.Fatalf("GetShowByTVDB failed: %v", err)
	}
	if show.IDs.Trakt != 9001 {
		t.Fatalf("unexpected trakt id %d", show.IDs.Trakt)
	}
}

func TestGetShowByTVDBEmptyIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	}))
	defer server.Close()

	_, err := newClient(t, server).GetShowByTVDB(context.Background(), 12345)
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAddToHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sync/history" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var payload struct {
			Shows []struct {
				IDs     struct{ Trakt int64 }
				Seasons []struct {
					Number   int
					Episodes []struct {
						Number    int
						WatchedAt string `json:"watched_at"`
					}
				}
			}
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Shows) != 1 || payload.Shows[0].IDs.Trakt != 9001 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		if len(payload.Shows[0].Seasons) != 1 || payload.Shows[0].Seasons[0].Number != 1 {
			t.Errorf("expected season 1: %+v", payload.Shows[0].Seasons)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"added":{"episodes":3}}`))
	}))
	defer server.Close()

	client := newClient(t, server, trakt.WithAccessToken("token"))
	resp, err := client.AddToHistory(context.Background(), []trakt.HistoryItem{
		{TraktID: 9001, Season: 1, Episodes: []int{1, 2, 3}, WatchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("AddToHistory failed: %v", err)
	}
	if resp.Added.Episodes != 3 {
		t.Fatalf("expected 3 added, got %d", resp.Added.Episodes)
	}
}

func TestAddToHistoryRequiresToken(t *testing.T) {
	client, err := trakt.New("client-id", "https://api.trakt.tv")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.AddToHistory(context.Background(), []trakt.HistoryItem{{TraktID: 1, Season: 1, Episodes: []int{1}}}); err == nil {
		t.Fatal("expected configuration error without access token")
	}
}
