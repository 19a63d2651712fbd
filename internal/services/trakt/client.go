package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vikisync/internal/services"
)

const apiVersion = "2"

// IDs carries the cross-service identifiers Trakt reports for a show.
type IDs struct {
	Trakt int64  `json:"trakt"`
	Slug  string `json:"slug"`
	TVDB  int64  `json:"tvdb"`
	IMDB  string `json:"imdb"`
	TMDB  int64  `json:"tmdb"`
}

// Show is the show payload embedded in Trakt search results.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// SearchResult is one entry of a Trakt text or ID search response.
type SearchResult struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Show  Show    `json:"show"`
}

// HistoryItem identifies a show whose episodes should be added to history.
type HistoryItem struct {
	TraktID   int64
	Season    int
	Episodes  []int
	WatchedAt time.Time
}

// HistoryResponse reports how many episodes Trakt accepted.
type HistoryResponse struct {
	Added struct {
		Episodes int `json:"episodes"`
	} `json:"added"`
	Updated struct {
		Episodes int `json:"episodes"`
	} `json:"updated"`
	NotFound struct {
		Shows []json.RawMessage `json:"shows"`
	} `json:"not_found"`
}

// Service defines the Trakt operations the matching tiers and syncer use.
type Service interface {
	SearchShows(ctx context.Context, title string) ([]SearchResult, error)
	GetShowBySlug(ctx context.Context, slug string) (*Show, error)
	GetShowByTVDB(ctx context.Context, tvdbID int64) (*Show, error)
	AddToHistory(ctx context.Context, items []HistoryItem) (*HistoryResponse, error)
}

// Client talks to the Trakt v2 API.
type Client struct {
	clientID    string
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAccessToken attaches a bearer token for authenticated endpoints.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = strings.TrimSpace(token)
	}
}

// New creates a Trakt client.
func New(clientID, baseURL string, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "trakt", "new", "client id required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "trakt", "new", "base url required", nil)
	}
	client := &Client{
		clientID:   clientID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchShows performs a text search scoped to shows. Results keep Trakt's
// relevance ordering.
func (c *Client) SearchShows(ctx context.Context, title string) ([]SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + "/search/show")
	if err != nil {
		return nil, fmt.Errorf("parse trakt url: %w", err)
	}
	params := url.Values{}
	params.Set("query", title)
	endpoint.RawQuery = params.Encode()

	var payload []SearchResult
	if err := c.getJSON(ctx, endpoint.String(), "search", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// GetShowBySlug probes a slug directly. A missing slug is reported as
// services.ErrNotFound so callers can continue with slug variants.
func (c *Client) GetShowBySlug(ctx context.Context, slug string) (*Show, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("slug must not be empty")
	}
	endpoint := fmt.Sprintf("%s/shows/%s", c.baseURL, url.PathEscape(slug))

	var payload Show
	if err := c.getJSON(ctx, endpoint, "get_by_slug", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetShowByTVDB resolves a TVDB series id to the Trakt show it maps to.
func (c *Client) GetShowByTVDB(ctx context.Context, tvdbID int64) (*Show, error) {
	if tvdbID <= 0 {
		return nil, errors.New("tvdb id must be positive")
	}
	endpoint, err := url.Parse(fmt.Sprintf("%s/search/tvdb/%d", c.baseURL, tvdbID))
	if err != nil {
		return nil, fmt.Errorf("parse trakt url: %w", err)
	}
	params := url.Values{}
	params.Set("type", "show")
	endpoint.RawQuery = params.Encode()

	var payload []SearchResult
	if err := c.getJSON(ctx, endpoint.String(), "get_by_tvdb", &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "trakt", "get_by_tvdb", strconv.FormatInt(tvdbID, 10), nil)
	}
	show := payload[0].Show
	return &show, nil
}

// AddToHistory posts watched episodes to /sync/history. Requires an access
// token.
func (c *Client) AddToHistory(ctx context.Context, items []HistoryItem) (*HistoryResponse, error) {
	if c.accessToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "trakt", "add_to_history", "access token required", nil)
	}
	if len(items) == 0 {
		return nil, errors.New("no history items supplied")
	}

	body, err := json.Marshal(historyRequest(items))
	if err != nil {
		return nil, fmt.Errorf("encode history payload: %w", err)
	}

	requestStart := time.Now()
	resp, err := services.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync/history", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "trakt", "add_to_history", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternal, "trakt", "add_to_history", fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return &payload, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, operation string, out any) error {
	requestStart := time.Now()
	resp, err := services.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		c.setHeaders(req)
		return req, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrTransient, "trakt", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "trakt", operation, fmt.Sprintf("status 404 (latency=%v)", latency), nil)
	case resp.StatusCode != http.StatusOK:
		return services.Wrap(services.ErrExternal, "trakt", operation, fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode trakt response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

type historyEpisode struct {
	Number    int    `json:"number"`
	WatchedAt string `json:"watched_at,omitempty"`
}

type historySeason struct {
	Number   int              `json:"number"`
	Episodes []historyEpisode `json:"episodes"`
}

type historyShow struct {
	IDs     IDs             `json:"ids"`
	Seasons []historySeason `json:"seasons"`
}

type historyPayload struct {
	Shows []historyShow `json:"shows"`
}

func historyRequest(items []HistoryItem) historyPayload {
	payload := historyPayload{Shows: make([]historyShow, 0, len(items))}
	for _, item := range items {
		episodes := make([]historyEpisode, 0, len(item.Episodes))
		for _, number := range item.Episodes {
			episode := historyEpisode{Number: number}
			if !item.WatchedAt.IsZero() {
				episode.WatchedAt = item.WatchedAt.UTC().Format(time.RFC3339)
			}
			episodes = append(episodes, episode)
		}
		payload.Shows = append(payload.Shows, historyShow{
			IDs: IDs{Trakt: item.TraktID},
			Seasons: []historySeason{
				{Number: item.Season, Episodes: episodes},
			},
		})
	}
	return payload
}
