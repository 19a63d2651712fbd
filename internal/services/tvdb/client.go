package tvdb

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
	"sync"
	"time"

	"vikisync/internal/services"
)

// Tokens are valid for a month; refresh well before expiry.
const tokenLifetime = 24 * time.Hour

// SearchResult is one series entry from the TVDB search endpoint. Aliases
// carries the inline alternate names the search index returns; the full
// language-tagged alias list requires the extended series record.
type SearchResult struct {
	TVDBID  int64
	Name    string
	Year    string
	Aliases []string
}

// Alias is an alternate series name with its language tag.
type Alias struct {
	Language string `json:"language"`
	Name     string `json:"name"`
}

// SeriesDetail carries the fields alias matching needs from the extended
// series record.
type SeriesDetail struct {
	TVDBID  int64
	Name    string
	Aliases []Alias
}

// Service defines the TVDB operations the matching tiers use.
type Service interface {
	SearchSeries(ctx context.Context, query string) ([]SearchResult, error)
	GetSeriesDetail(ctx context.Context, seriesID int64) (*SeriesDetail, error)
}

// Client talks to the TVDB v4 API. Authentication happens lazily on first
// use and the bearer token is cached until it nears expiry.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
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

// New creates a TVDB client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tvdb", "new", "api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tvdb", "new", "base url required", nil)
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchSeries runs a series-typed search.
func (c *Client) SearchSeries(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse tvdb url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "series")
	endpoint.RawQuery = params.Encode()

	var payload struct {
		Data []struct {
			TVDBID  string   `json:"tvdb_id"`
			Name    string   `json:"name"`
			Year    string   `json:"year"`
			Aliases []string `json:"aliases"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint.String(), token, "search", &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(payload.Data))
	for _, entry := range payload.Data {
		id, err := strconv.ParseInt(entry.TVDBID, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		results = append(results, SearchResult{TVDBID: id, Name: entry.Name, Year: entry.Year, Aliases: entry.Aliases})
	}
	return results, nil
}

// GetSeriesDetail fetches the extended series record including aliases.
func (c *Client) GetSeriesDetail(ctx context.Context, seriesID int64) (*SeriesDetail, error) {
	if seriesID <= 0 {
		return nil, errors.New("series id must be positive")
	}
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/series/%d/extended", c.baseURL, seriesID)

	var payload struct {
		Data struct {
			ID      int64   `json:"id"`
			Name    string  `json:"name"`
			Aliases []Alias `json:"aliases"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, token, "series_detail", &payload); err != nil {
		return nil, err
	}
	return &SeriesDetail{
		TVDBID:  payload.Data.ID,
		Name:    payload.Data.Name,
		Aliases: payload.Data.Aliases,
	}, nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", fmt.Errorf("encode login payload: %w", err)
	}

	requestStart := time.Now()
	resp, err := services.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "tvdb", "login", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExternal, "tvdb", "login", fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if payload.Data.Token == "" {
		return "", services.Wrap(services.ErrExternal, "tvdb", "login", "empty token in response", nil)
	}

	c.token = payload.Data.Token
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	return c.token, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, token, operation string, out any) error {
	requestStart := time.Now()
	resp, err := services.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tvdb", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "tvdb", operation, fmt.Sprintf("status 404 (latency=%v)", latency), nil)
	case resp.StatusCode == http.StatusUnauthorized:
		// Token expired server-side; clear it so the next call re-authenticates.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return services.Wrap(services.ErrExternal, "tvdb", operation, fmt.Sprintf("status 401 (latency=%v)", latency), nil)
	case resp.StatusCode != http.StatusOK:
		return services.Wrap(services.ErrExternal, "tvdb", operation, fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tvdb response: %w", err)
	}
	return nil
}
