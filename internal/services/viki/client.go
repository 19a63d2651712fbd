package viki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vikisync/internal/services"
)

// The watch markers endpoint lives on the website host behind session
// cookies; container and episode metadata come from the public v4 API.
const (
	appID      = "100000a"
	appVersion = "26.1.3-4.43.1"
	userAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"
)

var requiredCookies = []string{"session__id", "_viki_session"}

// WatchMarker records how far into a video the user got.
type WatchMarker struct {
	WatchedSeconds int64
}

// WatchMarkers maps container id to video id to marker.
type WatchMarkers map[string]map[string]WatchMarker

// Container is show-level metadata from the v4 API.
type Container struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Titles map[string]string `json:"titles"`
	Origin struct {
		Country  string `json:"country"`
		Language string `json:"language"`
	} `json:"origin"`
}

// Episode is one entry from a container's episode listing.
type Episode struct {
	VideoID       string
	Number        int
	Duration      int64
	CreditsMarker int64
}

// Service defines the Viki operations the sync workflow uses.
type Service interface {
	GetWatchMarkers(ctx context.Context, from int64) (WatchMarkers, error)
	GetContainer(ctx context.Context, containerID string) (*Container, error)
	GetEpisodes(ctx context.Context, containerID string) ([]Episode, error)
}

// Client talks to Viki's website API (watch markers) and public v4 API
// (containers, episodes).
type Client struct {
	cookies    map[string]string
	deviceID   string
	baseURL    string
	apiBaseURL string
	httpClient *http.Client
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

// WithDeviceID pins the x-viki-device-id header instead of generating one.
func WithDeviceID(id string) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.deviceID = id
		}
	}
}

// New creates a Viki client. The cookie map must contain the session
// cookies Viki sets after login.
func New(cookies map[string]string, baseURL, apiBaseURL string, opts ...Option) (*Client, error) {
	for _, name := range requiredCookies {
		if strings.TrimSpace(cookies[name]) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "viki", "new", fmt.Sprintf("missing required cookie %s", name), nil)
		}
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "viki", "new", "base url required", nil)
	}
	apiBaseURL = strings.TrimSpace(apiBaseURL)
	if apiBaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "viki", "new", "api base url required", nil)
	}
	client := &Client{
		cookies:    cookies,
		deviceID:   strings.ReplaceAll(uuid.NewString(), "-", "")[:10],
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// GetWatchMarkers fetches every watch marker at or after the supplied unix
// timestamp in one call. Pass 1 to fetch all history.
func (c *Client) GetWatchMarkers(ctx context.Context, from int64) (WatchMarkers, error) {
	if from < 1 {
		from = 1
	}
	endpoint, err := url.Parse(c.baseURL + "/api/vw_watch_markers")
	if err != nil {
		return nil, fmt.Errorf("parse viki url: %w", err)
	}
	params := url.Values{}
	params.Set("from", strconv.FormatInt(from, 10))
	endpoint.RawQuery = params.Encode()

	var payload struct {
		Markers map[string]map[string]json.RawMessage `json:"markers"`
	}
	if err := c.getJSON(ctx, endpoint.String(), "watch_markers", true, &payload); err != nil {
		return nil, err
	}

	markers := make(WatchMarkers, len(payload.Markers))
	for containerID, videos := range payload.Markers {
		markers[containerID] = make(map[string]WatchMarker, len(videos))
		for videoID, raw := range videos {
			markers[containerID][videoID] = WatchMarker{WatchedSeconds: decodeMarker(raw)}
		}
	}
	return markers, nil
}

// Markers are usually objects with a watch_marker field, but older entries
// can be bare integers.
func decodeMarker(raw json.RawMessage) int64 {
	var obj struct {
		WatchMarker *int64 `json:"watch_marker"`
		Duration    int64  `json:"duration"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.WatchMarker != nil {
			return *obj.WatchMarker
		}
		if obj.Duration > 0 {
			return obj.Duration
		}
	}
	var scalar int64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return scalar
	}
	return 0
}

// GetContainer fetches show-level metadata.
func (c *Client) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return nil, errors.New("container id must not be empty")
	}
	endpoint := fmt.Sprintf("%s/containers/%s.json?app=%s", c.apiBaseURL, url.PathEscape(containerID), appID)

	var payload Container
	if err := c.getJSON(ctx, endpoint, "container", false, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetEpisodes fetches all episodes for a container, following pagination.
func (c *Client) GetEpisodes(ctx context.Context, containerID string) ([]Episode, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return nil, errors.New("container id must not be empty")
	}

	var episodes []Episode
	for page := 1; ; page++ {
		endpoint, err := url.Parse(fmt.Sprintf("%s/containers/%s/episodes.json", c.apiBaseURL, url.PathEscape(containerID)))
		if err != nil {
			return nil, fmt.Errorf("parse viki url: %w", err)
		}
		params := url.Values{}
		params.Set("app", appID)
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", "50")
		params.Set("direction", "asc")
		endpoint.RawQuery = params.Encode()

		var payload struct {
			Response []struct {
				ID            string `json:"id"`
				Number        int    `json:"number"`
				Duration      int64  `json:"duration"`
				CreditsMarker int64  `json:"credits_marker"`
			} `json:"response"`
			More bool `json:"more"`
		}
		if err := c.getJSON(ctx, endpoint.String(), "episodes", false, &payload); err != nil {
			return nil, err
		}
		if len(payload.Response) == 0 {
			break
		}
		for _, entry := range payload.Response {
			episodes = append(episodes, Episode{
				VideoID:       entry.ID,
				Number:        entry.Number,
				Duration:      entry.Duration,
				CreditsMarker: entry.CreditsMarker,
			})
		}
		if !payload.More {
			break
		}
	}
	return episodes, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, operation string, withCookies bool, out any) error {
	requestStart := time.Now()
	resp, err := services.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Accept-Language", "en")
		req.Header.Set("Referer", c.baseURL+"/")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("x-viki-app-ver", appVersion)
		req.Header.Set("x-viki-device-id", c.deviceID)
		if withCookies {
			for name, value := range c.cookies {
				req.AddCookie(&http.Cookie{Name: name, Value: value})
			}
		}
		return req, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrTransient, "viki", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "viki", operation, fmt.Sprintf("session rejected with status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "viki", operation, fmt.Sprintf("status 404 (latency=%v)", latency), nil)
	case resp.StatusCode != http.StatusOK:
		return services.Wrap(services.ErrExternal, "viki", operation, fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode viki response: %w", err)
	}
	return nil
}
