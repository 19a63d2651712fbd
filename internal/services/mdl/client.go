package mdl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"vikisync/internal/services"
)

// MyDramaList has no public API, so alias discovery scrapes the search page
// and the JSON-LD block embedded in each title page.

var (
	cjkPattern    = regexp.MustCompile(`[\x{4e00}-\x{9fff}\x{ac00}-\x{d7af}\x{3040}-\x{309f}]`)
	vikiIDPattern = regexp.MustCompile(`viki\.com/tv/([a-z0-9]+)`)
)

// AliasResult holds everything scraped from a MyDramaList title page.
type AliasResult struct {
	Title          string
	EnglishAliases []string
	VikiID         string
	URL            string
}

// Service defines the alias discovery operation the last-resort matching
// tier uses.
type Service interface {
	SearchAliases(ctx context.Context, title string) (*AliasResult, error)
}

// Client scrapes mydramalist.com.
type Client struct {
	baseURL    string
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

// New creates a MyDramaList client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mdl", "new", "base url required", nil)
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchAliases searches MyDramaList for a title, follows the top result,
// and extracts English alternate names plus the linked Viki show id if the
// page advertises one.
func (c *Client) SearchAliases(ctx context.Context, title string) (*AliasResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}

	searchURL := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(title))
	searchDoc, err := c.fetchDocument(ctx, searchURL, "search")
	if err != nil {
		return nil, err
	}

	detailPath := firstResultLink(searchDoc)
	if detailPath == "" {
		return nil, services.Wrap(services.ErrNotFound, "mdl", "search", title, nil)
	}

	detailURL := detailPath
	if strings.HasPrefix(detailPath, "/") {
		detailURL = c.baseURL + detailPath
	}
	detailDoc, err := c.fetchDocument(ctx, detailURL, "detail")
	if err != nil {
		return nil, err
	}

	result := &AliasResult{URL: detailURL}
	result.Title, result.EnglishAliases = extractNames(detailDoc)
	result.VikiID = extractVikiID(detailDoc)
	return result, nil
}

func (c *Client) fetchDocument(ctx context.Context, endpoint, operation string) (*html.Node, error) {
	requestStart := time.Now()
	resp, err := services.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) vikisync")
		return req, nil
	})
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "mdl", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternal, "mdl", operation, fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse mdl page: %w", err)
	}
	return doc, nil
}

// firstResultLink returns the href of the first title link inside a search
// result box.
func firstResultLink(doc *html.Node) string {
	var link string
	var walk func(n *html.Node, inBox bool)
	walk = func(n *html.Node, inBox bool) {
		if link != "" {
			return
		}
		if n.Type == html.ElementNode {
			if n.Data == "div" && hasClass(n, "box") {
				inBox = true
			}
			if inBox && n.Data == "a" {
				if href := attr(n, "href"); strings.HasPrefix(href, "/") && href != "/" {
					link = href
					return
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inBox)
		}
	}
	walk(doc, false)
	return link
}

// extractNames pulls the canonical name and non-CJK alternate names from the
// page's JSON-LD metadata.
func extractNames(doc *html.Node) (string, []string) {
	var name string
	var aliases []string
	for _, raw := range jsonLDBlocks(doc) {
		var payload struct {
			Name          string          `json:"name"`
			AlternateName json.RawMessage `json:"alternateName"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		if payload.Name != "" && name == "" {
			name = payload.Name
		}
		for _, candidate := range decodeAlternateNames(payload.AlternateName) {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" || cjkPattern.MatchString(candidate) {
				continue
			}
			aliases = append(aliases, candidate)
		}
	}
	return name, dedupe(aliases)
}

// alternateName may be a single string or an array of strings.
func decodeAlternateNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	return nil
}

func extractVikiID(doc *html.Node) string {
	var id string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if id != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if match := vikiIDPattern.FindStringSubmatch(attr(n, "href")); match != nil {
				id = match[1]
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return id
}

func jsonLDBlocks(doc *html.Node) []string {
	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && attr(n, "type") == "application/ld+json" {
			if n.FirstChild != nil {
				blocks = append(blocks, n.FirstChild.Data)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return blocks
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, value := range values {
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}
