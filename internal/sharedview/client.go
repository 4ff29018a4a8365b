package sharedview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	fetchTimeout     = 30 * time.Second
	maxResponseBytes = 64 << 20
)

// Client fetches shared-view payloads. The zero value is not usable; use
// NewClient.
type Client struct {
	httpClient *http.Client
	cookie     string
	logger     *log.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithCookie attaches a session cookie for shares that require sign-in.
func WithCookie(cookie string) ClientOption {
	return func(c *Client) { c.cookie = cookie }
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchResult is one fetched and decoded shared-view response.
type FetchResult struct {
	URL         string
	StatusCode  int
	ContentType string
	Payload     map[string]any
}

// Fetch performs the readSharedViewData request described by cfg and decodes
// the response body by content type.
func (c *Client) Fetch(ctx context.Context, cfg RequestConfig) (*FetchResult, error) {
	endpoint, err := cfg.BuildURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, cfg)

	c.logger.Debug("fetching shared view", "view", cfg.ViewID, "share", cfg.ShareID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("shared view fetch returned %d: %s",
			resp.StatusCode, strings.TrimSpace(truncateBody(body)))
	}

	payload, err := decodePayload(contentType, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("shared view fetched",
		"status", resp.StatusCode, "content_type", contentType, "bytes", len(body))

	return &FetchResult{
		URL:         endpoint,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func (c *Client) setHeaders(req *http.Request, cfg RequestConfig) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36")
	req.Header.Set("X-Airtable-Application-Id", cfg.ApplicationID)
	req.Header.Set("X-Airtable-Inter-Service-Client", "webClient")
	req.Header.Set("X-Airtable-Page-Load-Id", newOpaqueID("pgl"))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Time-Zone", "UTC")
	req.Header.Set("X-User-Locale", "en-US")
	if cfg.AllowMsgpack {
		req.Header.Set("X-Airtable-Accept-Msgpack", "true")
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
