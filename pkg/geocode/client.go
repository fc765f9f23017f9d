// Package geocode provides rate-limited free-text place search against a
// Nominatim-compatible endpoint.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Result holds the best match for a search query, or Matched=false when the
// service definitively found nothing. A non-match is an answer, not an
// error; callers must not retry it.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Matched     bool
}

// Client performs one free-text lookup per call.
type Client interface {
	// Search returns the single best match for a free-text query.
	Search(ctx context.Context, query string) (*Result, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the Nominatim endpoint (tests point this at a local server).
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent with contact info.
func WithUserAgent(ua string) Option {
	return func(c *client) { c.userAgent = ua }
}

// WithCountryCodes restricts matches to a comma-separated country list.
func WithCountryCodes(cc string) Option {
	return func(c *client) { c.countryCodes = cc }
}

// WithMinInterval enforces a minimum delay between consecutive external
// calls. Burst is 1: calls serialize on the limiter by design.
func WithMinInterval(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

type client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a search Client. Defaults follow the public Nominatim
// usage policy: one request per second, 10s per-call timeout.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:      "https://nominatim.openstreetmap.org",
		userAgent:    "SF-Events-Map/1.0 (contact@sfeventsmap.dev)",
		countryCodes: "us",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
