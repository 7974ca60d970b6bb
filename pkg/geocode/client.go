// Package geocode resolves free-text place descriptions to coordinates via
// Nominatim (primary) and Google (fallback).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trilemmafoundation/canada-tech/internal/resilience"
)

// Client resolves a free-text query to a location.
type Client interface {
	// Geocode returns Matched=false, not an error, when nothing was found.
	// Errors mean the lookup itself failed.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Query       string
	Latitude    float64
	Longitude   float64
	Source      string // "nominatim" or "google"
	DisplayName string
	Matched     bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithNominatimURL points the primary provider at another Nominatim instance.
func WithNominatimURL(baseURL string) Option {
	return func(g *geocoder) {
		if strings.TrimSpace(baseURL) != "" {
			g.nominatimURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim, which its usage
// policy requires to identify the application.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithGoogleAPIKey enables the Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets the HTTP client used for every provider.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		if hc != nil {
			g.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithTimeout bounds each individual request.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetry sets the retry policy applied to transient provider failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

type geocoder struct {
	httpClient   *http.Client
	nominatimURL string
	userAgent    string
	googleKey    string
	limiter      *rate.Limiter
	timeout      time.Duration
	retry        resilience.RetryConfig
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{},
		nominatimURL: DefaultNominatimURL,
		userAgent:    "canada-tech-repo",
		limiter:      rate.NewLimiter(1, 1), // Nominatim policy: at most 1 req/s
		timeout:      10 * time.Second,
		retry:        resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode tries Nominatim first, then Google if configured. A definitive
// "not found" from any provider wins over a failure of another one.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return &Result{Query: query, Matched: false}, nil
	}

	result, nomErr := g.withRetry(ctx, "nominatim", query, g.geocodeNominatim)
	if nomErr == nil && result.Matched {
		return result, nil
	}
	if nomErr != nil {
		zap.L().Debug("geocode: nominatim failed",
			zap.String("query", query),
			zap.Error(nomErr),
		)
	}

	if g.googleKey != "" {
		googleResult, googleErr := g.withRetry(ctx, "google", query, g.geocodeGoogle)
		if googleErr == nil {
			return googleResult, nil
		}
		zap.L().Debug("geocode: google failed",
			zap.String("query", query),
			zap.Error(googleErr),
		)
		if nomErr == nil {
			return result, nil
		}
	}

	if nomErr != nil {
		return nil, nomErr
	}
	return result, nil
}

type lookupFunc func(ctx context.Context, query string) (*Result, error)

// withRetry runs one provider lookup under the rate limit, a per-attempt
// timeout and the retry policy.
func (g *geocoder) withRetry(ctx context.Context, provider, query string, lookup lookupFunc) (*Result, error) {
	cfg := g.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(provider, "geocode")
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return lookup(attemptCtx, query)
	})
}
