package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calgaryJSON = `[{"lat":"51.0460954","lon":"-114.065465","display_name":"Calgary, Alberta, Canada"}]`

func newNominatimServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNominatim_Match(t *testing.T) {
	var gotUA, gotQuery, gotCountry string
	srv := newNominatimServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		gotCountry = r.URL.Query().Get("countrycodes")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, calgaryJSON)
	})

	c := NewClient(WithNominatimURL(srv.URL), WithUserAgent("test-agent"), WithRateLimit(0), WithRetry(testRetry()))
	result, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, "nominatim", result.Source)
	assert.Equal(t, "Calgary, AB, Canada", result.Query)
	assert.InDelta(t, 51.046, result.Latitude, 0.001)
	assert.InDelta(t, -114.065, result.Longitude, 0.001)
	assert.Equal(t, "Calgary, Alberta, Canada", result.DisplayName)

	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "Calgary, AB, Canada", gotQuery)
	assert.Equal(t, "ca", gotCountry)
}

func TestNominatim_NoMatch(t *testing.T) {
	srv := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(0), WithRetry(testRetry()))
	result, err := c.Geocode(context.Background(), "Nowhere, ZZ, Canada")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestNominatim_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, calgaryJSON)
	})

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(0), WithRetry(testRetry()))
	result, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNominatim_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(0), WithRetry(testRetry()))
	_, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestNominatim_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(0), WithRetry(testRetry()))
	_, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNominatim_Timeout(t *testing.T) {
	var calls atomic.Int32
	srv := newNominatimServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	c := NewClient(
		WithNominatimURL(srv.URL),
		WithRateLimit(0),
		WithRetry(testRetry()),
		WithTimeout(20*time.Millisecond),
	)
	_, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "timeouts are transient and retried")
}

func TestNominatim_BadJSON(t *testing.T) {
	srv := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	})

	c := NewClient(WithNominatimURL(srv.URL), WithRateLimit(0), WithRetry(testRetry()))
	_, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestGeocode_EmptyQuery(t *testing.T) {
	c := NewClient(WithNominatimURL("http://127.0.0.1:0"), WithRateLimit(0))
	result, err := c.Geocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_GoogleFallbackOnNoMatch(t *testing.T) {
	nominatim := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	var gotKey, gotRegion string
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotRegion = r.URL.Query().Get("region")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 45.4215, "lng": -75.6972}},
				"formatted_address": "Ottawa, ON, Canada"
			}]
		}`)
	}))
	defer google.Close()

	c := NewClient(
		WithNominatimURL(nominatim.URL),
		WithGoogleAPIKey("test-key"),
		WithHTTPClient(newRewriteClient(google.URL, googleGeocodeURL)),
		WithRateLimit(0),
		WithRetry(testRetry()),
	)

	result, err := c.Geocode(context.Background(), "1 Wellington St, Ottawa, ON, Canada")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "google", result.Source)
	assert.InDelta(t, 45.4215, result.Latitude, 0.0001)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "ca", gotRegion)
}

func TestGeocode_GoogleFallbackOnNominatimError(t *testing.T) {
	nominatim := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer google.Close()

	c := NewClient(
		WithNominatimURL(nominatim.URL),
		WithGoogleAPIKey("test-key"),
		WithHTTPClient(newRewriteClient(google.URL, googleGeocodeURL)),
		WithRateLimit(0),
		WithRetry(testRetry()),
	)

	result, err := c.Geocode(context.Background(), "Atlantis, NS, Canada")
	require.NoError(t, err, "a definitive miss from google wins over the nominatim failure")
	assert.False(t, result.Matched)
	assert.Equal(t, "google", result.Source)
}

func TestGeocode_BothProvidersFail(t *testing.T) {
	nominatim := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer google.Close()

	c := NewClient(
		WithNominatimURL(nominatim.URL),
		WithGoogleAPIKey("test-key"),
		WithHTTPClient(newRewriteClient(google.URL, googleGeocodeURL)),
		WithRateLimit(0),
		WithRetry(testRetry()),
	)

	_, err := c.Geocode(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nominatim returned status 503")
}

func TestGoogle_RequestDenied(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "REQUEST_DENIED", "results": []}`)
	}))
	defer google.Close()

	g := NewClient(
		WithGoogleAPIKey("bad-key"),
		WithHTTPClient(newRewriteClient(google.URL, googleGeocodeURL)),
	).(*geocoder)

	_, err := g.geocodeGoogle(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGoogle_NoKey(t *testing.T) {
	g := NewClient().(*geocoder)
	_, err := g.geocodeGoogle(context.Background(), "Calgary, AB, Canada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestWithinCanada(t *testing.T) {
	assert.True(t, WithinCanada(51.0447, -114.0719), "Calgary")
	assert.True(t, WithinCanada(47.5615, -52.7126), "St. John's")
	assert.True(t, WithinCanada(82.5018, -62.3481), "Alert, NU")
	assert.False(t, WithinCanada(51.5072, -0.1276), "London, UK")
	assert.False(t, WithinCanada(-33.8688, 151.2093), "Sydney")
	assert.False(t, WithinCanada(0, 0))
}
