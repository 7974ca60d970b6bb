package normalize

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/pkg/geocode"
)

// GeocodingFailureError means a record's location could not be resolved.
type GeocodingFailureError struct {
	Query  string
	Reason string
	Err    error
}

func (e *GeocodingFailureError) Error() string {
	msg := "geocoding failed for " + quote(e.Query) + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GeocodingFailureError) Unwrap() error { return e.Err }

// Field names the inputs the query was built from.
func (e *GeocodingFailureError) Field() string { return "location" }

// Value is the query sent to the geocoder.
func (e *GeocodingFailureError) Value() string { return e.Query }

func quote(s string) string { return `"` + s + `"` }

// LocatorOptions configures a Locator.
type LocatorOptions struct {
	// FallbackToCity retries with the city query when an hq_address query
	// finds nothing.
	FallbackToCity bool
}

// Locator resolves records to coordinates through a geocoding client.
type Locator struct {
	client geocode.Client
	opts   LocatorOptions
}

// NewLocator creates a Locator. Wrap client in a geocode.CachedClient to
// avoid repeated lookups for records that share a city.
func NewLocator(client geocode.Client, opts LocatorOptions) *Locator {
	return &Locator{client: client, opts: opts}
}

// Query is the preferred geocoding query for r: the HQ address when one is
// given, the city otherwise.
func Query(r company.Record) string {
	if addr := strings.TrimSpace(r.HQAddress); addr != "" {
		return addr + ", " + r.City + ", " + string(r.Province) + ", Canada"
	}
	return CityQuery(r)
}

// CityQuery is the city-level query for r.
func CityQuery(r company.Record) string {
	return r.City + ", " + string(r.Province) + ", Canada"
}

// Locate returns r's coordinates. Misses, lookup errors and points outside
// Canada are reported as *GeocodingFailureError. A cancelled ctx is returned
// as is.
func (l *Locator) Locate(ctx context.Context, r company.Record) (lat, lng float64, err error) {
	query := Query(r)
	lat, lng, err = l.lookup(ctx, query)
	if err == nil {
		return lat, lng, nil
	}
	if ctx.Err() != nil {
		return 0, 0, ctx.Err()
	}

	cityQuery := CityQuery(r)
	if !l.opts.FallbackToCity || cityQuery == query {
		return 0, 0, err
	}
	zap.L().Debug("geocode: falling back to city",
		zap.String("query", query),
		zap.String("fallback", cityQuery),
	)
	lat, lng, cityErr := l.lookup(ctx, cityQuery)
	if cityErr == nil {
		return lat, lng, nil
	}
	if ctx.Err() != nil {
		return 0, 0, ctx.Err()
	}
	return 0, 0, err
}

func (l *Locator) lookup(ctx context.Context, query string) (float64, float64, error) {
	res, err := l.client.Geocode(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		return 0, 0, &GeocodingFailureError{Query: query, Reason: "lookup error", Err: err}
	}
	if res == nil || !res.Matched {
		return 0, 0, &GeocodingFailureError{Query: query, Reason: "no result"}
	}
	if !geocode.WithinCanada(res.Latitude, res.Longitude) {
		return 0, 0, &GeocodingFailureError{
			Query:  query,
			Reason: "result outside Canada (" + company.FormatCoord(res.Latitude) + ", " + company.FormatCoord(res.Longitude) + ")",
		}
	}
	return res.Latitude, res.Longitude, nil
}
