package normalize

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/pkg/geocode"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"Calgary", "calgary"},
		{"Montréal", "montreal"},
		{"Québec City", "quebec-city"},
		{"  Shopify, Inc.  ", "shopify-inc"},
		{"AT&T -- Canada", "att-canada"},
		{"AT&T", "att"},
		{"1Password", "1password"},
		{"St. John's", "st-johns"},
		{"O'Reilly Media", "oreilly-media"},
		{"Ada.ai", "adaai"},
		{"Hootsuite - Vancouver", "hootsuite-vancouver"},
		{"under_score", "under-score"},
		{"Burnaby, BC", "burnaby-bc"},
		{"!!!", ""},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestID_Shape(t *testing.T) {
	inputs := [][2]string{
		{"Acme Corp", "Calgary"},
		{"  Clio!! ", "Burnaby"},
		{"Hootsuite - Vancouver", "Vancouver"},
		{"Lightspeed", "Montréal"},
		{"D-Wave_Systems", "Burnaby, BC"},
	}
	for _, in := range inputs {
		id := ID(in[0], in[1])
		assert.Regexp(t, idPattern, id, "id for %q/%q", in[0], in[1])
	}
	assert.Equal(t, "acme-corp-calgary", ID("Acme Corp", "Calgary"))
}

func TestURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme.ca", "https://acme.ca"},
		{"acme.ca/", "https://acme.ca"},
		{"https://acme.ca/", "https://acme.ca"},
		{"https://acme.ca//", "https://acme.ca"},
		{"http://acme.ca", "http://acme.ca"},
		{"HTTPS://acme.ca/careers/", "https://acme.ca/careers"},
		{"  www.acme.ca/jobs?team=eng  ", "https://www.acme.ca/jobs?team=eng"},
		{"//acme.ca", "https://acme.ca"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := URL(tt.in)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.NotEqual(t, byte('/'), got[len(got)-1])
			}
		})
	}
}

func TestValidURL(t *testing.T) {
	valid := []string{
		"https://acme.ca",
		"http://acme.ca/path?q=1",
		"https://sub.acme.co.uk",
	}
	for _, u := range valid {
		assert.True(t, ValidURL(u), u)
	}
	invalid := []string{
		"",
		"https://localhost",
		"https://acme ca",
		"ftp://acme.ca",
		"https:",
		"https://.ca",
		URL("not a url"),
		URL("ftp://acme.ca"),
	}
	for _, u := range invalid {
		assert.False(t, ValidURL(u), u)
	}
}

type fakeGeocoder struct {
	results map[string]*geocode.Result
	err     error
	queries []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, query string) (*geocode.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[query]; ok {
		return r, nil
	}
	return &geocode.Result{Query: query}, nil
}

func calgaryRecord() company.Record {
	return company.Record{Name: "Acme Corp", City: "Calgary", Province: company.ProvinceAB}
}

func TestQuery(t *testing.T) {
	r := calgaryRecord()
	assert.Equal(t, "Calgary, AB, Canada", Query(r))

	r.HQAddress = "  100 7 Ave SW "
	assert.Equal(t, "100 7 Ave SW, Calgary, AB, Canada", Query(r))
	assert.Equal(t, "Calgary, AB, Canada", CityQuery(r))
}

func TestLocate_Match(t *testing.T) {
	g := &fakeGeocoder{results: map[string]*geocode.Result{
		"Calgary, AB, Canada": {Latitude: 51.0447, Longitude: -114.0719, Matched: true},
	}}
	lat, lng, err := NewLocator(g, LocatorOptions{}).Locate(context.Background(), calgaryRecord())
	require.NoError(t, err)
	assert.InDelta(t, 51.04, lat, 0.1)
	assert.InDelta(t, -114.07, lng, 0.1)
}

func TestLocate_NoResult(t *testing.T) {
	g := &fakeGeocoder{}
	_, _, err := NewLocator(g, LocatorOptions{}).Locate(context.Background(), calgaryRecord())

	var gf *GeocodingFailureError
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, "Calgary, AB, Canada", gf.Query)
	assert.Equal(t, "Calgary, AB, Canada", gf.Value())
	assert.Contains(t, err.Error(), "no result")
}

func TestLocate_LookupError(t *testing.T) {
	g := &fakeGeocoder{err: errors.New("status 503")}
	_, _, err := NewLocator(g, LocatorOptions{}).Locate(context.Background(), calgaryRecord())

	var gf *GeocodingFailureError
	require.ErrorAs(t, err, &gf)
	assert.Contains(t, err.Error(), "status 503")
}

func TestLocate_OutsideCanada(t *testing.T) {
	g := &fakeGeocoder{results: map[string]*geocode.Result{
		"Calgary, AB, Canada": {Latitude: 51.5072, Longitude: -0.1276, Matched: true},
	}}
	_, _, err := NewLocator(g, LocatorOptions{}).Locate(context.Background(), calgaryRecord())

	var gf *GeocodingFailureError
	require.ErrorAs(t, err, &gf)
	assert.Contains(t, gf.Reason, "outside Canada")
}

func TestLocate_FallbackToCity(t *testing.T) {
	g := &fakeGeocoder{results: map[string]*geocode.Result{
		"Calgary, AB, Canada": {Latitude: 51.0447, Longitude: -114.0719, Matched: true},
	}}
	r := calgaryRecord()
	r.HQAddress = "Nowhere Lane"

	lat, _, err := NewLocator(g, LocatorOptions{FallbackToCity: true}).Locate(context.Background(), r)
	require.NoError(t, err)
	assert.InDelta(t, 51.04, lat, 0.1)
	assert.Equal(t, []string{"Nowhere Lane, Calgary, AB, Canada", "Calgary, AB, Canada"}, g.queries)
}

func TestLocate_NoFallbackReportsAddressQuery(t *testing.T) {
	g := &fakeGeocoder{results: map[string]*geocode.Result{
		"Calgary, AB, Canada": {Latitude: 51.0447, Longitude: -114.0719, Matched: true},
	}}
	r := calgaryRecord()
	r.HQAddress = "Nowhere Lane"

	_, _, err := NewLocator(g, LocatorOptions{}).Locate(context.Background(), r)
	var gf *GeocodingFailureError
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, "Nowhere Lane, Calgary, AB, Canada", gf.Query)
	assert.Len(t, g.queries, 1)
}

func TestLocate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &fakeGeocoder{err: context.Canceled}

	_, _, err := NewLocator(g, LocatorOptions{FallbackToCity: true}).Locate(ctx, calgaryRecord())
	require.ErrorIs(t, err, context.Canceled)
	var gf *GeocodingFailureError
	assert.False(t, errors.As(err, &gf))
}
