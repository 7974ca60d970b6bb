// Package validate checks staged and canonical company entries field by field.
// Every problem in a record is reported, not just the first.
package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/internal/normalize"
	"github.com/trilemmafoundation/canada-tech/internal/staging"
	"github.com/trilemmafoundation/canada-tech/pkg/geocode"
)

// Validate converts a staged row into a typed record with a normalized URL.
// ID and coordinates are left for the normalizer. On failure the error is a
// Violations and the record is the zero value.
func Validate(row staging.Row) (company.Record, error) {
	get := func(col string) string { return strings.TrimSpace(row.Get(col)) }

	var v Violations
	rec := company.Record{
		Name:        get(company.ColName),
		City:        get(company.ColCity),
		Description: get(company.ColDescription),
		Tags:        get(company.ColTags),
		HQAddress:   get(company.ColHQAddress),
	}
	v = append(v, checkFields(get, &rec)...)

	if rec.Name != "" && normalize.Slug(rec.Name) == "" {
		v = append(v, &EmptySlugError{Name: company.ColName, Got: rec.Name})
	}
	if rec.City != "" && normalize.Slug(rec.City) == "" {
		v = append(v, &EmptySlugError{Name: company.ColCity, Got: rec.City})
	}

	if len(v) > 0 {
		return company.Record{}, v
	}
	return rec, nil
}

// checkFields runs the required, enum and URL checks shared by staged and
// canonical entries, filling rec's typed fields as it goes.
func checkFields(get func(string) string, rec *company.Record) Violations {
	var v Violations
	for _, col := range company.RequiredColumns {
		if get(col) == "" {
			v = append(v, &MissingFieldError{Name: col})
		}
	}

	if raw := get(company.ColIndustry); raw != "" {
		if ind, ok := company.ParseIndustry(raw); ok {
			rec.Industry = ind
		} else {
			v = append(v, &InvalidEnumValueError{
				Name: company.ColIndustry, Got: raw, Allowed: company.Strings(company.Industries),
			})
		}
	}
	if raw := get(company.ColRemotePolicy); raw != "" {
		if rp, ok := company.ParseRemotePolicy(raw); ok {
			rec.RemotePolicy = rp
		} else {
			v = append(v, &InvalidEnumValueError{
				Name: company.ColRemotePolicy, Got: raw, Allowed: company.Strings(company.RemotePolicies),
			})
		}
	}
	if raw := get(company.ColProvince); raw != "" {
		if p, ok := company.ParseProvince(raw); ok {
			rec.Province = p
		} else {
			v = append(v, &InvalidEnumValueError{
				Name: company.ColProvince, Got: raw, Allowed: company.Strings(company.Provinces),
			})
		}
	}

	if raw := get(company.ColURL); raw != "" {
		u := normalize.URL(raw)
		if normalize.ValidURL(u) {
			rec.URL = u
		} else {
			v = append(v, &InvalidURLError{Got: raw})
		}
	}
	return v
}

// ValidateCanonical re-checks a row already in the canonical dataset, keyed by
// column name. Beyond the staging checks it requires a slug-shaped id, the
// url stored normalized and coordinates inside Canada. Ids are immutable, so
// an id that no longer matches a renamed company is not an error.
func ValidateCanonical(values map[string]string) (company.Record, error) {
	get := func(col string) string { return strings.TrimSpace(values[col]) }

	rec := company.Record{
		ID:          get(company.ColID),
		Name:        get(company.ColName),
		City:        get(company.ColCity),
		Description: get(company.ColDescription),
		Tags:        get(company.ColTags),
		HQAddress:   get(company.ColHQAddress),
	}
	v := checkFields(get, &rec)

	if rec.ID == "" {
		v = append(v, &MissingFieldError{Name: company.ColID})
	} else if !idPattern.MatchString(rec.ID) {
		v = append(v, &InvalidIDError{Got: rec.ID})
	}

	if raw := get(company.ColURL); raw != "" && rec.URL != "" && raw != rec.URL {
		v = append(v, &UnnormalizedURLError{Got: raw, Want: rec.URL})
	}

	if cv := checkCoordinates(get(company.ColLat), get(company.ColLng), &rec); cv != nil {
		v = append(v, cv)
	}

	if len(v) > 0 {
		return rec, v
	}
	return rec, nil
}

func checkCoordinates(latRaw, lngRaw string, rec *company.Record) Violation {
	if latRaw == "" || lngRaw == "" {
		return &InvalidCoordinatesError{Lat: latRaw, Lng: lngRaw, Reason: "not populated"}
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lng, errLng := strconv.ParseFloat(lngRaw, 64)
	if errLat != nil || errLng != nil {
		return &InvalidCoordinatesError{Lat: latRaw, Lng: lngRaw, Reason: "not a number"}
	}
	if !geocode.WithinCanada(lat, lng) {
		return &InvalidCoordinatesError{Lat: latRaw, Lng: lngRaw, Reason: "outside Canada"}
	}
	rec.Lat, rec.Lng, rec.Located = lat, lng, true
	return nil
}

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// InvalidIDError is a canonical id that is not a lowercase hyphenated slug.
type InvalidIDError struct {
	Got string
}

func (e *InvalidIDError) Error() string {
	return "id: \"" + e.Got + "\" is not a slug"
}

func (e *InvalidIDError) Field() string { return company.ColID }
func (e *InvalidIDError) Value() string { return e.Got }

// UnnormalizedURLError is a canonical url stored in a non-normalized form.
type UnnormalizedURLError struct {
	Got, Want string
}

func (e *UnnormalizedURLError) Error() string {
	return "url: \"" + e.Got + "\" is not normalized (want \"" + e.Want + "\")"
}

func (e *UnnormalizedURLError) Field() string { return company.ColURL }
func (e *UnnormalizedURLError) Value() string { return e.Got }
