package validate

import (
	"strings"
)

// MissingFieldError is a required field that is absent or blank.
type MissingFieldError struct {
	Name string
}

func (e *MissingFieldError) Error() string {
	return "missing required field " + e.Name
}

func (e *MissingFieldError) Field() string { return e.Name }
func (e *MissingFieldError) Value() string { return "" }

// InvalidEnumValueError is a value outside a closed set.
type InvalidEnumValueError struct {
	Name    string
	Got     string
	Allowed []string
}

func (e *InvalidEnumValueError) Error() string {
	return e.Name + ": invalid value \"" + e.Got + "\" (allowed: " + strings.Join(e.Allowed, ", ") + ")"
}

func (e *InvalidEnumValueError) Field() string { return e.Name }
func (e *InvalidEnumValueError) Value() string { return e.Got }

// InvalidURLError is a url that is not a usable http(s) address even after
// normalization.
type InvalidURLError struct {
	Got string
}

func (e *InvalidURLError) Error() string {
	return "url: malformed url \"" + e.Got + "\""
}

func (e *InvalidURLError) Field() string { return "url" }
func (e *InvalidURLError) Value() string { return e.Got }

// EmptySlugError is a name or city with no characters an id can be built from.
type EmptySlugError struct {
	Name string
	Got  string
}

func (e *EmptySlugError) Error() string {
	return e.Name + ": \"" + e.Got + "\" contains no letters or digits"
}

func (e *EmptySlugError) Field() string { return e.Name }
func (e *EmptySlugError) Value() string { return e.Got }

// InvalidCoordinatesError is a canonical record whose lat/lng are missing,
// unparseable or outside Canada.
type InvalidCoordinatesError struct {
	Lat, Lng string
	Reason   string
}

func (e *InvalidCoordinatesError) Error() string {
	return "lat/lng: " + e.Reason
}

func (e *InvalidCoordinatesError) Field() string { return "lat/lng" }
func (e *InvalidCoordinatesError) Value() string { return e.Lat + "," + e.Lng }

// Violation is one field-level problem with a record.
type Violation interface {
	error
	Field() string
	Value() string
}

// Violations collects every problem found in one record.
type Violations []Violation

func (v Violations) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual violations to errors.As.
func (v Violations) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}
