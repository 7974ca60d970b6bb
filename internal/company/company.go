// Package company defines the canonical company record and its closed value sets.
package company

import (
	"strconv"
)

// Column names shared by the staging source and the canonical dataset.
const (
	ColID           = "id"
	ColName         = "name"
	ColURL          = "url"
	ColIndustry     = "industry"
	ColRemotePolicy = "remote_policy"
	ColCity         = "city"
	ColProvince     = "province"
	ColLat          = "lat"
	ColLng          = "lng"
	ColDescription  = "description"
	ColTags         = "tags"
	ColHQAddress    = "hq_address"
)

// StagingColumns is the expected header of the staging source.
var StagingColumns = []string{
	ColName, ColURL, ColIndustry, ColRemotePolicy, ColCity, ColProvince,
	ColDescription, ColTags, ColHQAddress,
}

// CanonicalColumns is the header written for a new canonical dataset.
var CanonicalColumns = []string{
	ColID, ColName, ColURL, ColIndustry, ColRemotePolicy, ColCity, ColProvince,
	ColLat, ColLng, ColDescription, ColTags, ColHQAddress,
}

// RequiredColumns must be non-empty on every record.
var RequiredColumns = []string{
	ColName, ColURL, ColIndustry, ColRemotePolicy, ColCity, ColProvince,
}

// Record is one company entry of the canonical dataset.
type Record struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	URL          string       `json:"url" yaml:"url"`
	Industry     Industry     `json:"industry" yaml:"industry"`
	RemotePolicy RemotePolicy `json:"remote_policy" yaml:"remote_policy"`
	City         string       `json:"city" yaml:"city"`
	Province     Province     `json:"province" yaml:"province"`
	Lat          float64      `json:"lat" yaml:"lat"`
	Lng          float64      `json:"lng" yaml:"lng"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tags         string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	HQAddress    string       `json:"hq_address,omitempty" yaml:"hq_address,omitempty"`

	// Located is set once Lat/Lng come from a geocoding result.
	Located bool `json:"-" yaml:"-"`
}

// Field returns the record's value for a canonical column name.
func (r Record) Field(col string) string {
	switch col {
	case ColID:
		return r.ID
	case ColName:
		return r.Name
	case ColURL:
		return r.URL
	case ColIndustry:
		return string(r.Industry)
	case ColRemotePolicy:
		return string(r.RemotePolicy)
	case ColCity:
		return r.City
	case ColProvince:
		return string(r.Province)
	case ColLat:
		if !r.Located {
			return ""
		}
		return FormatCoord(r.Lat)
	case ColLng:
		if !r.Located {
			return ""
		}
		return FormatCoord(r.Lng)
	case ColDescription:
		return r.Description
	case ColTags:
		return r.Tags
	case ColHQAddress:
		return r.HQAddress
	default:
		return ""
	}
}

// Row renders the record in the given column order.
func (r Record) Row(header []string) []string {
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = r.Field(col)
	}
	return row
}

// FormatCoord renders a coordinate with six decimal places (~0.1 m).
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
