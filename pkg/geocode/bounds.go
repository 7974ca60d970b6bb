package geocode

import (
	"github.com/twpayne/go-geom"
)

// canadaBounds is the lng/lat bounding box of Canada, from Boundary Peak in
// the Yukon to Cape Spear and from Middle Island to Cape Columbia.
var canadaBounds = geom.NewBounds(geom.XY).Set(-141.01, 41.67, -52.61, 83.12)

// WithinCanada reports whether a point lies inside Canada's bounding box.
// Coordinates outside it mean the provider matched the wrong place.
func WithinCanada(lat, lng float64) bool {
	return canadaBounds.OverlapsPoint(geom.XY, geom.Coord{lng, lat})
}
