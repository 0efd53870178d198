// Package geo provides the small set of great-circle geometry helpers the
// tracker needs: validating a configured reference position is plausibly
// close to the receiver (spec.md §6's "within 45nm"), and rotating a
// decoded surface position into the quadrant nearest that reference
// (spec.md §4.5's local CPR decode for ME type 5-8 ground reports).
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MaxReferenceDistanceNM is the spec.md §6 bound: a configured reference
// position further than this from a decoded fix likely means a bad
// --lat/--lon and the position should be treated with suspicion rather than
// trusted for surface-CPR quadrant selection.
const MaxReferenceDistanceNM = 45.0

const metresPerNM = 1852.0

// DistanceNM returns the great-circle distance between two lat/lon points,
// in nautical miles.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	a := orb.Point{lon1, lat1}
	b := orb.Point{lon2, lat2}
	return geo.Distance(a, b) / metresPerNM
}

// WithinReferenceRange reports whether a decoded fix sits within
// MaxReferenceDistanceNM of the configured reference position.
func WithinReferenceRange(refLat, refLon, lat, lon float64) bool {
	return DistanceNM(refLat, refLon, lat, lon) <= MaxReferenceDistanceNM
}

// SurfaceQuadrant resolves which of the four ambiguous surface-CPR solutions
// around a reference position is correct by picking the candidate closest to
// it (spec.md §4.5: surface position CPR only resolves lat/lon up to a
// quadrant, disambiguated using a receiver-local reference).
func SurfaceQuadrant(refLat, refLon, lat, lon float64) (float64, float64) {
	type candidate struct{ lat, lon float64 }
	candidates := []candidate{
		{lat, lon},
		{lat, lon + 90},
		{lat, lon + 180},
		{lat, lon + 270},
	}

	best := candidates[0]
	bestDist := math.MaxFloat64
	for _, c := range candidates {
		wrapped := wrapLongitude(c.lon)
		d := DistanceNM(refLat, refLon, c.lat, wrapped)
		if d < bestDist {
			bestDist = d
			best = candidate{c.lat, wrapped}
		}
	}
	return best.lat, best.lon
}

func wrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
