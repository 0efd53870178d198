package mode_s

import (
	"math"

	"ppup1090core/lib/geo"
)

// East/West and North/South sign bits for the velocity fields of an airborne
// velocity (ME type 19) message. Grounded on the well known dump1090-lineage
// constants (Regentag-go1090/mode_s/decoder.go: East=0, West=1, North=0, South=1).
const (
	East = 0
	West = 1

	North = 0
	South = 1
)

const (
	// cprAirborneSpan is the latitude span (degrees) an airborne CPR zone
	// index covers: the full globe, per spec.md §4.5's AirDlat0=360/60,
	// AirDlat1=360/59.
	cprAirborneSpan = 360.0
	// cprSurfaceSpan is the latitude span a surface CPR zone index covers:
	// one quadrant (360/4), since surface position messages only need
	// receiver-local resolution and rely on a reference position plus
	// quadrant rotation to recover the other three quadrants.
	cprSurfaceSpan = 360.0 / 4
	cprNbits       = 17 // CPR raw fields are 17 bits
)

// cprNL is the NL() "number of longitude zones" step function from the
// CPR spec: the count of longitude zones valid at a given latitude. It is
// computed rather than tabulated, matching the closed-form boundary
// equation every dump1090-lineage decoder derives its 59-row table from.
func cprNL(lat float64) int {
	if lat < 0 {
		lat = -lat
	}
	if lat < 10e-9 {
		return 59
	}
	if lat >= 87.0 {
		return 1
	}
	const nz = 15.0
	a := 1 - math.Cos(math.Pi/(2*nz))
	b := math.Pow(math.Cos(math.Pi/180*lat), 2)
	nl := 2 * math.Pi / math.Acos(1-a/b)
	return int(math.Floor(nl))
}

// cprMod is a mod operator that is always non-negative, as required by the
// CPR decode equations (Go's % can return negative results).
func cprMod(a, b int32) int32 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

// cprFloatMod is cprMod's float counterpart, used by the local decode's zone
// index equation (math.Mod can return a negative result for a negative
// dividend, same caveat as Go's integer %).
func cprFloatMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r < 0 {
		r += b
	}
	return r
}

// cprDlonFunc returns the longitude zone size in degrees for nl zones,
// clamped to a minimum of 1 zone.
func cprDlonFunc(nl int) float64 {
	if nl < 1 {
		nl = 1
	}
	return 360.0 / float64(nl)
}

// GlobalCPRDecode combines one even and one odd CPR-encoded position (spec.md
// §4.5) into an unambiguous lat/lon. evenLat/evenLon/oddLat/oddLon are the raw
// 17-bit fields; oddIsLatest selects which message's fflag/raw values form
// the returned (reference) position — true if the odd message is the most
// recent of the pair. surface selects the surface (90 degree span) zone size
// instead of the airborne (360 degree span) one; a surface decode also needs
// a receiver reference position (refLat/refLon) to resolve the quadrant the
// 90-degree span leaves ambiguous, via lib/geo's SurfaceQuadrant. refLat/
// refLon are ignored when surface is false.
func GlobalCPRDecode(evenLat, evenLon, oddLat, oddLon int32, oddIsLatest, surface bool, refLat, refLon float64) (lat, lon float64, ok bool) {
	span := cprAirborneSpan
	if surface {
		span = cprSurfaceSpan
	}
	airDlat0 := span / 60.0
	airDlat1 := span / 59.0

	cprLatEven := float64(evenLat) / 131072.0
	cprLatOdd := float64(oddLat) / 131072.0
	cprLonEven := float64(evenLon) / 131072.0
	cprLonOdd := float64(oddLon) / 131072.0

	j := int32(math.Floor(59*cprLatEven - 60*cprLatOdd + 0.5))

	rLat0 := airDlat0 * (float64(cprMod(j, 60)) + cprLatEven)
	rLat1 := airDlat1 * (float64(cprMod(j, 59)) + cprLatOdd)
	if rLat0 >= 270 {
		rLat0 -= 360
	}
	if rLat1 >= 270 {
		rLat1 -= 360
	}

	nlEven := cprNL(rLat0)
	nlOdd := cprNL(rLat1)
	if nlEven != nlOdd {
		// the two halves of the pair straddle a latitude zone boundary: the
		// pairing is stale and must be discarded rather than guessed at.
		return 0, 0, false
	}

	var lat0, lon0 float64
	if oddIsLatest {
		lat0 = rLat1
		ni := nlOdd - 1
		if ni < 1 {
			ni = 1
		}
		m := int32(math.Floor(cprLonEven*float64(nlOdd-1) - cprLonOdd*float64(nlOdd) + 0.5))
		lon0 = cprDlonFunc(ni) * (float64(cprMod(m, int32(ni))) + cprLonOdd)
	} else {
		lat0 = rLat0
		ni := nlEven
		if ni < 1 {
			ni = 1
		}
		m := int32(math.Floor(cprLonEven*float64(nlEven-1) - cprLonOdd*float64(nlEven) + 0.5))
		lon0 = cprDlonFunc(ni) * (float64(cprMod(m, int32(ni))) + cprLonEven)
	}
	if surface {
		lon0 = lon0 * cprSurfaceSpan / cprAirborneSpan
	}
	if lon0 > 180 {
		lon0 -= 360
	}

	if surface {
		lat0, lon0 = geo.SurfaceQuadrant(refLat, refLon, lat0, lon0)
	}

	return lat0, lon0, true
}

// LocalCPRDecode resolves a single CPR-encoded position relative to a known
// reference position (spec.md §4.5): j = floor(refLat/AirDlat) +
// trunc(0.5 + mod(refLat,AirDlat)/AirDlat - cprLat), and the longitude index
// m mirrors that same equation against refLon/dlon/cprLon. surface selects
// the surface (90 degree span) zone size instead of the airborne (360
// degree span) one, and additionally rotates the result into the quadrant
// nearest refLat/refLon via lib/geo's SurfaceQuadrant, since a surface fix
// only resolves lat/lon up to that ambiguity.
func LocalCPRDecode(raw Int17, refLat, refLon float64, surface, oddFormat bool) (lat, lon float64, ok bool) {
	cprLat := float64(raw.Lat) / 131072.0
	cprLon := float64(raw.Lon) / 131072.0

	span := cprAirborneSpan
	if surface {
		span = cprSurfaceSpan
	}

	var airDlat float64
	if oddFormat {
		airDlat = span / 59.0
	} else {
		airDlat = span / 60.0
	}

	j := int32(math.Floor(refLat/airDlat)) + int32(trunc(0.5+cprFloatMod(refLat, airDlat)/airDlat-cprLat))
	rLat := airDlat * (float64(j) + cprLat)

	nl := cprNL(rLat)
	if nl == 0 {
		return 0, 0, false
	}
	var oddOffset int
	if oddFormat {
		oddOffset = 1
	}
	dlon := cprDlonFunc(nl - oddOffset)
	if surface {
		dlon = dlon * cprSurfaceSpan / cprAirborneSpan
	}

	m := int32(math.Floor(refLon/dlon)) + int32(trunc(0.5+cprFloatMod(refLon, dlon)/dlon-cprLon))
	rLon := dlon * (float64(m) + cprLon)

	if surface {
		rLat, rLon = geo.SurfaceQuadrant(refLat, refLon, rLat, rLon)
	}

	return rLat, rLon, true
}

// Int17 is a pair of raw 17-bit CPR fields, used so LocalCPRDecode can take a
// single typed argument instead of two bare int32s.
type Int17 struct {
	Lat, Lon int32
}

// trunc truncates toward zero, matching C's trunc() rather than Go's
// math.Floor, per the reference algorithm's explicit reliance on that
// distinction for negative latitudes.
func trunc(f float64) float64 {
	if f < 0 {
		return math.Ceil(f)
	}
	return math.Floor(f)
}
