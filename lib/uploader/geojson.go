package uploader

import (
	"os"
	"sync"

	"github.com/kpawlik/geojson"

	"ppup1090core/lib/tracker"
)

// GeoJSONSink writes the live track set to a GeoJSON FeatureCollection file
// on every Post, overwriting the previous contents. Useful for feeding a
// static map viewer that just polls the file.
type GeoJSONSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewGeoJSONSink builds a sink that (re)writes path on every Post.
func NewGeoJSONSink(path string) *GeoJSONSink {
	return &GeoJSONSink{path: path}
}

func (g *GeoJSONSink) Open() error {
	f, err := os.Create(g.path)
	if err != nil {
		return err
	}
	g.file = f
	return nil
}

func (g *GeoJSONSink) Post(snapshots []tracker.AircraftSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	features := make([]*geojson.Feature, 0, len(snapshots))
	for _, ac := range snapshots {
		if !ac.HasPosition {
			continue
		}
		point := geojson.NewPoint(geojson.Coordinate{geojson.CoordType(ac.Lon), geojson.CoordType(ac.Lat)})
		props := map[string]interface{}{
			"icao":     aircraftIcaoHex(ac.Icao),
			"callsign": ac.Callsign,
			"squawk":   ac.Squawk,
			"onGround": ac.OnGround,
			"track":    ac.Track,
			"speed":    ac.Speed,
		}
		if ac.HasAltitude {
			props["altitude"] = ac.Altitude
		}
		features = append(features, geojson.NewFeature(point, props, nil))
	}
	collection := geojson.NewFeatureCollection(features)

	if _, err := g.file.Seek(0, 0); err != nil {
		return err
	}
	if err := g.file.Truncate(0); err != nil {
		return err
	}
	return json.NewEncoder(g.file).Encode(collection)
}

func (g *GeoJSONSink) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return nil
	}
	return g.file.Close()
}

func aircraftIcaoHex(icao uint32) string {
	const hexDigits = "0123456789ABCDEF"
	b := [6]byte{}
	for i := 5; i >= 0; i-- {
		b[i] = hexDigits[icao&0xF]
		icao >>= 4
	}
	return string(b[:])
}
