package tracker

import (
	"sync"
	"time"
)

// signalRingSize is the number of recent signal-level samples retained per
// aircraft (spec.md §3: "eight most recent signal amplitudes").
const signalRingSize = 8

// cprFreshnessWindow bounds how far apart an even/odd CPR pair may be
// captured and still be combined for a global decode (spec.md §3/§4.5).
const cprFreshnessWindow = 10 * time.Second

// cprSample is one half of a CPR position pair, captured with the
// device-domain timestamp it arrived at.
type cprSample struct {
	lat, lon int32
	surface  bool
	at       time.Time
	ok       bool
}

// Aircraft is the long-lived, per-ICAO track record described in spec.md §3.
type Aircraft struct {
	mu sync.RWMutex

	icao uint32

	seen      time.Time
	timestamp uint64 // device-domain timestamp of the most recent message
	messages  uint64

	signalLevel [signalRingSize]byte

	callsign string

	altitude      int32
	modeCAltitude int32 // quantised 100ft form, used for Mode A/C cross-tag comparisons
	validAltitude bool

	squawk      uint32
	validSquawk bool

	track        float64
	validTrack   bool
	speed        float64
	validSpeed   bool
	verticalRate int32
	validVRate   bool

	onGround      bool
	validOnGround bool

	lat, lon     float64
	latLonAt     time.Time
	latLonRelOK  bool // LATLON_REL_OK: this fix may anchor the next local CPR decode

	evenCPR, oddCPR cprSample

	// Mode A/C cross-tagging
	modeAHits   int
	modeCHits   int
	modeACOnly  bool // this record originated from a bare Mode A/C reply
	modesHit    bool // "probably matches a known Mode S track"
	modeCOld    bool

	bFlags uint32

	// next forms the insertion-ordered (most-recent-first) sequence
	// described in spec.md §3; the map in Tracker gives O(1) lookup, this
	// pointer preserves the recency-ordered walk the original linked list
	// supported.
	next *Aircraft
}

func newAircraft(icao uint32, now time.Time) *Aircraft {
	return &Aircraft{icao: icao, seen: now}
}

// Icao returns this record's 24-bit ICAO address.
func (a *Aircraft) Icao() uint32 { return a.icao }

// Snapshot returns a value copy of the record's externally visible fields,
// safe to hand to the uploader without holding the tracker lock (spec.md §5:
// "readers observe a consistent per-aircraft snapshot if they copy fields
// under a brief borrow").
func (a *Aircraft) Snapshot() AircraftSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	signals := make([]byte, signalRingSize)
	copy(signals, a.signalLevel[:])

	return AircraftSnapshot{
		Icao:         a.icao,
		Seen:         a.seen,
		Messages:     a.messages,
		SignalLevels: signals,
		Callsign:     a.callsign,
		Altitude:     a.altitude,
		HasAltitude:  a.validAltitude,
		Squawk:       a.squawk,
		HasSquawk:    a.validSquawk,
		Track:        a.track,
		Speed:        a.speed,
		VerticalRate: a.verticalRate,
		OnGround:     a.onGround,
		Lat:          a.lat,
		Lon:          a.lon,
		HasPosition:  !a.latLonAt.IsZero(),
		ModeACOnly:   a.modeACOnly,
		ModesHit:     a.modesHit,
	}
}

// AircraftSnapshot is an immutable, uploader-facing view of an Aircraft
// record, safe to retain after the tracker mutates the original.
type AircraftSnapshot struct {
	Icao         uint32
	Seen         time.Time
	Messages     uint64
	SignalLevels []byte
	Callsign     string
	Altitude     int32
	HasAltitude  bool
	Squawk       uint32
	HasSquawk    bool
	Track        float64
	Speed        float64
	VerticalRate int32
	OnGround     bool
	Lat, Lon     float64
	HasPosition  bool
	ModeACOnly   bool
	ModesHit     bool
}

// recordSignal pushes a new signal-level sample into the ring at
// messages mod signalRingSize, then increments messages (spec.md §4.4 step 3).
func (a *Aircraft) recordSignal(level byte) {
	a.signalLevel[a.messages%signalRingSize] = level
	a.messages++
}
