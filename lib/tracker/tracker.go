package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ppup1090core/lib/geo"
	"ppup1090core/lib/tracker/beast"
	"ppup1090core/lib/tracker/mode_s"
)

const (
	// defaultDeleteTTL is "interactive_delete_ttl" from spec.md §6.
	defaultDeleteTTL = 300 * time.Second
	// defaultReferenceTTL is "interactive_display_ttl": beyond this age a
	// prior fix is not reused as a surface-CPR reference.
	defaultReferenceTTL = 60 * time.Second
)

type trackerMetrics struct {
	framesTotal   *prometheus.CounterVec
	aircraftGauge prometheus.Gauge
	sweepsTotal   prometheus.Counter
	modeACTagsHit prometheus.Counter
}

func newTrackerMetrics(namespace string) *trackerMetrics {
	return &trackerMetrics{
		framesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Decoded frames processed by the tracker, by outcome.",
		}, []string{"result"}),
		aircraftGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aircraft_live",
			Help:      "Number of aircraft records currently tracked.",
		}),
		sweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staleness_sweeps_total",
			Help:      "Number of staleness sweeps actually performed (not skipped due to lock contention).",
		}),
		modeACTagsHit: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_ac_tags_total",
			Help:      "Mode A/C replies successfully cross-tagged to a Mode S track.",
		}),
	}
}

// Tracker is the aircraft-tracking state machine of spec.md §4.4: it owns
// the live ICAO→Aircraft map, the frame log, and the staleness sweep. It
// replaces the original's global `Modes` struct with a single value the
// caller owns and threads through explicitly (spec.md §9's design note
// against hidden singleton state).
type Tracker struct {
	mu         sync.RWMutex
	aircraft   map[uint32]*Aircraft
	head       *Aircraft // most-recent-first, mirrors the original linked list's recency walk
	log        *frameLog
	seen       *seenIndex

	modeACEnabled bool
	deleteTTL     time.Duration
	referenceTTL  time.Duration

	refLat, refLon float64
	refValid       bool

	lastSweep time.Time

	metrics *trackerMetrics
	logger  zerolog.Logger
}

// Option configures a Tracker at construction time.
type Option func(*Tracker)

// WithModeAC toggles ingestion of bare Mode A/C short replies (DF32),
// spec.md §6's "mode_ac" option (default on).
func WithModeAC(enabled bool) Option {
	return func(t *Tracker) { t.modeACEnabled = enabled }
}

// WithDeleteTTL overrides the staleness sweep's retention window.
func WithDeleteTTL(ttl time.Duration) Option {
	return func(t *Tracker) { t.deleteTTL = ttl }
}

// WithReferenceTTL overrides how long a prior fix may be reused as a local
// CPR reference before falling back to the configured user position.
func WithReferenceTTL(ttl time.Duration) Option {
	return func(t *Tracker) { t.referenceTTL = ttl }
}

// WithReferencePosition sets the receiver's reference lat/lon (spec.md §6:
// "fUserLat, fUserLon"), required for surface CPR and useful as a fallback
// local-CPR reference for airborne positions. A position with both values
// zero, a latitude outside [-90,90] or a longitude outside [-180,360] is
// ignored and leaves the Tracker without a reference.
func WithReferencePosition(lat, lon float64) Option {
	return func(t *Tracker) {
		if (lat == 0 && lon == 0) || lat < -90 || lat > 90 || lon < -180 || lon > 360 {
			return
		}
		t.refLat, t.refLon = normalizeReference(lat, lon)
		t.refValid = true
	}
}

// WithMetricsNamespace sets the prometheus metric namespace prefix; callers
// creating more than one Tracker in a process must give each a distinct
// namespace to avoid a duplicate-registration panic.
func WithMetricsNamespace(ns string) Option {
	return func(t *Tracker) { t.metrics = newTrackerMetrics(ns) }
}

// normalizeReference normalises a reference position that
// WithReferencePosition has already range-checked: a longitude in (180,360]
// is wrapped by subtracting 360; latitude is returned unchanged.
func normalizeReference(lat, lon float64) (float64, float64) {
	if lon > 180 && lon <= 360 {
		lon -= 360
	}
	return lat, lon
}

// New builds a ready-to-use Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		aircraft:      make(map[uint32]*Aircraft),
		log:           newFrameLog(),
		seen:          newSeenIndex(),
		modeACEnabled: true,
		deleteTTL:     defaultDeleteTTL,
		referenceTTL:  defaultReferenceTTL,
		logger:        log.With().Str("section", "tracker").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = newTrackerMetrics("tracker")
	}
	return t
}

func (t *Tracker) String() string          { return "Aircraft Tracker" }
func (t *Tracker) HealthCheckName() string { return "Aircraft Tracker" }
func (t *Tracker) HealthCheck() bool       { return true }

// Handle implements the Handler pipeline convention: it folds a decoded
// Frame into the track set and passes the Frame through unchanged so
// downstream stages (the uploader) can still inspect the raw message.
func (t *Tracker) Handle(fe *FrameEvent) Frame {
	if fe == nil {
		return nil
	}
	frame := fe.Frame()
	if frame == nil {
		return nil
	}

	var avr *mode_s.Frame
	switch v := frame.(type) {
	case *beast.Frame:
		avr = v.AvrFrame()
	case *mode_s.Frame:
		avr = v
	default:
		return frame
	}
	if avr == nil || !avr.CrcOK() {
		t.metrics.framesTotal.WithLabelValues("crc_fail").Inc()
		return frame
	}

	now := avr.TimeStamp()
	if now.IsZero() {
		now = time.Now()
	}

	if avr.DownLinkType() == 32 {
		if t.modeACEnabled {
			t.handleModeAC(avr, now)
		}
		t.metrics.framesTotal.WithLabelValues("mode_ac").Inc()
		return frame
	}

	t.handleModeS(avr, avr.RawBytes(), now)
	t.metrics.framesTotal.WithLabelValues("ok").Inc()
	return frame
}

// handleModeS implements spec.md §4.4 steps 1-6 for a CRC-valid Mode S
// message.
func (t *Tracker) handleModeS(avr *mode_s.Frame, raw []byte, now time.Time) {
	icao := avr.Icao()

	t.mu.Lock()
	ac, existed := t.aircraft[icao]
	if !existed {
		ac = newAircraft(icao, now)
		t.aircraft[icao] = ac
		ac.next = t.head
		t.head = ac
	}
	t.mu.Unlock()

	ac.mu.Lock()
	ac.recordSignal(avr.SignalLevel())
	ac.seen = now
	ac.timestamp = avr.BeastTicks()
	t.mergeFields(ac, avr, now)
	ac.mu.Unlock()

	t.seen.touch(icao, now)
	t.log.append(icao, raw, avr.BeastTicks(), now, ac)

	if !t.modeACEnabled {
		return
	}
	t.crossTagModeS(ac)
}

// mergeFields copies every populated field of avr into ac, applying the
// reset rules from spec.md §4.4 step 4 and running CPR decode on new
// position samples (step 5).
func (t *Tracker) mergeFields(ac *Aircraft, avr *mode_s.Frame, now time.Time) {
	if cs, ok := avr.Callsign(); ok {
		ac.callsign = cs
	}

	if alt, ok := avr.Altitude(); ok {
		if !ac.validAltitude || alt != ac.altitude {
			ac.modeCHits = 0
			ac.modeCOld = false
		}
		ac.altitude = alt
		ac.modeCAltitude = quantiseModeC(alt)
		ac.validAltitude = true
	}

	if sq, ok := avr.Squawk(); ok {
		if !ac.validSquawk || sq != ac.squawk {
			ac.modeAHits = 0
		}
		ac.squawk = sq
		ac.validSquawk = true
	}

	if og, ok := avr.OnGround(); ok {
		if !ac.validOnGround || og != ac.onGround {
			ac.evenCPR = cprSample{}
			ac.oddCPR = cprSample{}
		}
		ac.onGround = og
		ac.validOnGround = true
	}

	if vr, ok := avr.VerticalRate(); ok {
		ac.verticalRate = vr
		ac.validVRate = true
	}
	if heading, ok := avr.Heading(); ok {
		ac.track = heading
		ac.validTrack = true
	}
	if speed, ok := avr.Speed(); ok {
		ac.speed = speed
		ac.validSpeed = true
	}

	ac.bFlags |= avr.BFlags()

	if lat, lon, odd, surface, ok := avr.RawCPR(); ok {
		t.applyCPR(ac, lat, lon, odd, surface, now)
	}
}

// quantiseModeC rounds a feet altitude to the nearest 100ft "Mode C" form
// used for Mode A/C cross-tag comparisons (spec.md §3/§4.4).
func quantiseModeC(altitudeFeet int32) int32 {
	if altitudeFeet >= 0 {
		return (altitudeFeet + 50) / 100 * 100
	}
	return -((-altitudeFeet + 50) / 100 * 100)
}

// applyCPR stores a new raw CPR half and attempts global or local decode per
// spec.md §4.4 step 5 / §4.5.
func (t *Tracker) applyCPR(ac *Aircraft, lat, lon int32, odd, surface bool, now time.Time) {
	sample := cprSample{lat: lat, lon: lon, surface: surface, at: now, ok: true}
	if odd {
		ac.oddCPR = sample
	} else {
		ac.evenCPR = sample
	}

	if ac.evenCPR.ok && ac.oddCPR.ok && ac.evenCPR.surface == ac.oddCPR.surface {
		diff := ac.evenCPR.at.Sub(ac.oddCPR.at)
		if diff < 0 {
			diff = -diff
		}
		if diff <= cprFreshnessWindow {
			refLat, refLon, haveRef := t.localReference(ac, now)
			if !surface || haveRef {
				if lt, ln, ok := mode_s.GlobalCPRDecode(ac.evenCPR.lat, ac.evenCPR.lon, ac.oddCPR.lat, ac.oddCPR.lon, odd, surface, refLat, refLon); ok {
					if t.refValid && !geo.WithinReferenceRange(t.refLat, t.refLon, lt, ln) {
						t.logger.Warn().
							Uint32("icao", ac.icao).
							Float64("lat", lt).Float64("lon", ln).
							Float64("ref_lat", t.refLat).Float64("ref_lon", t.refLon).
							Msg("decoded position implausibly far from configured reference")
					}
					ac.lat, ac.lon = lt, ln
					ac.latLonAt = now
					ac.latLonRelOK = true
					return
				}
			}
		}
	}

	t.localCPR(ac, sample, odd, now)
}

// localCPR resolves a single CPR half against the aircraft's own last fix
// (if still usable) or the configured reference position, per spec.md §4.5.
func (t *Tracker) localCPR(ac *Aircraft, sample cprSample, odd bool, now time.Time) {
	refLat, refLon, haveRef := t.localReference(ac, now)
	if !haveRef {
		return
	}

	lt, ln, ok := mode_s.LocalCPRDecode(mode_s.Int17{Lat: sample.lat, Lon: sample.lon}, refLat, refLon, sample.surface, odd)
	if !ok {
		ac.latLonRelOK = false
		return
	}

	if ac.latLonAt.IsZero() {
		ac.lat, ac.lon = lt, ln
		ac.latLonAt = now
		ac.latLonRelOK = true
		return
	}

	ac.lat, ac.lon = lt, ln
	ac.latLonAt = now
	ac.latLonRelOK = true
}

// localReference picks the reference position for local CPR: the
// aircraft's own last fix if it's still flagged usable and fresh, else the
// receiver's configured position.
func (t *Tracker) localReference(ac *Aircraft, now time.Time) (lat, lon float64, ok bool) {
	if ac.latLonRelOK && !ac.latLonAt.IsZero() && now.Sub(ac.latLonAt) <= t.referenceTTL {
		return ac.lat, ac.lon, true
	}
	if t.refValid {
		return t.refLat, t.refLon, true
	}
	return 0, 0, false
}

// handleModeAC ingests a bare Mode A/C short reply (DF32) and attempts to
// cross-tag it to an existing Mode S track (spec.md §4.4 "Mode A/C
// cross-tagging").
func (t *Tracker) handleModeAC(avr *mode_s.Frame, now time.Time) {
	squawk, hasSquawk := avr.Squawk()
	altitude, hasAltitude := avr.Altitude()

	t.mu.RLock()
	candidates := make([]*Aircraft, 0, len(t.aircraft))
	for _, ac := range t.aircraft {
		candidates = append(candidates, ac)
	}
	t.mu.RUnlock()

	modeCAlt := int32(0)
	if hasAltitude {
		modeCAlt = quantiseModeC(altitude)
	}

	var tagged bool
	for _, ac := range candidates {
		ac.mu.Lock()
		matchedA := hasSquawk && ac.validSquawk && ac.squawk == squawk
		// Mode C matches within one 100ft quantum of the track's quantised
		// modeCAltitude, not of its raw altitude.
		matchedC := hasAltitude && ac.validAltitude &&
			(modeCAlt == ac.modeCAltitude || modeCAlt == ac.modeCAltitude+100 || modeCAlt == ac.modeCAltitude-100)

		if matchedA {
			ac.modeAHits++
			if ac.modeCHits > 1 || ac.modeACOnly {
				ac.modesHit = true
				tagged = true
			}
		}
		if matchedC {
			ac.modeCHits++
			if matchedA {
				ac.modesHit = true
				ac.modeCOld = true
				tagged = true
			}
		}
		if matchedA && ac.validAltitude && modeCAlt != ac.modeCAltitude {
			ac.modeCOld = false
			ac.messages = 1
		}
		ac.mu.Unlock()
	}
	if tagged {
		t.metrics.modeACTagsHit.Inc()
	}
}

// crossTagModeS runs after every Mode S message while Mode A/C ingestion is
// enabled and does nothing: cross-tagging happens only in handleModeAC,
// when a DF32 reply is compared against the Mode S tracks.
func (t *Tracker) crossTagModeS(ac *Aircraft) {
	// Mode S tracks don't need the DF32 cross-tag pass themselves; the
	// asymmetric tagging (DF32 reply scanning Mode-S tracks) in
	// handleModeAC is the behaviour spec.md §4.4 actually describes.
	_ = ac
}

// SweepStaleness prunes any aircraft untouched for longer than the delete
// TTL, along with its frame-log entries (spec.md §3 "Lifecycles", §4.4
// "Staleness sweep"). Safe to call at most once per second; a lock
// contention on the frame log simply skips that portion of the sweep.
func (t *Tracker) SweepStaleness(now time.Time) {
	if !t.lastSweep.IsZero() && now.Sub(t.lastSweep) < time.Second {
		return
	}
	t.lastSweep = now

	cutoff := now.Add(-t.deleteTTL)
	stale := t.seen.stale(cutoff)
	if len(stale) == 0 {
		return
	}

	t.mu.Lock()
	for _, icao := range stale {
		delete(t.aircraft, icao)
		t.seen.remove(icao)
	}
	t.rebuildHeadLocked()
	t.mu.Unlock()

	for _, icao := range stale {
		t.log.removeEntriesForICAO(icao)
	}

	skipped := t.log.pruneStale(now, t.deleteTTL)
	if !skipped {
		t.metrics.sweepsTotal.Inc()
	}
	t.metrics.aircraftGauge.Set(float64(len(t.aircraft)))
}

// rebuildHeadLocked reconstructs the most-recent-first linked walk after a
// sweep removes entries from the middle. Caller must hold t.mu.
func (t *Tracker) rebuildHeadLocked() {
	var head, prev *Aircraft
	for ac := t.head; ac != nil; ac = ac.next {
		if t.aircraft[ac.icao] != ac {
			continue
		}
		if head == nil {
			head = ac
		}
		if prev != nil {
			prev.next = ac
		}
		prev = ac
	}
	if prev != nil {
		prev.next = nil
	}
	t.head = head
}

// FindAircraft returns a snapshot of the aircraft tracked under icao, per
// spec.md §6's find_aircraft.
func (t *Tracker) FindAircraft(icao uint32) (AircraftSnapshot, bool) {
	t.mu.RLock()
	ac, ok := t.aircraft[icao]
	t.mu.RUnlock()
	if !ok {
		return AircraftSnapshot{}, false
	}
	return ac.Snapshot(), true
}

// AllAircraft returns a snapshot of every currently tracked aircraft.
func (t *Tracker) AllAircraft() []AircraftSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]AircraftSnapshot, 0, len(t.aircraft))
	for _, ac := range t.aircraft {
		out = append(out, ac.Snapshot())
	}
	return out
}

// FindFrames returns the frame-log entries recorded against icao, per
// spec.md §6's find_df.
func (t *Tracker) FindFrames(icao uint32) []FrameLogSnapshot {
	entries := t.log.findByICAO(icao)
	out := make([]FrameLogSnapshot, len(entries))
	for i, e := range entries {
		out[i] = FrameLogSnapshot{Seen: e.seen, Timestamp: e.timestamp, Icao: e.icao, Raw: e.raw}
	}
	return out
}

// FrameLogSnapshot is an uploader-facing view of a frameLogEntry.
type FrameLogSnapshot struct {
	Seen      time.Time
	Timestamp uint64
	Icao      uint32
	Raw       []byte
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aircraft)
}

var _ fmt.Stringer = (*Tracker)(nil)
