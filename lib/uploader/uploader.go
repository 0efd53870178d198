// Package uploader fans decoded aircraft track snapshots out to one or more
// sinks: a GeoJSON file, a live websocket broadcast, or a NATS subject.
// Sinks are deliberately simple - each just needs to accept a batch of
// tracker.AircraftSnapshot values - so a new output format is a new file,
// not a new interface.
package uploader

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ppup1090core/lib/tracker"
)

// json is configured for speed over strict RFC conformance, matching how
// dump1090-family tools serialise high-frequency track updates.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Credentials holds the uploader's registration with an upstream
// aggregator (spec.md §6's "auth code", "registration", "version" - not CLI
// flags since they're semi-secret, sticky per-install values loaded via
// lib/setup's viper config layer).
type Credentials struct {
	AuthCode     string
	Registration string
	Version      string
}

// Sink is a single upload destination. Open/Close bracket the sink's
// lifetime; Post delivers one refresh of the live track set.
type Sink interface {
	Open() error
	Post(snapshots []tracker.AircraftSnapshot) error
	Close() error
}

// Manager owns a set of sinks and posts to all of them on an interval,
// tolerating any individual sink's failure without affecting the others.
type Manager struct {
	mu    sync.Mutex
	sinks []Sink

	logger zerolog.Logger
}

// NewManager builds a Manager with no sinks; call Add to register each one.
func NewManager() *Manager {
	return &Manager{logger: log.With().Str("section", "uploader").Logger()}
}

// Add registers and opens a sink. If Open fails the sink is not added.
func (m *Manager) Add(sink Sink) error {
	if err := sink.Open(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, sink)
	m.mu.Unlock()
	return nil
}

// Post delivers snapshots to every registered sink, logging (but not
// propagating) any individual sink failure.
func (m *Manager) Post(snapshots []tracker.AircraftSnapshot) {
	m.mu.Lock()
	sinks := make([]Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.Unlock()

	for _, s := range sinks {
		if err := s.Post(snapshots); err != nil {
			m.logger.Error().Err(err).Msg("sink post failed")
		}
	}
}

// Close shuts down every registered sink.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			m.logger.Error().Err(err).Msg("sink close failed")
		}
	}
	m.sinks = nil
}

// Run posts the tracker's current aircraft set to every sink on the given
// interval until stop is closed.
func (m *Manager) Run(snapshotFn func() []tracker.AircraftSnapshot, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Post(snapshotFn())
		}
	}
}
