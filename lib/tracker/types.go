// Package tracker correlates decoded Mode S/Beast messages into a live,
// per-ICAO aircraft track set (spec.md §3/§4.4), handling Mode A/C
// cross-tagging and staleness expiry.
package tracker

import "time"

// Frame is the minimal surface the tracker needs from a decoded message,
// satisfied by both *mode_s.Frame and *beast.Frame so either can be fed
// straight into the pipeline.
type Frame interface {
	Icao() uint32
}

// FrameEvent wraps a Frame with its reception context as it moves through
// the pipeline (frame splitter → parser → tracker → uploader).
type FrameEvent struct {
	frame     Frame
	receiver  string
	timestamp time.Time
}

// NewFrameEvent wraps frame with the source label and wall time it was
// received, ready to hand to a Tracker or a Handle(fe) Frame pipeline stage.
func NewFrameEvent(frame Frame, receiver string, t time.Time) *FrameEvent {
	return &FrameEvent{frame: frame, receiver: receiver, timestamp: t}
}

func (fe *FrameEvent) Frame() Frame          { return fe.frame }
func (fe *FrameEvent) Receiver() string      { return fe.receiver }
func (fe *FrameEvent) Timestamp() time.Time  { return fe.timestamp }

// Handler is the producer/pipeline stage convention used throughout this
// module: each stage consumes a FrameEvent and either passes a Frame along
// or swallows it by returning nil.
type Handler interface {
	Handle(fe *FrameEvent) Frame
	String() string
	HealthCheckName() string
	HealthCheck() bool
}

// Producer is the upstream end of the pipeline: something that owns a raw
// byte source (a socket, a file) and publishes decoded frames as
// FrameEvents. lib/producer is the concrete implementation.
type Producer interface {
	Listen() <-chan *FrameEvent
	Stop()
	String() string
	HealthCheckName() string
	HealthCheck() bool
}
