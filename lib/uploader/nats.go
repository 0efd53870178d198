package uploader

import (
	"github.com/nats-io/nats.go"

	"ppup1090core/lib/tracker"
)

// NatsSink publishes the live track set as a JSON payload to a single NATS
// subject on every Post. The initial connect is retried through coaa; after
// a disconnect the NATS client's own reconnect logic, paced by
// reconnectDelay, takes over. This is
// the fan-out sink other services (a map backend, an alerting job) are
// expected to subscribe to rather than talking to the tracker directly.
type NatsSink struct {
	url     string
	subject string

	conn *nats.Conn
	coaa *coaa
}

// NewNatsSink builds a sink that connects to a NATS server at url and
// publishes to subject.
func NewNatsSink(url, subject string) *NatsSink {
	return &NatsSink{url: url, subject: subject, coaa: newCOAA("nats")}
}

func (n *NatsSink) Open() error {
	connect := func() error {
		conn, err := nats.Connect(n.url, nats.ReconnectWait(reconnectDelay))
		if err != nil {
			return err
		}
		n.conn = conn
		return nil
	}

	done := make(chan struct{})
	go func() {
		n.coaa.run(connect)
		close(done)
	}()
	<-done
	if n.conn == nil {
		return nil
	}
	return nil
}

func (n *NatsSink) Post(snapshots []tracker.AircraftSnapshot) error {
	if n.conn == nil {
		return nil
	}
	payload, err := json.Marshal(snapshots)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject, payload)
}

func (n *NatsSink) Close() error {
	n.coaa.stop()
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
