package uploader

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// reconnectDelay is the fixed backoff between reconnect attempts - "close
// socket, sleep 1s, reconnect" per spec.md §7's error-handling design for
// upstream sink connections.
const reconnectDelay = time.Second

// coaa ("connect-or-announce-abort") is the reconnect-loop helper the
// dialing NATS sink embeds (the websocket sink listens and does not use
// it): it keeps calling connect
// until it succeeds or the sink is closed, wrapping failures with
// pkg/errors context so a log line names which sink and attempt failed.
type coaa struct {
	mu      sync.Mutex
	closed  bool
	name    string
	logger  zerolog.Logger
}

func newCOAA(name string) *coaa {
	return &coaa{name: name, logger: log.With().Str("sink", name).Logger()}
}

// run calls connect in a loop, retrying with reconnectDelay between
// attempts, until it returns nil or the coaa is closed. It blocks the
// calling goroutine - callers run it in its own goroutine.
func (c *coaa) run(connect func() error) {
	attempt := 0
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		attempt++
		if err := connect(); err != nil {
			c.logger.Error().
				Err(errors.Wrapf(err, "%s: connect attempt %d failed", c.name, attempt)).
				Msg("sink connect failed, retrying")
			time.Sleep(reconnectDelay)
			continue
		}
		return
	}
}

func (c *coaa) stop() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
