package beast

import "ppup1090core/lib/tracker/mode_s"

// Splitter turns a raw byte stream (as read off a Beast TCP socket) into a
// sequence of complete, escape-unescaped Beast frames (spec.md §4.6). Bytes
// fed in that do not yet form a complete frame are retained across calls to
// Feed; callers keep calling Feed as more bytes arrive.
//
// Splitter is not safe for concurrent use — it is part of the single
// threaded hot path described in spec.md §5 and must only ever be driven by
// one reader goroutine.
type Splitter struct {
	buf []byte

	// MaxBufferSize bounds how much unresolved input Splitter will retain
	// before giving up and discarding it outright, guarding against
	// livelock on a corrupted or non-Beast byte stream. Zero means use
	// defaultMaxBufferSize.
	MaxBufferSize int

	// icaoCache is threaded into every Frame this Splitter extracts, so a
	// Producer reading one receiver shares its ICAO whitelist with the
	// rest of the process rather than each Frame falling back to the
	// package default in isolation.
	icaoCache *mode_s.IcaoCache
}

const defaultMaxBufferSize = 64 * 1024

// NewSplitter returns a ready-to-use Splitter backed by the package default
// ICAO whitelist. See NewSplitterWithCache for callers that share one
// whitelist across several receivers.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// NewSplitterWithCache is NewSplitter with an explicit ICAO whitelist.
func NewSplitterWithCache(cache *mode_s.IcaoCache) *Splitter {
	return &Splitter{icaoCache: cache}
}

// Feed appends data to the splitter's retained buffer and extracts as many
// complete frames as are now available. Frames already-unescaped, ready for
// NewFrame. Any trailing partial frame is kept for the next Feed call.
func (s *Splitter) Feed(data []byte) []*Frame {
	s.buf = append(s.buf, data...)

	var out []*Frame
	pos := 0

	for {
		marker := indexByte(s.buf, pos, 0x1A)
		if marker == -1 {
			// no marker at all in the remaining buffer: nothing useful is
			// retained past the scan position.
			s.buf = nil
			return out
		}

		frame, consumedTo, status := s.tryExtract(marker)
		switch status {
		case extractOK:
			out = append(out, frame)
			pos = consumedTo
		case extractResync:
			// the candidate at `marker` was bogus; resume scanning from
			// the position that looked like the start of the next frame.
			pos = consumedTo
		case extractPartial:
			// not enough bytes yet: retain from the marker onward and
			// wait for more data.
			s.retainFrom(marker)
			return out
		}
	}
}

type extractStatus int

const (
	extractOK extractStatus = iota
	extractResync
	extractPartial
)

// tryExtract attempts to pull one complete frame out of s.buf starting at
// the 0x1A marker found at index `marker`. It returns the decoded frame (on
// extractOK), the position to resume scanning from (on extractOK/extractResync),
// or extractPartial if more bytes are needed.
func (s *Splitter) tryExtract(marker int) (*Frame, int, extractStatus) {
	if marker+1 >= len(s.buf) {
		return nil, 0, extractPartial
	}

	msgType := s.buf[marker+1]
	var payloadLen int
	switch msgType {
	case msgTypeModeAC:
		payloadLen = 2
	case msgTypeModeSShort:
		payloadLen = 7
	case msgTypeModeSLong:
		payloadLen = 14
	default:
		// unknown type byte: resync to the next marker after this one.
		return nil, marker + 2, extractResync
	}

	needed := 6 + 1 + payloadLen // timestamp + signal + payload, logical bytes
	unescaped := make([]byte, 0, needed)
	rawPos := marker + 2

	for len(unescaped) < needed {
		if rawPos >= len(s.buf) {
			return nil, 0, extractPartial
		}
		b := s.buf[rawPos]
		if b != 0x1A {
			unescaped = append(unescaped, b)
			rawPos++
			continue
		}

		// 0x1A in the body must be doubled; if we can't yet see whether it
		// is, wait for more data.
		if rawPos+1 >= len(s.buf) {
			return nil, 0, extractPartial
		}
		if s.buf[rawPos+1] == 0x1A {
			unescaped = append(unescaped, 0x1A)
			rawPos += 2
			continue
		}

		// a lone 0x1A inside the body means it's actually the marker of
		// the NEXT frame: this candidate was short/corrupt. Resync there.
		return nil, rawPos, extractResync
	}

	full := make([]byte, 0, 2+needed)
	full = append(full, 0x1A, msgType)
	full = append(full, unescaped...)

	frame, err := NewFrameWithCache(full, false, s.icaoCache)
	if err != nil {
		// shouldn't happen given the length bookkeeping above, but if it
		// does, resync past this candidate rather than getting stuck.
		return nil, rawPos, extractResync
	}
	return frame, rawPos, extractOK
}

// retainFrom keeps s.buf[from:] for the next Feed call, discarding
// everything consumed so far. If the retained tail has grown past
// MaxBufferSize with no frame boundary found, it is dropped outright
// (spec.md §4.6/§7: "buffer full on input with no frame boundary").
func (s *Splitter) retainFrom(from int) {
	tail := s.buf[from:]

	limit := s.MaxBufferSize
	if limit <= 0 {
		limit = defaultMaxBufferSize
	}
	if len(tail) > limit {
		s.buf = nil
		return
	}

	kept := make([]byte, len(tail))
	copy(kept, tail)
	s.buf = kept
}

func indexByte(b []byte, from int, c byte) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}
