package beast

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"ppup1090core/lib/tracker/mode_s"
)

// Beast message type bytes (spec.md §4.6).
const (
	msgTypeModeAC    = 0x31
	msgTypeModeSShort = 0x32
	msgTypeModeSLong  = 0x33
)

// Frame wraps a single, already frame-delimited Beast message: the leading
// 0x1A marker, type byte, 6-byte device timestamp, 1-byte signal level, and
// payload. Escape-unescaping happens upstream in Splitter; by the time a
// byte slice reaches NewFrame it is a clean single frame.
type Frame struct {
	decodeLock sync.Mutex
	hasDecoded bool

	msgType       byte
	raw           []byte
	mlatTimestamp []byte
	signalLevel   byte
	body          []byte

	icaoCache *mode_s.IcaoCache
	avr       *mode_s.Frame
}

// UsePoolAllocator switches NewFrame/Release to recycle Frame structs
// through a sync.Pool instead of allocating one per call. Off by default;
// flip it on in hot-loop callers that can guarantee Release is always
// paired with NewFrame.
var UsePoolAllocator = false

var framePool = sync.Pool{New: func() any { return &Frame{} }}

func allocFrame() *Frame {
	if !UsePoolAllocator {
		return &Frame{}
	}
	f := framePool.Get().(*Frame)
	*f = Frame{}
	return f
}

// Release returns a Frame to the pool. Only meaningful when
// UsePoolAllocator is true; otherwise it is a no-op and the Frame is left
// for the garbage collector.
func Release(f *Frame) {
	if !UsePoolAllocator || f == nil {
		return
	}
	framePool.Put(f)
}

// NewFrame parses a single, already-delimited Beast message using the
// package default ICAO whitelist. See NewFrameWithCache for callers
// (lib/producer) that share one whitelist across several receivers.
func NewFrame(rawBytes []byte, isAVR bool) (*Frame, error) {
	return NewFrameWithCache(rawBytes, isAVR, nil)
}

// NewFrameWithCache is NewFrame with an explicit ICAO whitelist passed
// through to the mode_s layer; a nil cache falls back to the package
// default. If isAVR is true, rawBytes is instead treated as an AVR-format
// text line (as produced by network clients that speak the text protocol
// rather than binary Beast) and decoded directly through mode_s.
func NewFrameWithCache(rawBytes []byte, isAVR bool, cache *mode_s.IcaoCache) (*Frame, error) {
	if isAVR {
		avr, err := mode_s.DecodeStringWithCache(string(rawBytes), time.Now(), cache)
		if err != nil {
			return nil, err
		}
		f := allocFrame()
		f.raw = rawBytes
		f.avr = avr
		f.hasDecoded = true
		return f, nil
	}

	const headerLen = 1 + 1 + 6 + 1 // marker + type + timestamp + signal
	if len(rawBytes) < headerLen+2 {
		return nil, fmt.Errorf("beast frame too short: %d bytes", len(rawBytes))
	}
	if rawBytes[0] != 0x1A {
		return nil, errors.New("beast frame missing 0x1A marker")
	}

	msgType := rawBytes[1]
	var payloadLen int
	switch msgType {
	case msgTypeModeAC:
		payloadLen = 2
	case msgTypeModeSShort:
		payloadLen = 7
	case msgTypeModeSLong:
		payloadLen = 14
	default:
		return nil, fmt.Errorf("unknown beast message type: 0x%02X", msgType)
	}

	want := headerLen + payloadLen
	if len(rawBytes) != want {
		return nil, fmt.Errorf("beast frame wrong length for type 0x%02X: got %d want %d", msgType, len(rawBytes), want)
	}

	f := allocFrame()
	f.msgType = msgType
	f.raw = rawBytes
	f.mlatTimestamp = rawBytes[2:8]
	f.signalLevel = rawBytes[8]
	f.body = rawBytes[9:]
	f.icaoCache = cache
	return f, nil
}

// BeastTicks returns the 48-bit device-domain timestamp (12MHz ticks since
// the receiver powered on) carried by this frame.
func (f *Frame) BeastTicks() uint64 {
	if len(f.mlatTimestamp) != 6 {
		return 0
	}
	var buf [8]byte
	copy(buf[2:], f.mlatTimestamp)
	return binary.BigEndian.Uint64(buf[:])
}

// Decode parses the frame body into a mode_s message record. Idempotent.
func (f *Frame) Decode() error {
	f.decodeLock.Lock()
	defer f.decodeLock.Unlock()
	if f.hasDecoded {
		return nil
	}

	if f.msgType == msgTypeModeAC {
		avr, err := mode_s.NewModeACFrame(f.BeastTicks(), f.body, f.signalLevel, time.Now())
		if err != nil {
			return err
		}
		f.avr = avr
		f.hasDecoded = true
		return nil
	}

	f.avr = mode_s.NewFrameFromBytesWithCache(f.BeastTicks(), f.body, f.signalLevel, time.Now(), f.icaoCache)
	if err := f.avr.Decode(); err != nil {
		return err
	}
	f.hasDecoded = true
	return nil
}

// Icao returns the decoded frame's ICAO address, satisfying tracker.Frame.
func (f *Frame) Icao() uint32 {
	if f.avr == nil {
		return 0
	}
	return f.avr.Icao()
}

// IcaoStr returns the decoded frame's ICAO address in upper-hex form, or ""
// if the frame has not been decoded yet.
func (f *Frame) IcaoStr() string {
	if f.avr == nil {
		return ""
	}
	return f.avr.IcaoStr()
}

// AvrFrame returns the decoded mode_s message record backing this Beast
// frame.
func (f *Frame) AvrFrame() *mode_s.Frame {
	return f.avr
}

// SignalRssi converts the raw 0-255 Beast signal byte into a dBFS figure:
// 20*log10(level/255). A zero signal level (no amplitude reported) yields
// negative infinity rather than a divide-by-zero panic.
func (f *Frame) SignalRssi() float64 {
	if f.signalLevel == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(f.signalLevel)/255.0)
}
