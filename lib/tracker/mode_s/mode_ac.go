package mode_s

import (
	"fmt"
	"time"
)

// NewModeACFrame builds a synthetic DF32 Frame from a Beast type '1' short
// reply: a bare 2-byte Mode A/C transponder reply with no ICAO address and no
// CRC of its own (spec.md §4.6 / §3). The 13-bit Gillham field occupies the
// high 13 bits of the two payload bytes; the low 3 bits are spare.
func NewModeACFrame(beastTicks uint64, payload []byte, signalLevel byte, t time.Time) (*Frame, error) {
	if len(payload) != 2 {
		return nil, fmt.Errorf("mode a/c frame must be 2 bytes, got %d", len(payload))
	}

	f := &Frame{
		mode:           "BEAST",
		beastTicks:     beastTicks,
		timeStamp:      t,
		signalLevel:    signalLevel,
		fromBytes:      true,
		hasDecoded:     true,
		downLinkFormat: 32,
		modeAOnly:      true,
		crcOK:          true, // no checksum exists to fail on a bare short reply
	}

	id13 := (int32(payload[0])<<8 | int32(payload[1])) >> 3
	gillham := decodeID13Field(id13)

	a := (gillham >> 12) & 0xf
	b := (gillham >> 8) & 0xf
	c := (gillham >> 4) & 0xf
	d := gillham & 0xf
	f.identity = uint32(a*1000 + b*100 + c*10 + d)
	f.bFlags |= bFlagSquawk

	if fl, ok := modeAToModeC(gillham); ok {
		f.altitude = fl * 100
		f.validAltitude = true
		f.bFlags |= bFlagAltitude
	}

	return f, nil
}
