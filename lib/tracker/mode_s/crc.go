package mode_s

import (
	"errors"
	"time"
)

// modesChecksumTable is the 112-entry parity table described in spec.md §4.1:
// one entry per bit position of a long message, selected (XORed together) for
// every set bit. The last 24 rows are zero since the checksum field itself
// must not influence the syndrome. Grounded on the teacher lineage's
// dump1090-derived CRC table (Regentag-go1090/mode_s/decoder.go).
var modesChecksumTable = [112]uint32{
	0x3935ea, 0x1c9af5, 0xf1b77e, 0x78dbbf, 0xc397db, 0x9e31e9, 0xb0e2f0, 0x587178,
	0x2c38bc, 0x161c5e, 0x0b0e2f, 0xfa7d13, 0x82c48d, 0xbe9842, 0x5f4c21, 0xd05c14,
	0x682e0a, 0x341705, 0xe5f186, 0x72f8c3, 0xc68665, 0x9cb936, 0x4e5c9b, 0xd8d449,
	0x939020, 0x49c810, 0x24e408, 0x127204, 0x093902, 0x049c81, 0xfdb444, 0x7eda22,
	0x3f6d11, 0xe04c8c, 0x702646, 0x381323, 0xe3f395, 0x8e03ce, 0x4701e7, 0xdc7af7,
	0x91c77f, 0xb719bb, 0xa476d9, 0xadc168, 0x56e0b4, 0x2b705a, 0x15b82d, 0xf52612,
	0x7a9309, 0xc2b380, 0x6159c0, 0x30ace0, 0x185670, 0x0c2b38, 0x06159c, 0x030ace,
	0x018567, 0xff38b7, 0x80665f, 0xbfc92b, 0xa01e91, 0xaff54c, 0x57faa6, 0x2bfd53,
	0xea04ad, 0x8af852, 0x457c29, 0xdd4410, 0x6ea208, 0x375104, 0x1ba882, 0x0dd441,
	0xf91024, 0x7c8812, 0x3e4409, 0xe0d800, 0x706c00, 0x383600, 0x1c1b00, 0x0e0d80,
	0x0706c0, 0x038360, 0x01c1b0, 0x00e0d8, 0x00706c, 0x003836, 0x001c1b, 0xfff409,
	0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000,
	0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000,
	0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000,
}

// modesChecksum computes the 24-bit Mode S parity over msg, which holds
// `bits` significant bits. For 56-bit messages only the trailing 56 table
// rows are consulted (offset 56).
func modesChecksum(msg []byte, bits int) uint32 {
	var crc uint32
	offset := 0
	if bits != modesLongMsgBits {
		offset = modesLongMsgBits - modesShortMsgBits
	}
	for j := 0; j < bits; j++ {
		sByte := j / 8
		bitMask := byte(1) << (7 - uint(j%8))
		if msg[sByte]&bitMask != 0 {
			crc ^= modesChecksumTable[j+offset]
		}
	}
	return crc
}

// fixSingleBitErrors tries every single bit flip and returns the bit position
// that makes the checksum validate, or -1. Only attempted on DF11/DF17 per
// spec.md SPEC_FULL supplement (the original dump1090 `fix_errors` config).
func fixSingleBitErrors(msg []byte, bits int) int {
	msgBytes := bits / 8
	aux := make([]byte, msgBytes)

	for j := 0; j < bits; j++ {
		sByte := j / 8
		bitMask := byte(1) << (7 - uint(j%8))

		copy(aux, msg)
		aux[sByte] ^= bitMask

		crc1 := uint32(aux[msgBytes-3])<<16 | uint32(aux[msgBytes-2])<<8 | uint32(aux[msgBytes-1])
		crc2 := modesChecksum(aux, bits)
		if crc1 == crc2 {
			copy(msg, aux)
			return j
		}
	}
	return -1
}

// fixTwoBitsErrors is fixSingleBitErrors's O(n^2) sibling. checkCrc does not
// call it: only single-bit recovery is attempted on a failed checksum.
func fixTwoBitsErrors(msg []byte, bits int) int {
	msgBytes := bits / 8
	aux := make([]byte, msgBytes)

	for j := 0; j < bits; j++ {
		byte1 := j / 8
		mask1 := byte(1) << (7 - uint(j%8))
		for i := j + 1; i < bits; i++ {
			byte2 := i / 8
			mask2 := byte(1) << (7 - uint(i%8))

			copy(aux, msg)
			aux[byte1] ^= mask1
			aux[byte2] ^= mask2

			crc1 := uint32(aux[msgBytes-3])<<16 | uint32(aux[msgBytes-2])<<8 | uint32(aux[msgBytes-1])
			crc2 := modesChecksum(aux, bits)
			if crc1 == crc2 {
				copy(msg, aux)
				return j | (i << 8)
			}
		}
	}
	return -1
}

// --- ICAO whitelist cache ----------------------------------------------------

const (
	icaoCacheSlots = 1024 // power of two, per spec.md §3
	icaoCacheMask  = icaoCacheSlots - 1
	icaoCacheTTL   = 60 * time.Second
)

type icaoCacheEntry struct {
	addr uint32
	seen time.Time
	used bool
}

// IcaoCache is the fixed-capacity, collision-overwrite whitelist of recently
// seen ICAO addresses described in spec.md §3/§4.1. It has no synchronisation
// of its own: spec.md §5 tolerates concurrent reads from the uploader because
// every slot is a single aligned word and staleness self-corrects via TTL.
//
// Exported so callers that own a decode pipeline spanning several Frames
// (lib/producer, lib/tracker/beast) can construct one explicitly and thread
// it through, rather than every Frame silently sharing an unowned package
// global.
type IcaoCache struct {
	slots [icaoCacheSlots]icaoCacheEntry
}

// NewIcaoCache returns an empty whitelist.
func NewIcaoCache() *IcaoCache {
	return &IcaoCache{}
}

// icaoCacheHash triple-rounds the address through a bit-mixing multiplication,
// exactly as specified in spec.md §4.1.
func icaoCacheHash(addr uint32) uint32 {
	a := addr
	a = ((a >> 16) ^ a) * 0x45d9f3b
	a = ((a >> 16) ^ a) * 0x45d9f3b
	a = (a >> 16) ^ a
	return a & icaoCacheMask
}

func (c *IcaoCache) add(addr uint32, now time.Time) {
	slot := icaoCacheHash(addr)
	c.slots[slot] = icaoCacheEntry{addr: addr, seen: now, used: true}
}

func (c *IcaoCache) seenRecently(addr uint32, now time.Time) bool {
	slot := icaoCacheHash(addr)
	e := c.slots[slot]
	if !e.used || e.addr != addr {
		return false
	}
	return now.Sub(e.seen) <= icaoCacheTTL
}

// fallbackIcaoCache backs any Frame constructed without an explicit
// *IcaoCache (NewFrameFromBytes, DecodeString, and the handful of tests
// that call them directly; Mode A/C frames never consult it at all, since
// NewModeACFrame has no checksum to recover an address from). Every
// production entry point in cmd/ppup1090core instead builds one *IcaoCache
// per process and passes it through explicitly, so this only ever serves
// isolated/ad-hoc decodes.
var fallbackIcaoCache = NewIcaoCache()

// cache returns f's whitelist, falling back to the package default.
func (f *Frame) cache() *IcaoCache {
	if f.icaoCache != nil {
		return f.icaoCache
	}
	return fallbackIcaoCache
}

// checkCrc validates the message checksum and, for the DFs that XOR the
// transponder's address into the trailing checksum field, recovers that
// address via the whitelist cache. See spec.md §4.1 for the per-DF semantics.
func (f *Frame) checkCrc() error {
	bits := int(f.getMessageLengthBits())
	lastByte := int(f.getMessageLengthBytes()) - 1

	trailing := uint32(f.message[lastByte-2])<<16 | uint32(f.message[lastByte-1])<<8 | uint32(f.message[lastByte])
	computed := modesChecksum(f.message, bits)
	f.crc = trailing ^ computed

	cache := f.cache()
	switch f.downLinkFormat {
	case 11, 17, 18:
		f.crcOK = f.crc == 0
		if !f.crcOK && f.downLinkFormat == 11 && f.crc < 80 {
			// small non-zero syndrome on DF11 is an interrogation IID; accept
			// if the reconstructed address hits the whitelist.
			addr := uint32(f.message[1])<<16 | uint32(f.message[2])<<8 | uint32(f.message[3])
			if cache.seenRecently(addr, f.timeStamp) {
				f.crcOK = true
				cache.add(addr, f.timeStamp)
			}
		}
		if !f.crcOK && (f.downLinkFormat == 11 || f.downLinkFormat == 17) {
			if bit := fixSingleBitErrors(f.message, bits); bit != -1 {
				f.crc = 0
				f.crcOK = true
			}
		}
		if f.crcOK {
			addr := uint32(f.message[1])<<16 | uint32(f.message[2])<<8 | uint32(f.message[3])
			cache.add(addr, f.timeStamp)
		}
	default:
		// the transmitter XORs its address into the checksum: the syndrome
		// directly equals the ICAO address if the message is intact.
		f.icao = f.crc & 0xffffff
		f.crcOK = cache.seenRecently(f.icao, f.timeStamp)
	}

	if !f.crcOK {
		return errors.New("mode s: crc check failed")
	}
	return nil
}

// decodeICAO fills in the address for DF types whose ICAO is plain bytes
// (11/17/18) rather than recovered from the CRC syndrome (everything else).
func (f *Frame) decodeICAO() {
	switch f.downLinkFormat {
	case 11, 17, 18:
		f.icao = uint32(f.message[1])<<16 | uint32(f.message[2])<<8 | uint32(f.message[3])
	default:
		// already populated by checkCrc's XOR-recovery path
	}
}
