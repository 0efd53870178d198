package beast

import (
	"bytes"
	"testing"
)

// TestSplitter_EscapedTimestamp covers spec scenario 5: a literal 0x1A
// inside the device timestamp is doubled on the wire and must collapse back
// to a single byte, with the frame still parsing as a 7-byte short message.
func TestSplitter_EscapedTimestamp(t *testing.T) {
	input := []byte{
		0x1A, 0x32, // marker, type '2' (short)
		0x1A, 0x1A, 0x00, 0x00, 0x00, 0x00, 0x00, // timestamp, first byte escaped
		0x00,                   // signal level
		0x5d, 0x7c, 0x49, 0xf8, 0x28, 0xe9, 0x43, // 7-byte DF11 payload
	}

	s := NewSplitter()
	frames := s.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}

	f := frames[0]
	wantTS := []byte{0x1A, 0, 0, 0, 0, 0}
	if !bytes.Equal(f.mlatTimestamp, wantTS) {
		t.Errorf("timestamp not unescaped: got % X, want % X", f.mlatTimestamp, wantTS)
	}
	if len(f.body) != 7 {
		t.Errorf("expected 7-byte body, got %d", len(f.body))
	}
	if err := f.Decode(); err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if f.IcaoStr() != "7C49F8" {
		t.Errorf("icao = %s, want 7C49F8", f.IcaoStr())
	}
	if len(s.buf) != 0 {
		t.Errorf("expected no retained bytes after a full frame, got %d", len(s.buf))
	}
}

// TestSplitter_PartialRetention checks that a frame split across two Feed
// calls is retained and completed rather than lost.
func TestSplitter_PartialRetention(t *testing.T) {
	full := []byte{
		0x1A, 0x32,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00,
		0x5d, 0x7c, 0x49, 0xf8, 0x28, 0xe9, 0x43,
	}

	s := NewSplitter()
	if frames := s.Feed(full[:10]); len(frames) != 0 {
		t.Fatalf("expected no frames from a partial feed, got %d", len(frames))
	}
	frames := s.Feed(full[10:])
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after completing the feed, got %d", len(frames))
	}
	if frames[0].IcaoStr() == "" {
		if err := frames[0].Decode(); err != nil {
			t.Fatalf("decode failed: %s", err)
		}
	}
}

// TestSplitter_Resync checks that an unknown type byte causes the splitter
// to skip past the bogus marker and recover on the next valid frame.
func TestSplitter_Resync(t *testing.T) {
	bogus := []byte{0x1A, 0xFF, 0x00, 0x00}
	good := []byte{
		0x1A, 0x31, // Mode A/C, 2 byte payload
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00,
		0x12, 0x34,
	}

	s := NewSplitter()
	input := append(append([]byte{}, bogus...), good...)
	frames := s.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("expected to resync and recover 1 good frame, got %d", len(frames))
	}
	if frames[0].msgType != msgTypeModeAC {
		t.Errorf("recovered frame has wrong type: 0x%02X", frames[0].msgType)
	}
}

// TestSplitter_FullBufferDiscard checks that an unbounded run of bytes with
// no resolvable frame boundary is eventually dropped rather than retained
// forever.
func TestSplitter_FullBufferDiscard(t *testing.T) {
	s := NewSplitter()
	s.MaxBufferSize = 4 // smaller than any real partial frame can stay under

	// claims a short frame (needs 14 more logical bytes) but only 3 are
	// supplied: the retained partial immediately exceeds MaxBufferSize and
	// must be dropped rather than held onto indefinitely.
	junk := []byte{0x1A, 0x32, 0x00, 0x00, 0x00}

	frames := s.Feed(junk)
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if len(s.buf) != 0 {
		t.Errorf("expected the oversized partial frame to be discarded, got %d bytes retained", len(s.buf))
	}
}
