package tracker

import (
	"testing"
	"time"
)

func TestFrameLogAppendAndFindByICAO(t *testing.T) {
	l := newFrameLog()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	l.append(0x400001, []byte{1, 2, 3}, 1, base, nil)
	l.append(0x400001, []byte{4, 5, 6}, 2, base.Add(time.Second), nil)
	l.append(0x400002, []byte{7, 8, 9}, 3, base.Add(2*time.Second), nil)

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}

	entries := l.findByICAO(0x400001)
	if len(entries) != 2 {
		t.Fatalf("findByICAO(0x400001) returned %d entries, want 2", len(entries))
	}
	// Most recent insert is at the head of the list, but byICAO stores
	// insertion order, so the earliest append for this ICAO comes first.
	if entries[0].timestamp != 1 || entries[1].timestamp != 2 {
		t.Errorf("findByICAO order = [%d, %d], want [1, 2]", entries[0].timestamp, entries[1].timestamp)
	}
}

func TestFrameLogPruneStaleDetachesOldEntries(t *testing.T) {
	l := newFrameLog()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	l.append(0x500001, []byte{1}, 1, base, nil)
	l.append(0x500002, []byte{2}, 2, base.Add(15*time.Second), nil)

	skipped := l.pruneStale(base.Add(20*time.Second), 10*time.Second)
	if skipped {
		t.Fatalf("pruneStale() skipped = true, want false")
	}

	if l.Len() != 1 {
		t.Fatalf("Len() after prune = %d, want 1", l.Len())
	}
	if entries := l.findByICAO(0x500001); len(entries) != 0 {
		t.Errorf("findByICAO(0x500001) after prune = %v, want empty", entries)
	}
	if entries := l.findByICAO(0x500002); len(entries) != 1 {
		t.Errorf("findByICAO(0x500002) after prune = %v, want 1 entry", entries)
	}
}

func TestFrameLogRemoveEntriesForICAO(t *testing.T) {
	l := newFrameLog()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	l.append(0x600001, []byte{1}, 1, base, nil)
	l.append(0x600001, []byte{2}, 2, base, nil)
	l.append(0x600002, []byte{3}, 3, base, nil)

	l.removeEntriesForICAO(0x600001)

	if l.Len() != 1 {
		t.Fatalf("Len() after removeEntriesForICAO = %d, want 1", l.Len())
	}
	if entries := l.findByICAO(0x600001); len(entries) != 0 {
		t.Errorf("findByICAO(0x600001) after removal = %v, want empty", entries)
	}
}
