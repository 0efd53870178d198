package tracker

import (
	"sync"
	"time"
)

// frameLogEntry is a per-accepted-frame log record (spec.md §3:
// "Downlink-frame log entry"). The log is insertion-ordered: new entries are
// linked in at the head, so the oldest entries sit at the tail.
type frameLogEntry struct {
	seen      time.Time
	timestamp uint64
	icao      uint32
	raw       []byte

	aircraft *Aircraft

	prev, next *frameLogEntry
}

// frameLog is the doubly-linked, mutex-protected frame history described in
// spec.md §5. The pruner takes a non-blocking lock attempt so staleness
// sweeps never stall the hot path that's appending new entries.
type frameLog struct {
	mu         sync.Mutex
	head, tail *frameLogEntry
	byICAO     map[uint32][]*frameLogEntry
	count      int
}

func newFrameLog() *frameLog {
	return &frameLog{byICAO: make(map[uint32][]*frameLogEntry)}
}

// append inserts a new entry at the head (most recent first).
func (l *frameLog) append(icao uint32, raw []byte, ts uint64, now time.Time, ac *Aircraft) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &frameLogEntry{seen: now, timestamp: ts, icao: icao, raw: raw, aircraft: ac, next: l.head}
	if l.head != nil {
		l.head.prev = entry
	}
	l.head = entry
	if l.tail == nil {
		l.tail = entry
	}
	l.byICAO[icao] = append(l.byICAO[icao], entry)
	l.count++
}

// findByICAO returns the log entries for an ICAO address in the order they
// were appended (oldest first). Acquires the lock (readers and writers are mutually exclusive, per
// spec.md §5).
func (l *frameLog) findByICAO(icao uint32) []*frameLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.byICAO[icao]
	if len(src) == 0 {
		return nil
	}
	out := make([]*frameLogEntry, len(src))
	copy(out, src)
	return out
}

// pruneStale walks from the tail (oldest) forward and detaches every entry
// older than ttl relative to now, matching spec.md §4.4: "the sweep walks
// from head, and upon first stale entry detaches the rest" — since inserts
// happen at the head, the tail is the oldest end, so this walk starts there.
// Uses a non-blocking lock attempt; if the lock is held, the sweep is
// skipped for this tick (spec.md §5/§7).
func (l *frameLog) pruneStale(now time.Time, ttl time.Duration) (skipped bool) {
	if !l.mu.TryLock() {
		return true
	}
	defer l.mu.Unlock()

	for l.tail != nil && now.Sub(l.tail.seen) > ttl {
		stale := l.tail
		l.removeLocked(stale)
	}
	return false
}

// removeEntriesForICAO drops every frame-log entry belonging to icao (used
// when an aircraft is pruned by the staleness sweep).
func (l *frameLog) removeEntriesForICAO(icao uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// removeLocked rewrites the byICAO bucket in place, so iterate a copy.
	entries := append([]*frameLogEntry(nil), l.byICAO[icao]...)
	for _, e := range entries {
		l.removeLocked(e)
	}
	delete(l.byICAO, icao)
}

// removeLocked detaches entry from the list. Caller must hold l.mu.
func (l *frameLog) removeLocked(entry *frameLogEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else if l.head == entry {
		l.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else if l.tail == entry {
		l.tail = entry.prev
	}
	entry.prev, entry.next = nil, nil
	l.count--

	bucket := l.byICAO[entry.icao]
	for i, e := range bucket {
		if e == entry {
			l.byICAO[entry.icao] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(l.byICAO[entry.icao]) == 0 {
		delete(l.byICAO, entry.icao)
	}
}

func (l *frameLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
