package tracker

import (
	"time"

	"github.com/google/btree"
)

// seenItem orders aircraft by last-seen time so the staleness sweep can walk
// only the stale prefix of the set instead of scanning every live track
// (spec.md §9 suggests replacing the original's linear-scan lists with a
// structure that keeps O(1) lookup and avoids the full-list walk the
// original's "most N ≤ 500 tracks" comment excuses away).
type seenItem struct {
	seenUnixNano int64
	icao         uint32
}

func (a seenItem) Less(than btree.Item) bool {
	b := than.(seenItem)
	if a.seenUnixNano != b.seenUnixNano {
		return a.seenUnixNano < b.seenUnixNano
	}
	return a.icao < b.icao
}

// seenIndex is a btree ordered by (seen, icao), letting the staleness sweep
// find everything older than a cutoff without touching the live tail.
type seenIndex struct {
	tree *btree.BTree
	// byIcao tracks each aircraft's current index key so it can be removed
	// before being re-inserted under its new seen time.
	byIcao map[uint32]seenItem
}

func newSeenIndex() *seenIndex {
	return &seenIndex{tree: btree.New(32), byIcao: make(map[uint32]seenItem)}
}

func (s *seenIndex) touch(icao uint32, seen time.Time) {
	if old, ok := s.byIcao[icao]; ok {
		s.tree.Delete(old)
	}
	item := seenItem{seenUnixNano: seen.UnixNano(), icao: icao}
	s.tree.ReplaceOrInsert(item)
	s.byIcao[icao] = item
}

func (s *seenIndex) remove(icao uint32) {
	if item, ok := s.byIcao[icao]; ok {
		s.tree.Delete(item)
		delete(s.byIcao, icao)
	}
}

// stale returns every ICAO whose last-seen time is at or before cutoff,
// oldest first.
func (s *seenIndex) stale(cutoff time.Time) []uint32 {
	var out []uint32
	cutoffNano := cutoff.UnixNano()
	s.tree.Ascend(func(i btree.Item) bool {
		item := i.(seenItem)
		if item.seenUnixNano > cutoffNano {
			return false
		}
		out = append(out, item.icao)
		return true
	})
	return out
}

func (s *seenIndex) Len() int {
	return s.tree.Len()
}
