package cache

import (
	"sync"

	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// PositionTable holds the latest position of every configured vessel.
// Entries are overwritten in place, so its size is bounded by the fleet, not by history.
type PositionTable struct {
	m     sync.RWMutex
	order []core.MMSI
	index map[core.MMSI]int
	slots []slot
}

type slot struct {
	event core.PositionEvent
	set   bool
}

// NewPositionTable creates a table for the given vessels. Snapshot order follows vessels.
// Duplicate identifiers keep their first position in the order.
func NewPositionTable(vessels []core.MMSI) *PositionTable {
	t := &PositionTable{
		index: make(map[core.MMSI]int, len(vessels)),
	}
	for _, v := range vessels {
		if _, dup := t.index[v]; dup {
			continue
		}
		t.index[v] = len(t.order)
		t.order = append(t.order, v)
	}
	t.slots = make([]slot, len(t.order))
	return t
}

// Set overwrites the entry for e.MMSI. It returns false for vessels the table does not know.
func (t *PositionTable) Set(e core.PositionEvent) bool {
	t.m.Lock()
	defer t.m.Unlock()
	i, ok := t.index[e.MMSI]
	if !ok {
		return false
	}
	t.slots[i] = slot{event: e, set: true}
	return true
}

// Get returns the latest event for a vessel.
func (t *PositionTable) Get(mmsi core.MMSI) (core.PositionEvent, bool) {
	t.m.RLock()
	defer t.m.RUnlock()
	i, ok := t.index[mmsi]
	if !ok || !t.slots[i].set {
		return core.PositionEvent{}, false
	}
	return t.slots[i].event, true
}

// Snapshot returns a copy of every known position in configuration order.
// Vessels that have not been positioned yet are omitted.
func (t *PositionTable) Snapshot() []core.VesselPosition {
	t.m.RLock()
	defer t.m.RUnlock()
	out := make([]core.VesselPosition, 0, len(t.slots))
	for _, s := range t.slots {
		if s.set {
			out = append(out, s.event.Position())
		}
	}
	return out
}

// Events returns a copy of every latest event in configuration order.
func (t *PositionTable) Events() []core.PositionEvent {
	t.m.RLock()
	defer t.m.RUnlock()
	out := make([]core.PositionEvent, 0, len(t.slots))
	for _, s := range t.slots {
		if s.set {
			out = append(out, s.event)
		}
	}
	return out
}

// Vessels returns the configured identifiers in order.
func (t *PositionTable) Vessels() []core.MMSI {
	out := make([]core.MMSI, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of vessels that have a position.
func (t *PositionTable) Len() int {
	t.m.RLock()
	defer t.m.RUnlock()
	n := 0
	for _, s := range t.slots {
		if s.set {
			n++
		}
	}
	return n
}
