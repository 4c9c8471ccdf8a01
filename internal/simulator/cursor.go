package simulator

import "github.com/zephyrus-green/ferrycast/pkg/core"

// Cursor is a vessel's traversal state over the shared track.
type Cursor struct {
	Vessel    core.MMSI
	Index     int
	Direction core.Direction
}

// NewCursor places a vessel at start on a track of n waypoints, heading Forward.
// A start outside [0, n-1] is clamped into range and clamped is reported true.
func NewCursor(vessel core.MMSI, start, n int) (c Cursor, clamped bool) {
	c = Cursor{Vessel: vessel, Index: start, Direction: core.Forward}
	switch {
	case start < 0:
		c.Index, clamped = 0, true
	case start > n-1:
		c.Index, clamped = max(n-1, 0), true
	}
	return c, clamped
}

// Step advances the cursor by one waypoint on a track of n waypoints.
//
// Traversal is ping-pong: arriving on either endpoint reverses the direction,
// so every endpoint is emitted for exactly one tick and never skipped.
// A cursor that sits on an endpoint still heading outward (only possible when
// configured that way) reflects back by one waypoint and reverses.
func (c *Cursor) Step(n int) {
	if n < 2 {
		c.Index = 0
		return
	}

	step := 1
	if c.Direction == core.Backward {
		step = -1
	}

	next := c.Index + step
	if next < 0 || next >= n {
		c.Direction = c.Direction.Reverse()
		next = c.Index - step
	}
	c.Index = min(max(next, 0), n-1)

	if (c.Index == n-1 && c.Direction == core.Forward) || (c.Index == 0 && c.Direction == core.Backward) {
		c.Direction = c.Direction.Reverse()
	}
}
