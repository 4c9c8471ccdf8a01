package worker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zephyrus-green/ferrycast/internal/queue"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// Default queue capacities.
const (
	DefaultPositionCapacity = 24
	DefaultVolumeCapacity   = 6
)

var (
	positionsAttr = metric.WithAttributes(attribute.String("queue", "positions"))
	volumeAttr    = metric.WithAttributes(attribute.String("queue", "volume"))
)

// Queues holds the two bounded queues drained by pollers.
type Queues struct {
	Positions *queue.Bounded[core.PositionEvent]
	Volume    *queue.Bounded[core.VolumeIntent]

	evicted metric.Int64Counter
}

// Depths is a point-in-time view of queue occupancy.
type Depths struct {
	Positions        int    `json:"positions"`
	PositionCapacity int    `json:"positionCapacity"`
	PositionsEvicted uint64 `json:"positionsEvicted"`
	Volume           int    `json:"volume"`
	VolumeCapacity   int    `json:"volumeCapacity"`
	VolumeEvicted    uint64 `json:"volumeEvicted"`
}

// NewQueues creates both queues. Capacities below 1 are raised to 1.
func NewQueues(positionCapacity, volumeCapacity int) (*Queues, error) {
	evicted, err := meter().Int64Counter(
		"queue.evicted",
		metric.WithDescription("Items dropped from the head of a full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating eviction counter: %w", err)
	}

	return &Queues{
		Positions: queue.NewBounded[core.PositionEvent](positionCapacity),
		Volume:    queue.NewBounded[core.VolumeIntent](volumeCapacity),
		evicted:   evicted,
	}, nil
}

// PushPosition enqueues a position event, evicting the oldest when full.
func (q *Queues) PushPosition(e core.PositionEvent) {
	if n := q.Positions.Push(e); n > 0 {
		q.evicted.Add(context.Background(), int64(n), positionsAttr)
	}
}

// PushVolume enqueues a volume intent, evicting the oldest when full.
func (q *Queues) PushVolume(v core.VolumeIntent) {
	if n := q.Volume.Push(v); n > 0 {
		q.evicted.Add(context.Background(), int64(n), volumeAttr)
	}
}

// DrainPosition removes and returns the oldest position event.
func (q *Queues) DrainPosition() (core.PositionEvent, bool) {
	return q.Positions.Pop()
}

// DrainVolume removes and returns the oldest volume intent.
func (q *Queues) DrainVolume() (core.VolumeIntent, bool) {
	return q.Volume.Pop()
}

// Depths reports current lengths, capacities and eviction totals.
func (q *Queues) Depths() Depths {
	return Depths{
		Positions:        q.Positions.Len(),
		PositionCapacity: q.Positions.Cap(),
		PositionsEvicted: q.Positions.Evicted(),
		Volume:           q.Volume.Len(),
		VolumeCapacity:   q.Volume.Cap(),
		VolumeEvicted:    q.Volume.Evicted(),
	}
}
