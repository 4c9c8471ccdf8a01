package memory

import (
	"sync"
	"time"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// VesselRecord groups a vessel with all its recorded positions.
type VesselRecord struct {
	MMSI      core.MMSI
	Positions []core.PositionEvent
}

// Backend keeps the session history in memory and exports it to JSON on Close.
type Backend struct {
	cfg     config.MemoryConfig
	started time.Time
	now     func() time.Time

	vessels map[core.MMSI]*VesselRecord
	order   []core.MMSI
	volume  []core.VolumeIntent

	lastExportPath string
	lastExportMeta core.UploadMetadata
	closed         bool
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		now:     time.Now,
		vessels: make(map[core.MMSI]*VesselRecord),
	}
}

// Init starts a fresh session.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.started = b.now()
	b.vessels = make(map[core.MMSI]*VesselRecord)
	b.order = nil
	b.volume = nil
	b.closed = false
	return nil
}

// Close exports the session. Calling it again is a no-op.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.exportJSON()
}

// RecordPosition appends e to its vessel's history.
func (b *Backend) RecordPosition(e *core.PositionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.vessels[e.MMSI]
	if !ok {
		rec = &VesselRecord{MMSI: e.MMSI}
		b.vessels[e.MMSI] = rec
		b.order = append(b.order, e.MMSI)
	}
	rec.Positions = append(rec.Positions, *e)
	return nil
}

// RecordVolume appends v to the volume history.
func (b *Backend) RecordVolume(v *core.VolumeIntent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.volume = append(b.volume, *v)
	return nil
}

// Positions returns a copy of the history for one vessel.
func (b *Backend) Positions(mmsi core.MMSI) []core.PositionEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.vessels[mmsi]
	if !ok {
		return nil
	}
	out := make([]core.PositionEvent, len(rec.Positions))
	copy(out, rec.Positions)
	return out
}

// Volume returns a copy of the recorded volume intents.
func (b *Backend) Volume() []core.VolumeIntent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.VolumeIntent, len(b.volume))
	copy(out, b.volume)
	return out
}

// GetExportedFilePath returns the path of the last export, "" before Close.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}
