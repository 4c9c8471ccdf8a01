// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating the
// in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/database"
	gormstorage "github.com/zephyrus-green/ferrycast/internal/storage/gorm"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      config.SQLiteConfig
	deps     gormstorage.Dependencies
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	started  time.Time

	mu        sync.Mutex
	positions int
	volume    int
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, deps gormstorage.Dependencies) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	deps.DB = db

	return &Backend{
		Backend:  gormstorage.New(deps),
		cfg:      cfg,
		deps:     deps,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.started = time.Now()

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// RecordPosition counts the event for the export metadata and queues it.
func (b *Backend) RecordPosition(e *core.PositionEvent) error {
	b.mu.Lock()
	b.positions++
	b.mu.Unlock()
	return b.Backend.RecordPosition(e)
}

// RecordVolume counts the intent for the export metadata and queues it.
func (b *Backend) RecordVolume(v *core.VolumeIntent) error {
	b.mu.Lock()
	b.volume++
	b.mu.Unlock()
	return b.Backend.RecordVolume(v)
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stopChan)
		b.wg.Wait()

		err = b.Backend.Close()
		if b.cfg.DumpPath != "" {
			if dumpErr := database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath); dumpErr != nil {
				err = errors.Join(err, dumpErr)
			}
		}
	})
	return err
}

// GetExportedFilePath returns the dump file written on Close.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}

// GetExportMetadata summarises what the dump contains.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return core.UploadMetadata{
		Vessels:   len(b.deps.Session.Vessels),
		Positions: b.positions,
		Volume:    b.volume,
		Started:   b.started,
		Duration:  time.Since(b.started),
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("Error flushing before dump")
			}
			d, err := database.TimedDump(b.DB(), b.cfg.DumpPath)
			if err != nil {
				b.deps.Logger.Error().Err(err).Msg("Error dumping to disk")
				continue
			}
			b.deps.Logger.Debug().Dur("duration", d).Msg("Dumped to disk")
		}
	}
}
