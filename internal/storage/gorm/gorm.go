// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. The postgres and
// sqlite backends embed it and only differ in how the *gorm.DB is opened.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/zephyrus-green/ferrycast/internal/database"
	"github.com/zephyrus-green/ferrycast/internal/model"
	"github.com/zephyrus-green/ferrycast/internal/model/convert"
	"github.com/zephyrus-green/ferrycast/internal/queue"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

const (
	// DefaultFlushInterval is how often queued records are written.
	DefaultFlushInterval = time.Second
	// queueCapacity bounds memory while the database is unreachable.
	queueCapacity = 100_000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	Session       convert.SessionParams
	FlushInterval time.Duration
	Now           func() time.Time
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Positions *queue.Bounded[model.PositionRecord]
	Volume    *queue.Bounded[model.VolumeRecord]
}

func newQueues() *queues {
	return &queues{
		Positions: queue.NewBounded[model.PositionRecord](queueCapacity),
		Volume:    queue.NewBounded[model.VolumeRecord](queueCapacity),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
// With a nil DB it runs in queue-only mode and never writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	lastWrite atomic.Int64

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// SetDB injects the connection opened by a wrapping backend.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration, opens a session row and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	params := b.deps.Session
	if params.StartedAt.IsZero() {
		params.StartedAt = b.deps.Now().UTC()
	}
	session, err := convert.NewSession(params)
	if err != nil {
		return err
	}
	if err := b.deps.DB.Create(&session).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	b.sessionID.Store(uint64(session.ID))
	b.deps.Logger.Info().Uint("sessionId", session.ID).Msg("Recording session started")

	go b.writerLoop()
	return nil
}

// SessionID returns the id of the session row, 0 before Init.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// Close stops the writer, flushes what is left and stamps the session end.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.writeMu.Lock()
	if b.closed {
		b.writeMu.Unlock()
		return nil
	}
	b.closed = true
	b.writeMu.Unlock()

	close(b.stopChan)
	<-b.done

	if b.deps.DB == nil {
		return nil
	}
	flushErr := b.Flush()
	ended := b.deps.Now().UTC()
	endErr := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", b.SessionID()).
		Update("ended_at", ended).Error
	if endErr != nil {
		endErr = fmt.Errorf("failed to close session: %w", endErr)
	}
	return errors.Join(flushErr, endErr)
}

// RecordPosition queues one position event.
func (b *Backend) RecordPosition(e *core.PositionEvent) error {
	b.queues.Positions.Push(convert.CoreToPositionRecord(*e, b.SessionID()))
	return nil
}

// RecordVolume queues one volume intent.
func (b *Backend) RecordVolume(v *core.VolumeIntent) error {
	b.queues.Volume.Push(convert.CoreToVolumeRecord(*v, b.SessionID()))
	return nil
}

// Pending returns the number of queued, unwritten records.
func (b *Backend) Pending() int {
	return b.queues.Positions.Len() + b.queues.Volume.Len()
}

// GetLastDBWriteDuration returns how long the last flush took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes every queued record now. A failed batch goes back to the
// head of its queue so retries keep arrival order.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.Positions, "positions"),
		writeQueue(b.deps.DB, b.queues.Volume, "volume"),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

func writeQueue[T any](db *gorm.DB, q *queue.Bounded[T], name string) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return fmt.Errorf("error committing %s: %w", name, err)
	}
	return nil
}

func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("DB writer failed")
			}
		}
	}
}
