// Package postgres implements the storage.Backend interface on PostgreSQL.
// Queueing and batch writes come from the embedded GORM backend.
package postgres

import (
	"fmt"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/database"
	gormstorage "github.com/zephyrus-green/ferrycast/internal/storage/gorm"
)

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
}

// New creates a new Postgres storage backend. A DB in deps is used as is;
// otherwise Init connects with cfg.
func New(cfg config.DBConfig, deps gormstorage.Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(deps),
		cfg:     cfg,
	}
}

// Init connects when no DB was injected, then initializes the GORM backend.
func (b *Backend) Init() error {
	if b.DB() == nil {
		db, err := database.GetPostgresDB(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.SetDB(db)
	}
	return b.Backend.Init()
}
