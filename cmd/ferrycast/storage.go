package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/internal/model/convert"
	"github.com/zephyrus-green/ferrycast/internal/storage"
	gormstorage "github.com/zephyrus-green/ferrycast/internal/storage/gorm"
	"github.com/zephyrus-green/ferrycast/internal/storage/memory"
	pgstorage "github.com/zephyrus-green/ferrycast/internal/storage/postgres"
	sqlitestorage "github.com/zephyrus-green/ferrycast/internal/storage/sqlite"
	wsstorage "github.com/zephyrus-green/ferrycast/internal/storage/websocket"
)

// initStorage creates and initializes the configured history backend.
// A nil backend with a nil error means history is not recorded.
func initStorage(logger *slog.Logger, zl zerolog.Logger, fleet config.FleetConfig, track *geo.Track, start time.Time) (storage.Backend, error) {
	storageCfg, err := config.GetStorageConfig()
	if err != nil {
		return nil, err
	}

	backend, err := createStorageBackend(storageCfg, logger, zl, fleet, track, start)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		logger.Info("History storage disabled")
		return nil, nil
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	logger.Info("History storage initialized", "type", storageCfg.Type)
	return backend, nil
}

func createStorageBackend(
	storageCfg config.StorageConfig,
	logger *slog.Logger,
	zl zerolog.Logger,
	fleet config.FleetConfig,
	track *geo.Track,
	start time.Time,
) (storage.Backend, error) {
	deps := gormstorage.Dependencies{
		Logger: zl,
		Session: convert.SessionParams{
			StartedAt:    start,
			TickPeriod:   fleet.TickPeriod,
			TrackLengthM: track.LengthMeters(),
			Track:        track.Waypoints(),
			Vessels:      fleet.Vessels,
			Terminals:    fleet.Terminals,
		},
	}

	switch storageCfg.Type {
	case "postgres":
		return pgstorage.New(config.GetDBConfig(), deps), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "memory":
		return memory.New(storageCfg.Memory), nil

	case "remote":
		logger.Info("Remote storage backend selected", "url", storageCfg.Remote.URL)
		return wsstorage.New(wsstorage.Config{
			URL:        storageCfg.Remote.URL,
			Secret:     storageCfg.Remote.Secret,
			Vessels:    fleet.Vessels,
			TickPeriod: fleet.TickPeriod,
		}, logger), nil

	default:
		return nil, nil
	}
}

// closeStorage closes the backend and reports any export it produced.
func closeStorage(logger *slog.Logger, backend storage.Backend) {
	if backend == nil {
		return
	}
	if err := backend.Close(); err != nil {
		logger.Error("Failed to close storage backend", "error", err)
		return
	}
	if up, ok := backend.(storage.Uploadable); ok && up.GetExportedFilePath() != "" {
		meta := up.GetExportMetadata()
		logger.Info("History exported",
			"path", up.GetExportedFilePath(),
			"vessels", meta.Vessels,
			"positions", meta.Positions,
			"volume", meta.Volume,
			"duration", meta.Duration)
	}
}
