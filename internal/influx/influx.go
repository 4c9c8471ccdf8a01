package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// MeasurementPosition is the measurement every simulated fix is written to.
const MeasurementPosition = "vessel_position"

// retentionSeconds keeps telemetry for 90 days.
const retentionSeconds = 60 * 60 * 24 * 90

var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes. When the server cannot be
// reached at Connect, points are appended to a gzip line-protocol backup file.
type Manager struct {
	cfg        config.InfluxConfig
	logger     zerolog.Logger
	backupPath string

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
	written      uint64
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		logger:     log.With().Str("component", "influx").Logger(),
		backupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB, creating the org and bucket
// when missing. A failed ping switches to the backup file instead of failing.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		if m.backupWriter == nil {
			m.logger.Info().Str("backupPath", m.backupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.backupWriter = gzip.NewWriter(file)
		}
		m.logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Valid reports whether points go to the server rather than the backup file.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// Written returns how many points were accepted.
func (m *Manager) Written() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// PositionPoint builds the vessel_position point for one event. The Web
// Mercator projection is stored next to lat/lon for map panels.
func PositionPoint(e core.PositionEvent) *influxdb2_write.Point {
	x, y := geo.Mercator(core.Waypoint{Lat: e.Lat, Lon: e.Lon})
	p := influxdb2_write.NewPointWithMeasurement(MeasurementPosition).
		AddTag("mmsi", e.MMSI.String()).
		AddField("lat", e.Lat).
		AddField("lon", e.Lon).
		AddField("x", x).
		AddField("y", y).
		AddField("tick", e.Tick).
		SetTime(e.Time)
	if e.Terminal != "" {
		p.AddTag("terminal", e.Terminal)
	}
	return p
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		m.written++
		return nil
	}
	if m.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	m.written++
	return nil
}

// ObservePosition records a simulator fix. Errors are logged, not returned,
// so telemetry never stalls the tick loop.
func (m *Manager) ObservePosition(e core.PositionEvent) {
	if err := m.WritePoint(PositionPoint(e)); err != nil {
		m.logger.Error().Err(err).Int64("mmsi", int64(e.MMSI)).Msg("Failed to write position point")
	}
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.backupWriter != nil {
		if err := m.backupWriter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing backup writer: %w", err))
		}
		m.backupWriter = nil
	}
	if m.backupFile != nil {
		if err := m.backupFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing backup file: %w", err))
		}
		m.backupFile = nil
	}
	m.valid = false
	return errors.Join(errs...)
}
