package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/database"
	"github.com/zephyrus-green/ferrycast/internal/model"
	"github.com/zephyrus-green/ferrycast/internal/model/convert"
	"github.com/zephyrus-green/ferrycast/internal/storage"
	gormstorage "github.com/zephyrus-green/ferrycast/internal/storage/gorm"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

func newBackend(t *testing.T, cfg config.SQLiteConfig) *Backend {
	t.Helper()
	b, err := New(cfg, gormstorage.Dependencies{
		Logger:        zerolog.Nop(),
		FlushInterval: time.Hour,
		Session: convert.SessionParams{
			Vessels: []core.Vessel{{MMSI: 1}, {MMSI: 2}},
		},
	})
	require.NoError(t, err)
	return b
}

func countPositions(t *testing.T, path string) int64 {
	t.Helper()
	db, err := database.GetSqliteDB(path)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&model.PositionRecord{}).Count(&n).Error)
	return n
}

func TestCloseWritesFinalDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	b := newBackend(t, config.SQLiteConfig{DumpPath: path})
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordPosition(&core.PositionEvent{MMSI: 1, Tick: 1}))
	require.NoError(t, b.RecordPosition(&core.PositionEvent{MMSI: 2, Tick: 1}))
	require.NoError(t, b.RecordVolume(&core.VolumeIntent{Delta: core.VolumeUp}))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, path, b.GetExportedFilePath())
	assert.Equal(t, int64(2), countPositions(t, path))

	meta := b.GetExportMetadata()
	assert.Equal(t, 2, meta.Vessels)
	assert.Equal(t, 2, meta.Positions)
	assert.Equal(t, 1, meta.Volume)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b := newBackend(t, config.SQLiteConfig{DumpPath: path, DumpInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.RecordPosition(&core.PositionEvent{MMSI: 1}))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNoDumpPath(t *testing.T) {
	b := newBackend(t, config.SQLiteConfig{})
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	assert.Empty(t, b.GetExportedFilePath())
}
