package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// ExportVersion is bumped when the export layout changes.
const ExportVersion = 1

// HistoryExport is the root JSON structure
type HistoryExport struct {
	Version  int            `json:"version"`
	Started  time.Time      `json:"started"`
	Ended    time.Time      `json:"ended"`
	Vessels  []VesselExport `json:"vessels"`
	Volume   []VolumeExport `json:"volume"`
	EndTick  uint64         `json:"endTick"`
	Duration string         `json:"duration"`
}

// VesselExport is one vessel's track. Each position is [tick, lat, lon, terminal].
type VesselExport struct {
	MMSI      core.MMSI `json:"mmsi"`
	Positions [][]any   `json:"positions"`
}

// VolumeExport is one volume intent.
type VolumeExport struct {
	Time      time.Time `json:"time"`
	Direction string    `json:"direction"`
	Delta     int       `json:"delta"`
}

// exportJSON writes the session to a JSON file, gzipped when configured.
// Caller holds b.mu.
func (b *Backend) exportJSON() error {
	ended := b.now()
	export := b.buildExport(ended)

	timestamp := b.started.Format("20060102_150405")
	filename := fmt.Sprintf("ferrycast_%s.json", timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	positions := 0
	for _, v := range export.Vessels {
		positions += len(v.Positions)
	}
	b.lastExportPath = outputPath
	b.lastExportMeta = core.UploadMetadata{
		Vessels:   len(export.Vessels),
		Positions: positions,
		Volume:    len(export.Volume),
		Started:   b.started,
		Duration:  ended.Sub(b.started),
	}
	return nil
}

func (b *Backend) buildExport(ended time.Time) HistoryExport {
	export := HistoryExport{
		Version:  ExportVersion,
		Started:  b.started.UTC(),
		Ended:    ended.UTC(),
		Vessels:  make([]VesselExport, 0, len(b.order)),
		Volume:   make([]VolumeExport, 0, len(b.volume)),
		Duration: ended.Sub(b.started).String(),
	}

	for _, mmsi := range b.order {
		rec := b.vessels[mmsi]
		ve := VesselExport{MMSI: mmsi, Positions: make([][]any, 0, len(rec.Positions))}
		for _, p := range rec.Positions {
			ve.Positions = append(ve.Positions, []any{p.Tick, p.Lat, p.Lon, p.Terminal})
			export.EndTick = max(export.EndTick, p.Tick)
		}
		export.Vessels = append(export.Vessels, ve)
	}

	for _, v := range b.volume {
		export.Volume = append(export.Volume, VolumeExport{
			Time:      v.Time.UTC(),
			Direction: v.Direction(),
			Delta:     v.Delta,
		})
	}
	return export
}

func writeJSON(path string, data HistoryExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, data HistoryExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
