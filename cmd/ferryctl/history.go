package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gorm.io/gorm"

	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/database"
	"github.com/zephyrus-green/ferrycast/internal/model"
	"github.com/zephyrus-green/ferrycast/internal/model/convert"
	"github.com/zephyrus-green/ferrycast/internal/storage/memory"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// SessionSummary is one line of the session listing.
type SessionSummary struct {
	ID        uint
	StartedAt time.Time
	EndedAt   *time.Time
	Positions int64
	Volume    int64
}

func historyCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(out)
	dbFile := fs.String("db", "", "SQLite dump file (default: the configured Postgres database)")
	sessionID := fs.Uint("session", 0, "session to export as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openHistoryDB(*dbFile)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if *sessionID == 0 {
		sessions, err := listSessions(db)
		if err != nil {
			return err
		}
		return printSessions(out, sessions)
	}

	export, err := loadSession(db, *sessionID)
	if err != nil {
		return err
	}
	return printJSON(out, export)
}

func openHistoryDB(path string) (*gorm.DB, error) {
	if path != "" {
		db, err := database.GetSqliteDB(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return db, nil
	}
	db, err := database.GetPostgresDB(config.GetDBConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

func listSessions(db *gorm.DB) ([]SessionSummary, error) {
	var sessions []model.Session
	if err := db.Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("error getting sessions: %w", err)
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		sum := SessionSummary{ID: s.ID, StartedAt: s.StartedAt, EndedAt: s.EndedAt}
		if err := db.Model(&model.PositionRecord{}).Where("session_id = ?", s.ID).Count(&sum.Positions).Error; err != nil {
			return nil, fmt.Errorf("error counting positions: %w", err)
		}
		if err := db.Model(&model.VolumeRecord{}).Where("session_id = ?", s.ID).Count(&sum.Volume).Error; err != nil {
			return nil, fmt.Errorf("error counting volume: %w", err)
		}
		out = append(out, sum)
	}
	return out, nil
}

func printSessions(out io.Writer, sessions []SessionSummary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tENDED\tPOSITIONS\tVOLUME")
	for _, s := range sessions {
		ended := "running"
		if s.EndedAt != nil {
			ended = s.EndedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", s.ID, s.StartedAt.UTC().Format(time.RFC3339), ended, s.Positions, s.Volume)
	}
	return tw.Flush()
}

// loadSession rebuilds the export layout written by the memory backend from
// the database rows of one session.
func loadSession(db *gorm.DB, id uint) (memory.HistoryExport, error) {
	var export memory.HistoryExport

	var session model.Session
	if err := db.First(&session, id).Error; err != nil {
		return export, fmt.Errorf("error getting session %d: %w", id, err)
	}
	vessels, err := convert.SessionVessels(session)
	if err != nil {
		return export, err
	}

	var positions []model.PositionRecord
	err = db.Where("session_id = ?", id).Order("tick ASC, id ASC").Find(&positions).Error
	if err != nil {
		return export, fmt.Errorf("error getting positions: %w", err)
	}
	var volume []model.VolumeRecord
	if err := db.Where("session_id = ?", id).Order("id ASC").Find(&volume).Error; err != nil {
		return export, fmt.Errorf("error getting volume: %w", err)
	}

	export = memory.HistoryExport{
		Version: memory.ExportVersion,
		Started: session.StartedAt,
		Vessels: make([]memory.VesselExport, 0, len(vessels)),
		Volume:  make([]memory.VolumeExport, 0, len(volume)),
	}
	if session.EndedAt != nil {
		export.Ended = *session.EndedAt
		export.Duration = session.EndedAt.Sub(session.StartedAt).String()
	}

	index := make(map[core.MMSI]int, len(vessels))
	for _, v := range vessels {
		index[v.MMSI] = len(export.Vessels)
		export.Vessels = append(export.Vessels, memory.VesselExport{MMSI: v.MMSI, Positions: [][]any{}})
	}
	for _, r := range positions {
		e := convert.PositionRecordToCore(r)
		i, ok := index[e.MMSI]
		if !ok {
			i = len(export.Vessels)
			index[e.MMSI] = i
			export.Vessels = append(export.Vessels, memory.VesselExport{MMSI: e.MMSI})
		}
		export.Vessels[i].Positions = append(export.Vessels[i].Positions, []any{e.Tick, e.Lat, e.Lon, e.Terminal})
		export.EndTick = max(export.EndTick, e.Tick)
	}
	for _, r := range volume {
		v := convert.VolumeRecordToCore(r)
		export.Volume = append(export.Volume, memory.VolumeExport{Time: v.Time, Direction: v.Direction(), Delta: v.Delta})
	}
	return export, nil
}
