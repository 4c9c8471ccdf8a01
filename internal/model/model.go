package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&FerrycastInfo{},
	&Session{},
	&PositionRecord{},
	&VolumeRecord{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// FerrycastInfo identifies the deployment that owns the database.
type FerrycastInfo struct {
	gorm.Model
	Operator    string `json:"operator" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Website     string `json:"website" gorm:"size:255"`
}

func (*FerrycastInfo) TableName() string {
	return "ferrycast_infos"
}

////////////////////////
// SIMULATION DATA
////////////////////////

// Session is one run of the simulator. Every record points back at it.
type Session struct {
	gorm.Model
	StartedAt    time.Time      `json:"startedAt" gorm:"type:timestamptz;index:idx_session_started_at"`
	EndedAt      *time.Time     `json:"endedAt" gorm:"type:timestamptz"`
	TickPeriodMs int64          `json:"tickPeriodMs"`
	TrackLengthM float64        `json:"trackLengthMeters"`
	Track        datatypes.JSON `json:"track"`
	Path         string         `json:"path" gorm:"type:text"` // WKT LINESTRING, X=lon Y=lat
	Vessels      datatypes.JSON `json:"vessels"`
	Terminals    datatypes.JSON `json:"terminals"`
}

func (*Session) TableName() string {
	return "sessions"
}

// PositionRecord is one simulated fix.
type PositionRecord struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_position_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_position_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	MMSI      int64     `json:"mmsi" gorm:"index:idx_position_mmsi"`
	Tick      uint64    `json:"tick"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Terminal  string    `json:"terminal,omitempty" gorm:"size:64"`
}

func (*PositionRecord) TableName() string {
	return "position_records"
}

// VolumeRecord is one accepted volume intent from the sensor feed.
type VolumeRecord struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_volume_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_volume_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Delta     int       `json:"delta"`
	Direction string    `json:"direction" gorm:"size:8"`
}

func (*VolumeRecord) TableName() string {
	return "volume_records"
}
