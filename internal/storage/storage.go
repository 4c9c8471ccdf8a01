// Package storage declares the history backends the simulator records into.
// Implementations live in the subpackages.
package storage

import "github.com/zephyrus-green/ferrycast/pkg/core"

// Recorder receives every simulated position and every accepted volume
// intent. Calls come from the tick loop and the sensor path and must not
// block on I/O.
type Recorder interface {
	RecordPosition(e *core.PositionEvent) error
	RecordVolume(v *core.VolumeIntent) error
}

// Backend is a Recorder bound to one session: Init opens it, Close ends it
// and flushes whatever is still pending.
type Backend interface {
	Recorder
	Init() error
	Close() error
}

// Uploadable is implemented by backends that leave an export file behind
// after Close.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
