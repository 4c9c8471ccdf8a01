// pkg/core/vessel.go
package core

import "fmt"

// MMSI identifies a simulated vessel (maritime mobile service identity).
type MMSI int64

func (m MMSI) String() string {
	return fmt.Sprintf("%09d", int64(m))
}

// Waypoint is a fixed point on the shared track, in WGS84 degrees.
type Waypoint struct {
	Lat float64 `json:"lat" mapstructure:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" mapstructure:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
}

// Direction is the traversal direction of a vessel along the track.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

// Vessel is a configured member of the fleet.
// Start is the waypoint index the vessel begins at.
type Vessel struct {
	MMSI  MMSI   `json:"mmsi" mapstructure:"mmsi" validate:"required,gt=0"`
	Name  string `json:"name,omitempty" mapstructure:"name"`
	Start int    `json:"start" mapstructure:"start"`
}

// VesselPosition is one record of a snapshot frame.
type VesselPosition struct {
	MMSI MMSI    `json:"mmsi"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Terminal is a named ferry stop used for proximity reporting.
type Terminal struct {
	Name string  `json:"name" mapstructure:"name" validate:"required"`
	Lat  float64 `json:"lat" mapstructure:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon" mapstructure:"lon" validate:"gte=-180,lte=180"`
}
