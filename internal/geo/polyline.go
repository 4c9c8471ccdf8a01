package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// ErrTrackTooShort is returned when a track has fewer than two waypoints.
var ErrTrackTooShort = errors.New("track must have at least 2 waypoints")

// Track is the immutable ordered list of waypoints shared by every vessel.
type Track struct {
	points []core.Waypoint
	line   geom.LineString
	length float64
}

// NewTrack validates and copies points into a Track.
func NewTrack(points []core.Waypoint) (*Track, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTrackTooShort, len(points))
	}

	cp := make([]core.Waypoint, len(points))
	flatCoords := make([]float64, 0, len(points)*2)
	var length float64
	for i, wp := range points {
		if !ValidWaypoint(wp) {
			return nil, fmt.Errorf("waypoint %d (%v,%v): %w", i, wp.Lat, wp.Lon, ErrInvalidCoordinates)
		}
		cp[i] = wp
		flatCoords = append(flatCoords, wp.Lon, wp.Lat)
		if i > 0 {
			length += Distance(points[i-1], wp)
		}
	}

	line, err := geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY))
	if err != nil {
		return nil, fmt.Errorf("building track geometry: %w", err)
	}
	return &Track{
		points: cp,
		line:   line,
		length: length,
	}, nil
}

// ParseTrack parses a JSON array of [lat,lon] pairs into a Track.
// Input format: "[[lat1,lon1],[lat2,lon2],...]"
func ParseTrack(input string) (*Track, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse track JSON: %w", err)
	}

	points := make([]core.Waypoint, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = core.Waypoint{Lat: coord[0], Lon: coord[1]}
	}
	return NewTrack(points)
}

// Len returns the number of waypoints.
func (t *Track) Len() int {
	return len(t.points)
}

// At returns waypoint i. It panics if i is out of range, like a slice index.
func (t *Track) At(i int) core.Waypoint {
	return t.points[i]
}

// Waypoints returns a copy of the waypoints.
func (t *Track) Waypoints() []core.Waypoint {
	cp := make([]core.Waypoint, len(t.points))
	copy(cp, t.points)
	return cp
}

// LengthMeters is the sum of great-circle distances between consecutive waypoints.
func (t *Track) LengthMeters() float64 {
	return t.length
}

// Bounds returns the south-west and north-east corners of the track.
func (t *Track) Bounds() (sw, ne core.Waypoint) {
	lo, hi, ok := t.line.Envelope().MinMaxXYs()
	if !ok {
		return core.Waypoint{}, core.Waypoint{}
	}
	return core.Waypoint{Lat: lo.Y, Lon: lo.X}, core.Waypoint{Lat: hi.Y, Lon: hi.X}
}

// WKT returns the track as a LINESTRING with X=lon, Y=lat.
func (t *Track) WKT() string {
	return t.line.AsText()
}
