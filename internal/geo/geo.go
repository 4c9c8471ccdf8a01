package geo

import (
	"errors"
	"math"

	"github.com/wroge/wgs84"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// Positions are carried as WGS84 (EPSG:4326) degrees everywhere in the service.
// Web Mercator (EPSG:3857) metres are derived only for telemetry consumers that plot them.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// EarthRadius is the mean earth radius in metres used for haversine distances.
const EarthRadius = 6371000.0

var to3857 = wgs84.EPSG().Transform(4326, 3857)

// ValidWaypoint reports whether wp is a finite WGS84 coordinate.
func ValidWaypoint(wp core.Waypoint) bool {
	if math.IsNaN(wp.Lat) || math.IsNaN(wp.Lon) || math.IsInf(wp.Lat, 0) || math.IsInf(wp.Lon, 0) {
		return false
	}
	return wp.Lat >= -90 && wp.Lat <= 90 && wp.Lon >= -180 && wp.Lon <= 180
}

// Mercator projects a waypoint to EPSG:3857 metres.
func Mercator(wp core.Waypoint) (x, y float64) {
	x, y, _ = to3857(wp.Lon, wp.Lat, 0)
	return x, y
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance between two waypoints in metres.
func Distance(a, b core.Waypoint) float64 {
	phi1 := deg2rad(a.Lat)
	phi2 := deg2rad(b.Lat)
	dPhi := deg2rad(b.Lat - a.Lat)
	dLambda := deg2rad(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// NearestTerminal returns the closest terminal to wp and its distance.
// ok is false when terminals is empty.
func NearestTerminal(wp core.Waypoint, terminals []core.Terminal) (nearest core.Terminal, dist float64, ok bool) {
	dist = math.Inf(1)
	for _, t := range terminals {
		d := Distance(wp, core.Waypoint{Lat: t.Lat, Lon: t.Lon})
		if d < dist {
			nearest, dist, ok = t, d, true
		}
	}
	return nearest, dist, ok
}

// TerminalWithin returns the name of the nearest terminal when it is closer
// than radius metres, or "" otherwise.
func TerminalWithin(wp core.Waypoint, terminals []core.Terminal, radius float64) string {
	t, d, ok := NearestTerminal(wp, terminals)
	if !ok || !Within(d, radius) {
		return ""
	}
	return t.Name
}

// Within reports whether a distance counts as being at a terminal of the
// given radius. The boundary itself is outside.
func Within(dist, radius float64) bool {
	return dist < radius
}
