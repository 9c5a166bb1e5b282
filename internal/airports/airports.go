// Package airports holds the static airport table used to resolve route
// descriptors when the caller supplies only source and destination codes.
package airports

import (
	"fmt"

	"github.com/aerotrace/flight-tracker/internal/geo"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// DefaultWaypointCount is the number of segments used when generating
// display waypoints along a route.
const DefaultWaypointCount = 20

var table = map[string]types.Endpoint{
	"JFK": {Code: "JFK", Name: "John F. Kennedy International", Latitude: 40.6413, Longitude: -73.7781},
	"LAX": {Code: "LAX", Name: "Los Angeles International", Latitude: 33.9416, Longitude: -118.4085},
	"ORD": {Code: "ORD", Name: "Chicago O'Hare International", Latitude: 41.9786, Longitude: -87.9048},
	"DFW": {Code: "DFW", Name: "Dallas/Fort Worth International", Latitude: 32.8968, Longitude: -97.0380},
	"ATL": {Code: "ATL", Name: "Hartsfield-Jackson Atlanta International", Latitude: 33.6407, Longitude: -84.4277},
	"DEN": {Code: "DEN", Name: "Denver International", Latitude: 39.8561, Longitude: -104.6737},
	"SFO": {Code: "SFO", Name: "San Francisco International", Latitude: 37.6213, Longitude: -122.3790},
	"SEA": {Code: "SEA", Name: "Seattle-Tacoma International", Latitude: 47.4502, Longitude: -122.3088},
	"BOS": {Code: "BOS", Name: "Logan International", Latitude: 42.3656, Longitude: -71.0096},
	"MIA": {Code: "MIA", Name: "Miami International", Latitude: 25.7959, Longitude: -80.2871},
	"LHR": {Code: "LHR", Name: "London Heathrow", Latitude: 51.4700, Longitude: -0.4543},
	"CDG": {Code: "CDG", Name: "Charles de Gaulle", Latitude: 49.0097, Longitude: 2.5479},
	"NRT": {Code: "NRT", Name: "Narita International", Latitude: 35.7720, Longitude: 140.3928},
	"DXB": {Code: "DXB", Name: "Dubai International", Latitude: 25.2532, Longitude: 55.3657},
}

// Lookup returns the endpoint for an IATA code.
func Lookup(code string) (types.Endpoint, bool) {
	ep, ok := table[code]
	return ep, ok
}

// All returns a copy of the airport table.
func All() map[string]types.Endpoint {
	out := make(map[string]types.Endpoint, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out
}

// Route builds a RouteDescriptor for a source/destination pair, including
// evenly spaced display waypoints.
func Route(source, destination string) (*types.RouteDescriptor, error) {
	src, ok := Lookup(source)
	if !ok {
		return nil, fmt.Errorf("unknown airport code %q", source)
	}
	dst, ok := Lookup(destination)
	if !ok {
		return nil, fmt.Errorf("unknown airport code %q", destination)
	}
	return &types.RouteDescriptor{
		Source:      src,
		Destination: dst,
		Waypoints:   Waypoints(src, dst, DefaultWaypointCount),
	}, nil
}

// Waypoints generates n+1 evenly spaced points along the source to
// destination great circle, each annotated with its progress percentage.
func Waypoints(src, dst types.Endpoint, n int) []types.Waypoint {
	if n < 1 {
		return nil
	}
	total := geo.HaversineKM(src.Latitude, src.Longitude, dst.Latitude, dst.Longitude)
	bearing := geo.InitialBearing(src.Latitude, src.Longitude, dst.Latitude, dst.Longitude)
	points := make([]types.Waypoint, 0, n+1)
	for i := 0; i <= n; i++ {
		frac := float64(i) / float64(n)
		lat, lon := geo.PointAtDistance(src.Latitude, src.Longitude, bearing, total*frac)
		points = append(points, types.Waypoint{
			Latitude:  lat,
			Longitude: lon,
			Percent:   frac * 100,
		})
	}
	return points
}
