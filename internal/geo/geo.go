// Package geo implements the spherical-earth math used by the route
// progress and temporal query engines.
package geo

import "math"

// EarthRadiusKM is the mean earth radius used by the spherical
// approximation.
const EarthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points in
// kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}

// InitialBearing returns the initial bearing in radians from point 1 to
// point 2 along the great circle connecting them.
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := radians(lat1)
	p2 := radians(lat2)
	dLon := radians(lon2 - lon1)
	y := math.Sin(dLon) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dLon)
	return math.Atan2(y, x)
}

// AlongTrackKM returns the distance from the start of the path
// (lat1,lon1)->(lat2,lon2) to the projection of (lat3,lon3) onto that
// great circle. Negative when the projection falls before the start.
func AlongTrackKM(lat1, lon1, lat2, lon2, lat3, lon3 float64) float64 {
	d13 := HaversineKM(lat1, lon1, lat3, lon3) / EarthRadiusKM
	b13 := InitialBearing(lat1, lon1, lat3, lon3)
	b12 := InitialBearing(lat1, lon1, lat2, lon2)
	xt := math.Asin(math.Sin(d13) * math.Sin(b13-b12))
	at := math.Acos(clampUnit(math.Cos(d13) / math.Cos(xt)))
	if math.Cos(b13-b12) < 0 {
		at = -at
	}
	return at * EarthRadiusKM
}

// PointAtDistance returns the coordinate reached by traveling distKM from
// (lat,lon) along the given initial bearing (radians).
func PointAtDistance(lat, lon, bearing, distKM float64) (float64, float64) {
	d := distKM / EarthRadiusKM
	p1 := radians(lat)
	l1 := radians(lon)
	p2 := math.Asin(math.Sin(p1)*math.Cos(d) + math.Cos(p1)*math.Sin(d)*math.Cos(bearing))
	l2 := l1 + math.Atan2(math.Sin(bearing)*math.Sin(d)*math.Cos(p1),
		math.Cos(d)-math.Sin(p1)*math.Sin(p2))
	// Normalize longitude to [-180, 180)
	lonOut := math.Mod(degrees(l2)+540, 360) - 180
	return degrees(p2), lonOut
}

// LerpAngle interpolates between two headings in degrees taking the
// shorter angular path, so 350 -> 10 passes through 0 rather than 180.
func LerpAngle(from, to, frac float64) float64 {
	diff := math.Mod(to-from+540, 360) - 180
	h := from + diff*frac
	return math.Mod(h+360, 360)
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// clampUnit keeps acos arguments inside [-1, 1] against floating point
// drift on near-degenerate triangles.
func clampUnit(v float64) float64 {
	return Clamp(v, -1, 1)
}
