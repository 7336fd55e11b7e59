// Package geo provides the great-circle helpers used to gate routes and size discovery queries.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance
const EarthRadiusKm = 6371.0

// MaxDiscoveryRadiusKm caps the search radius sent to the observation service
const MaxDiscoveryRadiusKm = 100.0

// samePointEpsilon is the coordinate tolerance, in degrees, for SamePoint
const samePointEpsilon = 1e-6

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat float64
	Lng float64
}

// Distance returns the haversine distance between a and b in kilometers
func Distance(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h just past 1 for near-antipodal points
	h = math.Min(1, math.Max(0, h))
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Midpoint returns the great-circle midpoint between a and b
func Midpoint(a, b Point) Point {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	lng1 := toRad(a.Lng)
	dLng := toRad(b.Lng - a.Lng)

	bx := math.Cos(lat2) * math.Cos(dLng)
	by := math.Cos(lat2) * math.Sin(dLng)

	lat := math.Atan2(math.Sin(lat1)+math.Sin(lat2), math.Sqrt((math.Cos(lat1)+bx)*(math.Cos(lat1)+bx)+by*by))
	lng := lng1 + math.Atan2(by, math.Cos(lat1)+bx)

	return Point{Lat: toDeg(lat), Lng: normalizeLng(toDeg(lng))}
}

// SamePoint reports whether a and b are the same location within 1e-6 degrees
func SamePoint(a, b Point) bool {
	return math.Abs(a.Lat-b.Lat) < samePointEpsilon && math.Abs(a.Lng-b.Lng) < samePointEpsilon
}

// DiscoveryRadius sizes the discovery circle around a route midpoint so it covers both ends.
// Zone requests (distance 0) get zoneRadiusKm. The result never exceeds MaxDiscoveryRadiusKm.
func DiscoveryRadius(distanceKm, zoneRadiusKm float64) float64 {
	r := math.Max(zoneRadiusKm, distanceKm/2+zoneRadiusKm)
	return math.Min(r, MaxDiscoveryRadiusKm)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
