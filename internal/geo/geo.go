// Package geo provides great-circle distance between coordinate pairs.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean earth radius used to convert the s2 angle on
// the unit sphere into a surface distance.
const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance in meters between two
// (latitude, longitude) pairs in degrees. Invalid inputs (NaN, Inf,
// out-of-range degrees) return +Inf so that no proximity threshold can match
// them.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	if !validDegrees(lat1, 90) || !validDegrees(lat2, 90) ||
		!validDegrees(lng1, 180) || !validDegrees(lng2, 180) {
		return math.Inf(1)
	}

	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

func validDegrees(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}
