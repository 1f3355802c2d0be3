// Package geo contains pure geographic computation helpers.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"mechanico/internal/types"
)

const earthRadiusKm = 6371.0

// DefaultCellPrecision gives roughly 1.2km x 0.6km cells.
const DefaultCellPrecision = 6

// DistanceKm returns the great-circle distance between a and b in kilometres,
// rounded to two decimal places.
func DistanceKm(a, b types.Point) float64 {
	return Round2(haversineKm(a.Lat, a.Lng, b.Lat, b.Lng))
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Valid reports whether p is a usable WGS84 coordinate.
func Valid(p types.Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Cell encodes p as a geohash of the given precision (1-12 characters).
func Cell(p types.Point, precision uint) string {
	if precision == 0 || precision > 12 {
		precision = DefaultCellPrecision
	}
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, precision)
}
