package geometry

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"housingsearch/server/internal/models"
)

const (
	// GeohashPrecision is the precision stored alongside every listing
	GeohashPrecision = 9

	kmPerDegree = 111.195
)

// Geohash encodes a point at the stored precision
func Geohash(p models.GeoPoint) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, GeohashPrecision)
}

// cellSize returns the width and height in degrees of a geohash cell
func cellSize(precision uint) (lonDeg, latDeg float64) {
	bits := 5 * precision
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	return 360 / math.Pow(2, float64(lonBits)), 180 / math.Pow(2, float64(latBits))
}

// CoverCells returns the geohash cell containing center and its eight
// neighbours, at the finest precision whose cells are at least radiusKm wide
// and high. Every point within radiusKm of center falls into one of them.
// A zero precision means no finite cover exists and callers must not filter
// on geohash.
func CoverCells(center models.GeoPoint, radiusKm float64) (uint, []string) {
	dLat := radiusKm / kmPerDegree
	edgeLat := math.Abs(center.Latitude) + dLat
	if edgeLat >= 89 {
		return 0, nil
	}
	dLon := radiusKm / (kmPerDegree * math.Cos(edgeLat*math.Pi/180))

	var precision uint
	for p := uint(1); p <= GeohashPrecision; p++ {
		lonDeg, latDeg := cellSize(p)
		if lonDeg < dLon || latDeg < dLat {
			break
		}
		precision = p
	}
	if precision == 0 {
		return 0, nil
	}

	cell := geohash.EncodeWithPrecision(center.Latitude, center.Longitude, precision)
	cells := append([]string{cell}, geohash.Neighbors(cell)...)
	return precision, dedupe(cells)
}

func dedupe(cells []string) []string {
	seen := make(map[string]struct{}, len(cells))
	out := cells[:0]
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
