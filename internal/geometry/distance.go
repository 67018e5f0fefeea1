package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"housingsearch/server/internal/models"
)

// Distance returns the great-circle distance between two points in kilometres
func Distance(a, b models.GeoPoint) float64 {
	if a == b {
		return 0
	}
	return geo.DistanceHaversine(a.Point(), b.Point()) / 1000
}

// RoundKm rounds a distance to two decimals, the precision exposed to clients
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}

// Bound returns the bounding box of a circle around center
func Bound(center models.GeoPoint, radiusKm float64) orb.Bound {
	return geo.NewBoundAroundPoint(center.Point(), radiusKm*1000)
}

// Nearest finds the reference point closest to p
func Nearest(p models.GeoPoint, points []models.ReferencePoint) (models.ReferencePoint, float64, bool) {
	var (
		best     models.ReferencePoint
		bestDist = math.MaxFloat64
		found    bool
	)
	for _, rp := range points {
		d := Distance(p, rp.Location)
		if d < bestDist {
			best, bestDist, found = rp, d, true
		}
	}
	return best, bestDist, found
}
