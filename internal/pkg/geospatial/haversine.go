package geospatial

import (
	"math"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Position) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox returns the boundary enclosing a circle of radiusMeters
// around center, clamped to the coordinate range.
func BoundingBox(center domain.Position, radiusMeters float64) domain.Boundary {
	latDelta := radiusMeters / metersPerDegree
	lonDelta := 180.0
	if cos := math.Cos(toRad(center.Latitude)); cos > 1e-9 {
		lonDelta = math.Min(radiusMeters/(metersPerDegree*cos), 180)
	}

	return domain.Boundary{
		SouthWestLat: math.Max(center.Latitude-latDelta, -90),
		SouthWestLng: math.Max(center.Longitude-lonDelta, -180),
		NorthEastLat: math.Min(center.Latitude+latDelta, 90),
		NorthEastLng: math.Min(center.Longitude+lonDelta, 180),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
