package canvas

import (
	"math"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

const (
	// TileSize is the edge of one map tile in pixels.
	TileSize = 256

	// MinLevel is the closest level; MaxLevel the most zoomed out.
	MinLevel = 1
	MaxLevel = 19

	// maxZoom is the slippy-map zoom shown at MinLevel - 1.
	maxZoom = 20

	// maxLatitude is the Web Mercator cut-off.
	maxLatitude = 85.05112878
)

// zoomForLevel converts a map level, where 1 is closest, into a slippy-map
// zoom.
func zoomForLevel(level int) float64 {
	return float64(maxZoom - clampLevel(level))
}

func clampLevel(level int) int {
	return max(MinLevel, min(level, MaxLevel))
}

// worldCoordinates converts a position to world pixel coordinates at zoom.
func worldCoordinates(p domain.Position, zoom float64) (float64, float64) {
	n := math.Pow(2, zoom)
	latRad := clampLatitude(p.Latitude) * math.Pi / 180.0
	x := TileSize * n * (p.Longitude + 180) / 360
	y := TileSize * n * (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2
	return x, y
}

// worldToPosition converts world pixel coordinates back to a position. The
// longitude is wrapped and the latitude clamped.
func worldToPosition(x, y, zoom float64) domain.Position {
	n := math.Pow(2, zoom)
	lng := (x/(TileSize*n))*360 - 180
	latRad := math.Pi * (1 - 2*y/(TileSize*n))
	lat := 180 / math.Pi * math.Atan(math.Sinh(latRad))
	return domain.Position{Latitude: clampLatitude(lat), Longitude: wrapLongitude(lng)}
}

func clampLatitude(lat float64) float64 {
	return math.Max(-maxLatitude, math.Min(lat, maxLatitude))
}

func wrapLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

// panned returns the center reached by dragging the view dx pixels east and
// dy pixels south.
func panned(center domain.Position, level int, dx, dy float64) domain.Position {
	zoom := zoomForLevel(level)
	x, y := worldCoordinates(center, zoom)
	return worldToPosition(x+dx, y+dy, zoom)
}

// extents returns the boundary rendered by a width x height viewport around
// center. Corners are clamped to the valid coordinate range.
func extents(center domain.Position, level, width, height int) domain.Boundary {
	zoom := zoomForLevel(level)
	x, y := worldCoordinates(center, zoom)
	halfW, halfH := float64(width)/2, float64(height)/2

	world := TileSize * math.Pow(2, zoom)
	sw := worldToPositionClamped(x-halfW, y+halfH, zoom, world)
	ne := worldToPositionClamped(x+halfW, y-halfH, zoom, world)
	return domain.NewBoundary(sw, ne)
}

// worldToPositionClamped is worldToPosition without longitude wrapping, so
// a viewport wider than the antimeridian stays a single rectangle.
func worldToPositionClamped(x, y, zoom, world float64) domain.Position {
	x = math.Max(0, math.Min(x, world))
	y = math.Max(0, math.Min(y, world))
	return worldToPosition(x, y, zoom)
}
