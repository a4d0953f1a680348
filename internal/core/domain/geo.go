package domain

import "math"

// Position is a geographic coordinate (WGS 84).
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether p lies inside the WGS 84 coordinate range.
func (p Position) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Boundary is the rectangular extent currently visible in a viewport.
// SouthWest is never north or east of NorthEast.
type Boundary struct {
	SouthWestLat float64 `json:"swlat"`
	SouthWestLng float64 `json:"swlng"`
	NorthEastLat float64 `json:"nelat"`
	NorthEastLng float64 `json:"nelng"`
}

// NewBoundary builds a Boundary from two opposite corners, in any order.
func NewBoundary(a, b Position) Boundary {
	return Boundary{
		SouthWestLat: math.Min(a.Latitude, b.Latitude),
		SouthWestLng: math.Min(a.Longitude, b.Longitude),
		NorthEastLat: math.Max(a.Latitude, b.Latitude),
		NorthEastLng: math.Max(a.Longitude, b.Longitude),
	}
}

// Normalize returns b with its corners swapped where needed.
func (b Boundary) Normalize() Boundary {
	return NewBoundary(b.SouthWest(), b.NorthEast())
}

func (b Boundary) SouthWest() Position {
	return Position{Latitude: b.SouthWestLat, Longitude: b.SouthWestLng}
}

func (b Boundary) NorthEast() Position {
	return Position{Latitude: b.NorthEastLat, Longitude: b.NorthEastLng}
}

// Center returns the midpoint of the boundary.
func (b Boundary) Center() Position {
	return Position{
		Latitude:  (b.SouthWestLat + b.NorthEastLat) / 2,
		Longitude: (b.SouthWestLng + b.NorthEastLng) / 2,
	}
}

// Contains reports whether p lies inside b, edges included.
func (b Boundary) Contains(p Position) bool {
	return p.Latitude >= b.SouthWestLat && p.Latitude <= b.NorthEastLat &&
		p.Longitude >= b.SouthWestLng && p.Longitude <= b.NorthEastLng
}

// Valid reports whether both corners are valid positions and ordered.
func (b Boundary) Valid() bool {
	return b.SouthWest().Valid() && b.NorthEast().Valid() &&
		b.SouthWestLat <= b.NorthEastLat && b.SouthWestLng <= b.NorthEastLng
}
