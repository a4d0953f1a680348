package domain

import "time"

// Gym is a point of interest rendered as a map marker.
type Gym struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Location  Position  `json:"location"`
	Tags      []string  `json:"tags,omitempty"`
	Distance  *float64  `json:"distance,omitempty"` // meters from the viewport center, computed
	CreatedAt time.Time `json:"created_at"`
}

// MarkerEntity is a point rendered on the map. It is never mutated in
// place: a change of position or title recreates the marker. OnClick is the
// exception and may be swapped at any time.
type MarkerEntity struct {
	Position Position
	Title    string
	OnClick  func()
}
