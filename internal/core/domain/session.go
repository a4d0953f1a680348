package domain

import "time"

// ViewportPhase is the lifecycle state of a viewport controller.
type ViewportPhase int

const (
	PhaseUninitialized ViewportPhase = iota
	PhaseMapReady
	PhaseAcquiringPosition
	PhaseCentered
)

func (p ViewportPhase) String() string {
	switch p {
	case PhaseMapReady:
		return "map_ready"
	case PhaseAcquiringPosition:
		return "acquiring_position"
	case PhaseCentered:
		return "centered"
	default:
		return "uninitialized"
	}
}

// SessionSnapshot is a read-only view of one map session.
type SessionSnapshot struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"device_id"`
	Phase         string    `json:"phase"`
	Center        Position  `json:"center"`
	Level         int       `json:"level"`
	Bounds        *Boundary `json:"bounds,omitempty"`
	Loading       bool      `json:"loading"`
	Initialized   bool      `json:"initialized"`
	LivePosition  *Position `json:"live_position,omitempty"`
	Markers       int       `json:"markers"`
	SelectedGymID string    `json:"selected_gym_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session event kinds.
const (
	EventBounds      = "bounds"
	EventPosition    = "position"
	EventInitialized = "initialized"
	EventSelected    = "selected"
	EventClosed      = "closed"
)

// SessionEvent is published whenever a session's viewport or live position
// changes, for relay to WebSocket clients.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	Kind      string    `json:"kind"`
	Time      time.Time `json:"time"`
	Boundary  *Boundary `json:"boundary,omitempty"`
	Position  *Position `json:"position,omitempty"`
	GymID     string    `json:"gym_id,omitempty"`
}

// PositionFix is a single reading delivered by a device's position feed.
type PositionFix struct {
	DeviceID string    `json:"device_id"`
	Position Position  `json:"position"`
	Accuracy float64   `json:"accuracy,omitempty"` // meters
	Time     time.Time `json:"time"`
	Error    string    `json:"error,omitempty"`
}
