package domain

import "errors"

var (
	// ErrPositionUnavailable is returned when the geolocation capability fails:
	// permission denied, timeout, or hardware/signal loss.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrAcquisitionCancelled marks a one-shot acquisition superseded by user
	// interaction. It is not a failure.
	ErrAcquisitionCancelled = errors.New("position acquisition cancelled")

	// ErrWatchUnsupported is reported once when continuous tracking is not
	// available in the hosting environment.
	ErrWatchUnsupported = errors.New("position watch unsupported")

	ErrMapNotReady       = errors.New("map not ready")
	ErrNotInteractive    = errors.New("map does not accept gestures")
	ErrSessionNotFound   = errors.New("session not found")
	ErrGymNotFound       = errors.New("gym not found")
	ErrPositionNotCached = errors.New("no cached position")
)
