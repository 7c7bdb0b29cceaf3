package monitor

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrNotReady is returned by Start when the classifier is missing.
	// Starting without a loaded model is refused rather than silently
	// ignored so the caller gets an inspectable condition.
	ErrNotReady = errors.New("monitor: not ready")

	// ErrAlreadyRunning is returned by Start while the loop is active.
	// Only one loop may run against a given video source.
	ErrAlreadyRunning = errors.New("monitor: already running")
)
