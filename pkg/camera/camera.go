// Package camera provides frame sources for the door monitor: a local
// webcam via OpenCV and a remote door camera over WebRTC.
//
// Every source maintains a latest-frame cache so that reads are cheap
// and never block on capture. Acquire and release are symmetric:
// Open pairs with exactly one effective Close, and closing twice is safe.
package camera

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrAcquire is returned when the capture device or stream cannot
	// be opened. The source stays closed; callers may retry Open.
	ErrAcquire = errors.New("camera: acquisition failed")

	// ErrNoFrame is returned by Frame before the first frame arrives.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("camera: source closed")
)

// Source is a live frame source.
type Source interface {
	// Open acquires the underlying device or stream and starts
	// capturing. Opening an already-open source is a no-op.
	Open() error

	// Close releases the device or stream. Safe to call more than once.
	Close() error

	// FrameReady reports whether a current frame can be read.
	FrameReady() bool

	// Frame returns a copy of the latest captured frame as JPEG bytes.
	Frame() ([]byte, error)
}
