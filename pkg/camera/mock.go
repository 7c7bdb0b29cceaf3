package camera

import (
	"sync"
)

// Mock implements Source for testing.
type Mock struct {
	// OpenFunc is called when Open is invoked.
	OpenFunc func() error

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// FrameFunc is called when Frame is invoked.
	FrameFunc func() ([]byte, error)

	// Ready controls FrameReady when FrameReadyFunc is nil.
	Ready bool

	// FrameReadyFunc overrides the Ready field.
	FrameReadyFunc func() bool

	mu         sync.Mutex
	openCount  int
	closeCount int
	opened     int // currently open handles
}

// NewMock creates a mock source that is always ready and serves a
// tiny static frame.
func NewMock() *Mock {
	return &Mock{
		Ready: true,
		FrameFunc: func() ([]byte, error) {
			return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
		},
	}
}

// Open records the acquisition and calls OpenFunc. A failed OpenFunc
// does not count as an acquisition.
func (m *Mock) Open() error {
	if m.OpenFunc != nil {
		if err := m.OpenFunc(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.opened == 0 {
		m.openCount++
		m.opened++
	}
	m.mu.Unlock()
	return nil
}

// Close records the release and calls CloseFunc. Idempotent.
func (m *Mock) Close() error {
	m.mu.Lock()
	if m.opened > 0 {
		m.closeCount++
		m.opened--
	}
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// FrameReady reports readiness.
func (m *Mock) FrameReady() bool {
	if m.FrameReadyFunc != nil {
		return m.FrameReadyFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Ready && m.opened > 0
}

// Frame calls FrameFunc.
func (m *Mock) Frame() ([]byte, error) {
	if m.FrameFunc != nil {
		return m.FrameFunc()
	}
	return nil, ErrNoFrame
}

// OpenHandles returns the number of currently acquired handles.
func (m *Mock) OpenHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Acquisitions returns how many effective Open calls happened.
func (m *Mock) Acquisitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCount
}

// Releases returns how many effective Close calls happened.
func (m *Mock) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}
