package classify

import (
	"context"
	"sync"
	"time"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, frame []byte) (Result, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// LabelsOverride overrides the default labels.
	LabelsOverride []string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a new mock classifier with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, frame []byte) (Result, error) {
			return Result{
				{Label: "Closed", Probability: 0.9},
				{Label: "Open", Probability: 0.1},
			}, nil
		},
	}
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, frame []byte) (Result, error) {
	m.record("Classify")
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, frame)
	}
	return nil, ErrClosed
}

// Labels returns the mock labels.
func (m *Mock) Labels() []string {
	if m.LabelsOverride != nil {
		return m.LabelsOverride
	}
	return []string{"Closed", "Open"}
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns a copy of recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}
