// Package monitor drives the door classification loop.
//
// The loop wakes at a fixed tick cadence and decides each cycle whether
// to classify the current frame. Two guarantees hold at all times: at
// most one classification is in flight, and classifications start no
// closer together than the configured minimum interval. A result that
// resolves after Stop is discarded, never published.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doorwatch/go-doorwatch/pkg/classify"
)

// VideoSource is the frame source consumed by the loop.
type VideoSource interface {
	Open() error
	Close() error
	FrameReady() bool
	Frame() ([]byte, error)
}

// Classifier ranks a frame against the model's classes.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (classify.Result, error)
}

// Publisher receives a snapshot after every state change.
type Publisher interface {
	Publish(Snapshot)
}

// State is the lifecycle state of the loop.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Stats counts cycle outcomes for the current session.
type Stats struct {
	Cycles          uint64 `json:"cycles"`
	SkippedThrottle uint64 `json:"skipped_throttle"`
	SkippedInFlight uint64 `json:"skipped_in_flight"`
	SkippedNoFrame  uint64 `json:"skipped_no_frame"`
	Classifications uint64 `json:"classifications"`
	Failures        uint64 `json:"failures"`
	Discarded       uint64 `json:"discarded"`
}

// Snapshot is the published view of the loop after a state change.
type Snapshot struct {
	SessionID  string               `json:"session_id,omitempty"`
	Running    bool                 `json:"running"`
	Error      string               `json:"error,omitempty"`
	Prediction *classify.Prediction `json:"prediction,omitempty"`
	Stats      Stats                `json:"stats"`
}

// Monitor owns the scheduling loop and its lifecycle.
//
// All loop state lives here, guarded by one mutex: the in-flight flag
// is set and cleared under it, so a later cycle's skip check always
// observes an earlier cycle's flag (no classification overlap).
type Monitor struct {
	cfg        Config
	video      VideoSource
	classifier Classifier
	publisher  Publisher
	logger     *slog.Logger

	mu             sync.Mutex
	state          State
	inFlight       bool
	lastInvocation time.Time // zero means never
	generation     uint64
	prediction     *classify.Prediction
	lastErr        string
	stats          Stats
	sessionID      string
	stop           chan struct{}
	done           chan struct{}
}

// New creates a monitor. The classifier must already be loaded; the
// video source is acquired on Start.
func New(cfg Config, video VideoSource, classifier Classifier, publisher Publisher, logger *slog.Logger) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultConfig().MinInterval
	}
	if cfg.States == nil {
		cfg.States = classify.DefaultStateMap()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:        cfg,
		video:      video,
		classifier: classifier,
		publisher:  publisher,
		logger:     logger.With("component", "monitor"),
	}
}

// Start acquires the video source and begins the loop. The first cycle
// runs immediately. Returns ErrNotReady if no classifier is loaded,
// ErrAlreadyRunning if the loop is active, and a wrapped acquisition
// error if the camera cannot be opened; in that case the loop stays
// stopped and Start may be retried.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if m.classifier == nil || m.video == nil {
		m.mu.Unlock()
		return ErrNotReady
	}
	m.state = StateStarting
	m.mu.Unlock()

	if err := m.video.Open(); err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.publish()
		return fmt.Errorf("monitor: open video source: %w", err)
	}

	m.mu.Lock()
	m.state = StateRunning
	m.sessionID = uuid.NewString()
	m.lastInvocation = time.Time{}
	m.prediction = nil
	m.lastErr = ""
	m.stats = Stats{}
	m.generation++
	gen := m.generation
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	session := m.sessionID
	m.mu.Unlock()

	m.logger.Info("monitor started",
		"session_id", session,
		"tick", m.cfg.TickInterval,
		"min_interval", m.cfg.MinInterval)
	m.publish()

	go m.run(gen, stop, done)
	return nil
}

// Stop halts the loop and releases the video source. Idempotent: extra
// calls have no effect. An in-flight classification is allowed to
// complete, but its result is discarded and no further cycle runs.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return nil
	}
	m.state = StateStopping
	m.generation++ // late results from this session are discarded
	stop, done := m.stop, m.done
	session := m.sessionID
	m.mu.Unlock()

	close(stop)
	<-done

	err := m.video.Close()

	m.mu.Lock()
	m.state = StateIdle
	m.lastInvocation = time.Time{}
	m.prediction = nil
	m.mu.Unlock()

	m.logger.Info("monitor stopped", "session_id", session)
	m.publish()
	return err
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	return m.State() == StateRunning
}

// Snapshot returns the current published view of the loop.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: m.sessionID,
		Running:   m.state == StateRunning,
		Error:     m.lastErr,
		Stats:     m.stats,
	}
	if m.prediction != nil {
		p := *m.prediction
		snap.Prediction = &p
	}
	return snap
}

func (m *Monitor) publish() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	pub := m.publisher
	m.mu.Unlock()

	if pub != nil {
		pub.Publish(snap)
	}
}

// run reschedules cycles until stopped. The stop check happens both in
// the select and again before each cycle, so a stop racing a tick never
// schedules more work.
func (m *Monitor) run(gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	m.cycle(gen)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			m.cycle(gen)
		}
	}
}

// cycle runs one scheduling decision. Skipped cycles do no work but the
// loop keeps ticking regardless.
func (m *Monitor) cycle(gen uint64) {
	m.mu.Lock()
	if m.state != StateRunning || m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.stats.Cycles++

	if m.inFlight {
		m.stats.SkippedInFlight++
		m.mu.Unlock()
		return
	}

	now := time.Now()
	if !m.lastInvocation.IsZero() && now.Sub(m.lastInvocation) < m.cfg.MinInterval {
		m.stats.SkippedThrottle++
		m.mu.Unlock()
		return
	}

	if !m.video.FrameReady() {
		m.stats.SkippedNoFrame++
		m.mu.Unlock()
		return
	}

	// Committed: mark in-flight before the classification starts so
	// every subsequent cycle observes it.
	m.inFlight = true
	m.lastInvocation = now
	m.mu.Unlock()

	frame, err := m.video.Frame()
	if err != nil {
		m.mu.Lock()
		m.inFlight = false
		m.stats.SkippedNoFrame++
		m.mu.Unlock()
		return
	}

	go m.classifyFrame(gen, frame)
}

// classifyFrame runs one classification and publishes its outcome.
// The monitor must not assume same-goroutine completion; all shared
// state is touched under the mutex.
func (m *Monitor) classifyFrame(gen uint64, frame []byte) {
	ctx := context.Background()
	cancel := func() {}
	if m.cfg.ClassifyTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ClassifyTimeout)
	}
	defer cancel()

	result, err := m.classifier.Classify(ctx, frame)

	m.mu.Lock()
	m.inFlight = false

	if m.generation != gen || m.state != StateRunning {
		m.stats.Discarded++
		m.mu.Unlock()
		return
	}

	if err != nil {
		// Non-fatal: the loop keeps running and the previous
		// prediction stays displayed.
		m.stats.Failures++
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.logger.Warn("classification failed", "error", err)
		m.publish()
		return
	}

	m.stats.Classifications++

	pred, ok := classify.Interpret(result, m.cfg.States)
	if !ok {
		// Empty or unmappable result: previous prediction persists.
		m.mu.Unlock()
		return
	}

	m.prediction = &pred
	m.lastErr = ""
	m.mu.Unlock()

	m.logger.Debug("prediction",
		"label", pred.Label,
		"confidence", pred.Confidence,
		"door_state", pred.State.String())
	m.publish()
}
