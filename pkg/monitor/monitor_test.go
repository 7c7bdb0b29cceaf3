package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doorwatch/go-doorwatch/pkg/camera"
	"github.com/doorwatch/go-doorwatch/pkg/classify"
)

// recordingPublisher captures every published snapshot.
type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (p *recordingPublisher) Publish(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func (p *recordingPublisher) snapshots() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, len(p.snaps))
	copy(out, p.snaps)
	return out
}

func (p *recordingPublisher) withPrediction() []Snapshot {
	var out []Snapshot
	for _, s := range p.snapshots() {
		if s.Prediction != nil {
			out = append(out, s)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 2 * time.Millisecond
	cfg.MinInterval = 5 * time.Millisecond
	return cfg
}

func TestStartNotReady(t *testing.T) {
	m := New(testConfig(), camera.NewMock(), nil, nil, nil)

	if err := m.Start(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if m.Running() {
		t.Error("monitor must stay stopped")
	}
}

func TestStartCameraFailureIsRetryable(t *testing.T) {
	video := camera.NewMock()
	fail := true
	video.OpenFunc = func() error {
		if fail {
			return camera.ErrAcquire
		}
		return nil
	}

	m := New(testConfig(), video, classify.NewMock(), nil, nil)
	defer m.Stop()

	err := m.Start()
	if err == nil {
		t.Fatal("expected camera acquisition error")
	}
	if !errors.Is(err, camera.ErrAcquire) {
		t.Errorf("acquisition error should be wrapped, got %v", err)
	}
	if m.Running() {
		t.Error("monitor must stay stopped after acquisition failure")
	}

	// The user may retry Start after the device recovers.
	fail = false
	if err := m.Start(); err != nil {
		t.Fatalf("retry should succeed, got %v", err)
	}
	if !m.Running() {
		t.Error("monitor should be running after retry")
	}
}

func TestStartTwice(t *testing.T) {
	m := New(testConfig(), camera.NewMock(), classify.NewMock(), nil, nil)
	defer m.Stop()

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(testConfig(), camera.NewMock(), classify.NewMock(), nil, nil)

	if err := m.Stop(); err != nil {
		t.Errorf("stop before start should be a no-op, got %v", err)
	}

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("second stop should be a no-op, got %v", err)
	}
}

func TestThrottleBoundsClassificationRate(t *testing.T) {
	clf := classify.NewMock()

	cfg := testConfig()
	cfg.TickInterval = 2 * time.Millisecond
	cfg.MinInterval = 100 * time.Millisecond

	m := New(cfg, camera.NewMock(), clf, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}

	// Ticks fire every 2ms for ~40ms; the 100ms throttle must allow
	// only the immediate first classification.
	time.Sleep(40 * time.Millisecond)
	m.Stop()

	if n := clf.CallCount("Classify"); n > 1 {
		t.Errorf("expected at most 1 classification in the throttle window, got %d", n)
	}
}

func TestNoOverlappingClassifications(t *testing.T) {
	var active, maxActive int32

	clf := classify.NewMock()
	clf.ClassifyFunc = func(ctx context.Context, frame []byte) (classify.Result, error) {
		cur := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if cur <= old || atomic.CompareAndSwapInt32(&maxActive, old, cur) {
				break
			}
		}
		// Slower than both tick and throttle.
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return classify.Result{{Label: "Closed", Probability: 1}}, nil
	}

	cfg := testConfig()
	cfg.TickInterval = time.Millisecond
	cfg.MinInterval = time.Millisecond

	m := New(cfg, camera.NewMock(), clf, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	m.Stop()

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Errorf("classifications overlapped: max concurrent = %d", got)
	}
	if clf.CallCount("Classify") < 2 {
		t.Error("expected multiple sequential classifications")
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	clf := classify.NewMock()
	clf.ClassifyFunc = func(ctx context.Context, frame []byte) (classify.Result, error) {
		close(started)
		<-release
		return classify.Result{{Label: "Open", Probability: 0.99}}, nil
	}

	pub := &recordingPublisher{}
	m := New(testConfig(), camera.NewMock(), clf, pub, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("classification never started")
	}

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}

	// Resolve the in-flight classification after Stop.
	close(release)
	time.Sleep(20 * time.Millisecond)

	if got := pub.withPrediction(); len(got) != 0 {
		t.Errorf("in-flight result resolved after stop must not be published, got %d predictions", len(got))
	}
	if m.Snapshot().Prediction != nil {
		t.Error("discarded result must not appear in the snapshot")
	}
	if n := clf.CallCount("Classify"); n != 1 {
		t.Errorf("no further cycle may run after stop, got %d calls", n)
	}
}

func TestEmptyResultKeepsPreviousPrediction(t *testing.T) {
	var calls int32
	clf := classify.NewMock()
	clf.ClassifyFunc = func(ctx context.Context, frame []byte) (classify.Result, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return classify.Result{
				{Label: "Closed", Probability: 0.2},
				{Label: "Open", Probability: 0.8},
			}, nil
		}
		return classify.Result{}, nil
	}

	pub := &recordingPublisher{}
	m := New(testConfig(), camera.NewMock(), clf, pub, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)

	snap := m.Snapshot()
	m.Stop()

	if atomic.LoadInt32(&calls) < 2 {
		t.Fatal("expected at least two classifications")
	}
	if snap.Prediction == nil {
		t.Fatal("first prediction should persist through empty results")
	}
	if snap.Prediction.State != classify.DoorOpen {
		t.Errorf("expected open, got %s", snap.Prediction.State)
	}
	if snap.Error != "" {
		t.Errorf("empty result is not an error, got %q", snap.Error)
	}

	// Exactly one snapshot carried a prediction: empty results publish
	// nothing new.
	if got := pub.withPrediction(); len(got) != 1 {
		t.Errorf("expected exactly 1 published prediction, got %d", len(got))
	}
}

func TestClassificationErrorIsNonFatal(t *testing.T) {
	var calls int32
	clf := classify.NewMock()
	clf.ClassifyFunc = func(ctx context.Context, frame []byte) (classify.Result, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return classify.Result{{Label: "Closed", Probability: 0.9}}, nil
		case 2:
			return nil, errors.New("inference backend hiccup")
		default:
			return classify.Result{{Label: "Closed", Probability: 0.9}}, nil
		}
	}

	pub := &recordingPublisher{}
	m := New(testConfig(), camera.NewMock(), clf, pub, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)

	if !m.Running() {
		t.Error("a failed cycle must not stop the loop")
	}
	snap := m.Snapshot()
	m.Stop()

	if atomic.LoadInt32(&calls) < 3 {
		t.Fatal("expected the loop to continue past the failure")
	}
	if snap.Prediction == nil {
		t.Error("previous prediction should be retained across a failure")
	}

	// The failure was surfaced through a published snapshot.
	surfaced := false
	for _, s := range pub.snapshots() {
		if s.Error != "" && s.Running {
			surfaced = true
			if s.Prediction == nil {
				t.Error("failure snapshot should retain the previous prediction")
			}
		}
	}
	if !surfaced {
		t.Error("classification failure was never published")
	}
}

func TestFrameNotReadySkipsButKeepsRescheduling(t *testing.T) {
	var ready atomic.Bool

	video := camera.NewMock()
	video.FrameReadyFunc = func() bool { return ready.Load() }

	clf := classify.NewMock()
	m := New(testConfig(), video, clf, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(30 * time.Millisecond)
	if n := clf.CallCount("Classify"); n != 0 {
		t.Fatalf("no classification may run before a frame is ready, got %d", n)
	}

	// The loop must still be ticking: once frames appear it classifies.
	ready.Store(true)
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if clf.CallCount("Classify") == 0 {
		t.Error("loop stopped rescheduling while frames were not ready")
	}

	snap := m.Snapshot()
	if snap.Stats.SkippedNoFrame == 0 {
		t.Error("expected skipped cycles to be counted")
	}
}

func TestStartStopPairsBalanceCameraHandles(t *testing.T) {
	video := camera.NewMock()
	m := New(testConfig(), video, classify.NewMock(), nil, nil)

	for i := 0; i < 5; i++ {
		if err := m.Start(); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
		if err := m.Stop(); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}

	if n := video.OpenHandles(); n != 0 {
		t.Errorf("expected 0 acquired streams after final stop, got %d", n)
	}
	if video.Acquisitions() != video.Releases() {
		t.Errorf("acquire/release mismatch: %d vs %d",
			video.Acquisitions(), video.Releases())
	}
}

func TestSnapshotResetOnStop(t *testing.T) {
	m := New(testConfig(), camera.NewMock(), classify.NewMock(), nil, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	snap := m.Snapshot()
	if snap.Running {
		t.Error("snapshot should report not running after stop")
	}
	if snap.Prediction != nil {
		t.Error("prediction should be cleared on stop")
	}
	if m.State() != StateIdle {
		t.Errorf("expected idle, got %s", m.State())
	}
}

func TestSessionIDChangesPerRun(t *testing.T) {
	m := New(testConfig(), camera.NewMock(), classify.NewMock(), nil, nil)

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	first := m.Snapshot().SessionID
	m.Stop()

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	second := m.Snapshot().SessionID
	m.Stop()

	if first == "" || second == "" {
		t.Fatal("session IDs must be set while running")
	}
	if first == second {
		t.Error("each run should get a fresh session ID")
	}
}
