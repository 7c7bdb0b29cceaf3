package camera

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Webcam captures frames from a local video device via OpenCV.
//
// A background pump keeps the latest JPEG frame cached; Frame returns
// a copy so callers never hold capture internals across a cycle.
type Webcam struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	cap   *gocv.VideoCapture
	frame []byte
	open  bool

	stop chan struct{}
	done chan struct{}
}

// NewWebcam creates a webcam source. The device is not acquired
// until Open.
func NewWebcam(cfg Config, logger *slog.Logger) *Webcam {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webcam{
		cfg:    cfg,
		logger: logger.With("component", "camera.webcam"),
	}
}

// Open acquires the capture device and starts the frame pump.
// Opening an already-open webcam is a no-op.
func (w *Webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open {
		return nil
	}

	cap, err := openDevice(w.cfg.Device)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(w.cfg.Framerate))

	w.cap = cap
	w.open = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go w.pump(cap, w.stop, w.done)

	w.logger.Info("webcam opened",
		"device", w.cfg.Device,
		"width", w.cfg.Width,
		"height", w.cfg.Height)
	return nil
}

// Close stops the pump and releases the device. Safe to call more
// than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return nil
	}
	w.open = false
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done

	w.mu.Lock()
	err := w.cap.Close()
	w.cap = nil
	w.frame = nil
	w.mu.Unlock()

	w.logger.Info("webcam closed", "device", w.cfg.Device)
	return err
}

// FrameReady reports whether a frame has been captured since Open.
func (w *Webcam) FrameReady() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.open && w.frame != nil
}

// Frame returns a copy of the latest captured frame as JPEG bytes.
func (w *Webcam) Frame() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.open {
		return nil, ErrClosed
	}
	if w.frame == nil {
		return nil, ErrNoFrame
	}

	frame := make([]byte, len(w.frame))
	copy(frame, w.frame)
	return frame, nil
}

// ApplyConfig applies updated capture settings to the live device.
// Resolution and framerate changes take effect without reopening.
func (w *Webcam) ApplyConfig(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cfg = cfg
	if !w.open {
		return nil
	}
	w.cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	w.cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	w.cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	return nil
}

// pump reads frames from the device and caches them as JPEG until
// stopped. Read failures are tolerated; the previous frame persists.
func (w *Webcam) pump(cap *gocv.VideoCapture, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := cap.Read(&img); !ok || img.Empty() {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
			[]int{gocv.IMWriteJpegQuality, w.quality()})
		if err != nil {
			w.logger.Warn("frame encode failed", "error", err)
			continue
		}

		frame := make([]byte, len(buf.GetBytes()))
		copy(frame, buf.GetBytes())
		buf.Close()

		w.mu.Lock()
		w.frame = frame
		w.mu.Unlock()
	}
}

func (w *Webcam) quality() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.cfg.Quality > 0 {
		return w.cfg.Quality
	}
	return 85
}

// openDevice opens a capture device by index or path.
func openDevice(device string) (*gocv.VideoCapture, error) {
	if idx, err := strconv.Atoi(device); err == nil {
		return gocv.OpenVideoCapture(idx)
	}
	return gocv.OpenVideoCapture(device)
}
