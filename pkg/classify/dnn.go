package classify

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// DNNConfig holds configuration for the local DNN classifier.
type DNNConfig struct {
	ModelPath  string // Path to ONNX model
	LabelsPath string // Path to labels file (one label per line)
	InputWidth int    // Model input width (default 224)
	InputHeight int   // Model input height (default 224)
	Scale      float64 // Pixel scale factor (default 1/255)
	MeanR      float64 // Per-channel mean subtraction
	MeanG      float64
	MeanB      float64
	Softmax    bool // Apply softmax to raw model output
}

// DefaultDNNConfig returns defaults for a MobileNet-style image classifier.
func DefaultDNNConfig() DNNConfig {
	return DNNConfig{
		InputWidth:  224,
		InputHeight: 224,
		Scale:       1.0 / 255.0,
		Softmax:     true,
	}
}

// DNN classifies frames with a local ONNX model via OpenCV's DNN module.
type DNN struct {
	net    gocv.Net
	labels []string
	config DNNConfig

	mu     sync.Mutex // protects inference and closed
	closed bool
}

// NewDNN loads the model and labels once. Load failure is terminal:
// callers must not retry with the same configuration.
func NewDNN(cfg DNNConfig) (*DNN, error) {
	if cfg.InputWidth == 0 || cfg.InputHeight == 0 {
		def := DefaultDNNConfig()
		cfg.InputWidth = def.InputWidth
		cfg.InputHeight = def.InputHeight
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1.0 / 255.0
	}

	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: model file not found: %s", ErrModelLoad, cfg.ModelPath)
	}

	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot read network from %s", ErrModelLoad, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &DNN{
		net:    net,
		labels: labels,
		config: cfg,
	}, nil
}

// Classify runs the model on the JPEG frame and returns one entry per
// class in model order.
func (d *DNN) Classify(ctx context.Context, frame []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	blob := gocv.BlobFromImage(img, d.config.Scale,
		image.Pt(d.config.InputWidth, d.config.InputHeight),
		gocv.NewScalar(d.config.MeanB, d.config.MeanG, d.config.MeanR, 0),
		true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	prob := d.net.Forward("")
	defer prob.Close()

	raw := make([]float64, 0, len(d.labels))
	for i := 0; i < len(d.labels) && i < prob.Cols(); i++ {
		raw = append(raw, float64(prob.GetFloatAt(0, i)))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("model produced no output")
	}

	if d.config.Softmax {
		raw = softmax(raw)
	}

	result := make(Result, len(raw))
	for i, p := range raw {
		result[i] = Entry{Label: d.labels[i], Probability: p}
	}
	return result, nil
}

// Labels returns the class labels in model order.
func (d *DNN) Labels() []string {
	return d.labels
}

// Close releases the network. Safe to call more than once.
func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// softmax normalizes raw logits into probabilities.
func softmax(raw []float64) []float64 {
	max := raw[0]
	for _, v := range raw[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
