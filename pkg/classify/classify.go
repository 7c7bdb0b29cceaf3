// Package classify provides frame classification for the door monitor.
//
// The package abstracts image classification behind a single Classifier
// interface, enabling seamless switching between backends: a local DNN
// model via OpenCV and any OpenAI-compatible vision API.
//
// Example usage:
//
//	clf, _ := classify.NewDNN(classify.DNNConfig{
//	    ModelPath:  "models/door.onnx",
//	    LabelsPath: "models/door_labels.txt",
//	})
//	defer clf.Close()
//
//	result, _ := clf.Classify(ctx, frame)
//	pred, ok := classify.Interpret(result, classify.DefaultStateMap())
package classify

import "context"

// Entry is a single ranked classification: a label with its probability.
type Entry struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Result is the ordered output of a classification pass.
// Entries follow the model's class ordering. The list is not sorted by
// probability and may be empty.
type Result []Entry

// Classifier is the interface for classification backends.
type Classifier interface {
	// Classify ranks the JPEG frame against the model's classes.
	Classify(ctx context.Context, frame []byte) (Result, error)

	// Labels returns the class labels in model order.
	Labels() []string

	// Close releases resources.
	Close() error
}
