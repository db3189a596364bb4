// Package detection turns a pretrained object detector into a set of object labels.
package detection

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrInferenceTimeout is returned when a detection call exceeds the configured timeout.
	ErrInferenceTimeout = errors.New("object detection timed out")
	// ErrDetectorUnavailable is returned when the detector could not be initialized.
	ErrDetectorUnavailable = errors.New("object detector unavailable")
)

// Detection is one detected object.
type Detection struct {
	ClassID    int
	Confidence float32
	Box        image.Rectangle
}

// Detector is a loaded object detection model.
type Detector interface {
	// Detect runs inference on img.
	Detect(img image.Image) ([]Detection, error)

	// Close releases the model.
	Close() error
}

// DetectorFactory loads a Detector. It is called at most once per Labeler.
type DetectorFactory func(cfg Config) (Detector, error)

// Config holds detector configuration
type Config struct {
	ModelPath           string        `koanf:"model_path"`           // Path to the ONNX model
	LabelsPath          string        `koanf:"labels_path"`          // YAML class name list; empty uses the embedded COCO list
	InferenceSize       int           `koanf:"inference_size"`       // Edge length the image is reduced to before detection
	InputSize           int           `koanf:"input_size"`           // Network input edge length
	ConfidenceThreshold float32       `koanf:"confidence_threshold"` // Minimum class score for a detection
	Timeout             time.Duration `koanf:"timeout"`              // Upper bound for a single detection call
}

// DefaultConfig returns defaults for a YOLOv8n ONNX export.
func DefaultConfig() Config {
	return Config{
		ModelPath:           "models/yolov8n.onnx",
		InferenceSize:       224,
		InputSize:           640,
		ConfidenceThreshold: 0.25,
		Timeout:             10 * time.Second,
	}
}
