// Package yolo runs a YOLOv8 ONNX model through the OpenCV DNN module.
package yolo

import (
	"fmt"
	"image"
	"sync"

	"github.com/jo-hoe/imagesieve/internal/detection"
	"gocv.io/x/gocv"
)

// Detector wraps an OpenCV network. A gocv.Net is not safe for concurrent use,
// so calls to Detect are serialized.
type Detector struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize int
	threshold float32
}

// New loads the ONNX model named by cfg.ModelPath. It satisfies detection.DetectorFactory.
func New(cfg detection.Config) (detection.Detector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is empty")
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("model input size must be positive, got %d", cfg.InputSize)
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to read ONNX model from %s", cfg.ModelPath)
	}
	return &Detector{
		net:       net,
		inputSize: cfg.InputSize,
		threshold: cfg.ConfidenceThreshold,
	}, nil
}

func (d *Detector) Detect(img image.Image) ([]detection.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer mat.Close()

	// ImageToMatRGB yields BGR order, swapRB restores RGB for the model.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected output dimensions %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output tensor: %w", err)
	}
	// copy before out is closed
	values := make([]float32, len(data))
	copy(values, data)

	return detection.DecodeYOLOv8(values, dims[1], dims[2], d.threshold)
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
