package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Labeler returns the distinct object categories found in an image.
// The underlying detector is loaded lazily on first use and shared by all callers.
type Labeler struct {
	cfg     Config
	factory DetectorFactory
	classes []string
	observe func(time.Duration)
	// slot admits one detection at a time; it is held until the detector returns.
	slot chan struct{}

	once     sync.Once
	detector Detector
	initErr  error
}

// Option configures a Labeler.
type Option func(*Labeler)

// WithInferenceObserver reports the duration of every completed detection call.
func WithInferenceObserver(observe func(time.Duration)) Option {
	return func(l *Labeler) {
		l.observe = observe
	}
}

// NewLabeler creates a Labeler. The factory is not invoked until the first Labels or Load call.
func NewLabeler(cfg Config, factory DetectorFactory, opts ...Option) (*Labeler, error) {
	if factory == nil {
		return nil, fmt.Errorf("detector factory cannot be nil")
	}
	if cfg.InferenceSize <= 0 {
		return nil, fmt.Errorf("inference size must be positive, got %d", cfg.InferenceSize)
	}
	classes, err := LoadClassNames(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	l := &Labeler{
		cfg:     cfg,
		factory: factory,
		classes: classes,
		slot:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load initializes the detector if it is not loaded yet. A failed load is not retried.
func (l *Labeler) Load() error {
	_, err := l.load()
	return err
}

func (l *Labeler) load() (Detector, error) {
	l.once.Do(func() {
		start := time.Now()
		slog.Info("loading object detector", "model_path", l.cfg.ModelPath, "input_size", l.cfg.InputSize)
		detector, err := l.factory(l.cfg)
		if err != nil {
			slog.Error("failed to load object detector", "model_path", l.cfg.ModelPath, "error", err)
			l.initErr = fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
			return
		}
		l.detector = detector
		slog.Info("object detector loaded", "duration_ms", time.Since(start).Milliseconds())
	})
	return l.detector, l.initErr
}

type detectResult struct {
	detections []Detection
	err        error
}

// Labels runs the detector on img at the configured inference resolution and returns the
// sorted set of detected class names. Repeated detections of a class collapse into one label.
// Calls are serialized; the timeout starts once the call owns the detector, so time spent
// waiting behind other calls is bounded only by ctx.
func (l *Labeler) Labels(ctx context.Context, img image.Image) ([]string, error) {
	detector, err := l.load()
	if err != nil {
		return nil, err
	}

	input := imaging.Resize(img, l.cfg.InferenceSize, l.cfg.InferenceSize, imaging.Linear)

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	// The detector cannot be interrupted; on timeout the call finishes in the background,
	// keeps the slot until then and its result is dropped.
	done := make(chan detectResult, 1)
	go func() {
		defer func() { <-l.slot }()
		detections, err := detector.Detect(input)
		done <- detectResult{detections: detections, err: err}
	}()

	var result detectResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Error("object detection timed out", "timeout", l.cfg.Timeout)
			return nil, ErrInferenceTimeout
		}
		return nil, ctx.Err()
	case result = <-done:
	}

	elapsed := time.Since(start)
	if l.observe != nil {
		l.observe(elapsed)
	}
	if result.err != nil {
		return nil, fmt.Errorf("failed to run object detection: %w", result.err)
	}

	labels, err := l.names(result.detections)
	if err != nil {
		return nil, err
	}
	slog.Debug("object detection complete",
		"detections", len(result.detections),
		"labels", labels,
		"duration_ms", elapsed.Milliseconds())
	return labels, nil
}

func (l *Labeler) names(detections []Detection) ([]string, error) {
	seen := make(map[string]struct{}, len(detections))
	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		if d.ClassID < 0 || d.ClassID >= len(l.classes) {
			return nil, fmt.Errorf("detector returned class id %d, only %d classes are known", d.ClassID, len(l.classes))
		}
		name := l.classes[d.ClassID]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		labels = append(labels, name)
	}
	sort.Strings(labels)
	return labels, nil
}

// Close releases the detector. The Labeler cannot load a detector afterwards.
func (l *Labeler) Close() error {
	l.once.Do(func() {
		l.initErr = fmt.Errorf("%w: labeler closed", ErrDetectorUnavailable)
	})
	if l.detector != nil {
		return l.detector.Close()
	}
	return nil
}
