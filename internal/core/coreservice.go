package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "github.com/jo-hoe/imagesieve/internal/backend/commands" // registers the preprocessing commands
	"github.com/jo-hoe/imagesieve/internal/backend/commandstructure"
	"github.com/jo-hoe/imagesieve/internal/backend/database"
	"github.com/jo-hoe/imagesieve/internal/metrics"
	"github.com/jo-hoe/imagesieve/internal/similarity"
)

// ErrInvalidImage is returned when an upload cannot be decoded or preprocessed.
var ErrInvalidImage = errors.New("invalid image")

// ObjectLabeler returns the distinct object categories in an image.
type ObjectLabeler interface {
	Labels(ctx context.Context, img image.Image) ([]string, error)
	Close() error
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	pipeline        *commandstructure.CommandInvoker
	labeler         ObjectLabeler
	locker          Locker
	engine          *Engine
	metrics         *metrics.Manager
}

// NewCoreService wires storage, preprocessing and admission. The service owns
// the labeler and locker and closes them in Close.
func NewCoreService(config *ServiceConfig, labeler ObjectLabeler, locker Locker, m *metrics.Manager) (*CoreService, error) {
	if labeler == nil {
		return nil, fmt.Errorf("object labeler cannot be nil")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker cannot be nil")
	}
	pipeline, err := commandstructure.NewPipeline(commandstructure.DefaultRegistry, config.Commands)
	if err != nil {
		return nil, fmt.Errorf("failed to build preprocessing pipeline: %w", err)
	}
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	if count, err := databaseService.CountImages(); err == nil {
		m.SetCorpusSize(count)
	}
	slog.Info("core service initialized", "pipeline", pipeline.Names())

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		pipeline:        pipeline,
		labeler:         labeler,
		locker:          locker,
		engine:          NewEngine(databaseService, locker, m),
		metrics:         m,
	}, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// Prepare runs the preprocessing pipeline and computes the three signals from the
// decode of the preprocessed bytes, which are the bytes that would be stored.
func (service *CoreService) Prepare(ctx context.Context, raw []byte) (*Candidate, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}

	processed, err := service.pipeline.Execute(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		service.metrics.IncPreprocessFailures()
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img, _, err := image.Decode(bytes.NewReader(processed))
	if err != nil {
		service.metrics.IncPreprocessFailures()
		return nil, fmt.Errorf("%w: preprocessed image cannot be decoded: %v", ErrInvalidImage, err)
	}

	fingerprint, err := similarity.ComputeFingerprint(img, service.config.Similarity.FingerprintSize)
	if err != nil {
		return nil, err
	}
	color, err := similarity.ComputeColorSignature(img, service.config.Similarity.ColorSampleSize)
	if err != nil {
		return nil, err
	}
	labels, err := service.labeler.Labels(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to label objects: %w", err)
	}

	return &Candidate{
		ImageBytes: processed,
		Signals: similarity.Signals{
			Fingerprint:    fingerprint,
			ColorSignature: color,
			ObjectLabels:   labels,
		},
	}, nil
}

// Admit runs the admission decision for a prepared candidate.
func (service *CoreService) Admit(ctx context.Context, candidate *Candidate) (*AdmissionResult, error) {
	return service.engine.Admit(ctx, candidate)
}

// AddImage prepares and admits an upload.
func (service *CoreService) AddImage(ctx context.Context, raw []byte) (*AdmissionResult, error) {
	candidate, err := service.Prepare(ctx, raw)
	if err != nil {
		return nil, err
	}
	return service.Admit(ctx, candidate)
}

// GetImageByID returns nil and no error when the image does not exist.
func (service *CoreService) GetImageByID(id string) (*database.Image, error) {
	return service.databaseService.GetImageByID(id)
}

// GetThumbnail returns a JPEG of the stored image scaled to the configured thumbnail width.
// It returns nil and no error when the image does not exist.
func (service *CoreService) GetThumbnail(id string) ([]byte, error) {
	stored, err := service.databaseService.GetImageByID(id)
	if err != nil || stored == nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(stored.Image))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image %s: %w", id, err)
	}
	if img.Bounds().Dx() > service.config.ThumbnailWidth {
		img = imaging.Resize(img, service.config.ThumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// ListImages returns up to limit records, newest first, without image bytes.
func (service *CoreService) ListImages(limit int) ([]*database.Image, error) {
	return service.databaseService.GetLatestImages(limit)
}

// DeleteImage removes a stored record. Deletion is an administrative action outside admission.
func (service *CoreService) DeleteImage(id string) error {
	if err := service.databaseService.DeleteImage(id); err != nil {
		return err
	}
	if count, err := service.databaseService.CountImages(); err == nil {
		service.metrics.SetCorpusSize(count)
	}
	slog.Info("image deleted", "image_id", id)
	return nil
}

// Close releases the labeler, the lock and the database.
func (service *CoreService) Close() error {
	return errors.Join(
		service.labeler.Close(),
		service.locker.Close(),
		service.databaseService.Close(),
	)
}
