package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/imagesieve/internal/backend/database"
	"github.com/jo-hoe/imagesieve/internal/metrics"
	"github.com/jo-hoe/imagesieve/internal/similarity"
)

// AdmissionThreshold is the combined score at or above which a candidate is stored.
const AdmissionThreshold = 70

var scanFields = []string{"id", "image", "fingerprint", "color_signature", "object_labels"}

// Candidate is a preprocessed upload with its signals. It is only stored if admitted.
type Candidate struct {
	ImageBytes []byte
	Signals    similarity.Signals
}

// AdmissionResult is the outcome of one admission decision.
type AdmissionResult struct {
	Match      similarity.MatchResult `json:"match"`
	MatchedID  string                 `json:"matched_id,omitempty"` // stored record that produced Match
	Labels     []string               `json:"object_labels"`
	Admitted   bool                   `json:"admitted"`
	FirstImage bool                   `json:"first_image"`
	ImageID    string                 `json:"image_id,omitempty"` // id of the new record when admitted
}

// Corpus is the storage the engine scans and appends to.
type Corpus interface {
	GetImages(fields ...string) ([]*database.Image, error)
	CreateImage(image *database.Image) (string, error)
}

// Engine decides whether a candidate joins the corpus.
type Engine struct {
	corpus    Corpus
	locker    Locker
	metrics   *metrics.Manager
	threshold int
}

func NewEngine(corpus Corpus, locker Locker, m *metrics.Manager) *Engine {
	return &Engine{
		corpus:    corpus,
		locker:    locker,
		metrics:   m,
		threshold: AdmissionThreshold,
	}
}

// Admit compares the candidate against every stored record and persists it when the corpus
// is empty or the best combined score reaches the threshold. Scan and persist run under the lock.
func (e *Engine) Admit(ctx context.Context, candidate *Candidate) (*AdmissionResult, error) {
	if candidate == nil || candidate.Signals.Fingerprint == nil {
		return nil, fmt.Errorf("candidate has no signals")
	}

	release, err := e.locker.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire admission lock: %w", err)
	}
	defer release()

	start := time.Now()
	records, err := e.corpus.GetImages(scanFields...)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	result := &AdmissionResult{Labels: candidate.Signals.ObjectLabels}
	if result.Labels == nil {
		result.Labels = []string{}
	}

	if len(records) == 0 {
		result.Match = similarity.PerfectMatch
		result.FirstImage = true
		result.Admitted = true
	} else {
		best, bestID := e.scan(candidate, records)
		result.Match = best
		result.MatchedID = bestID
		result.Admitted = best.CombinedScore >= e.threshold
		e.metrics.ObserveBestScore(best.CombinedScore)
	}
	e.metrics.ObserveScan(time.Since(start))

	if result.Admitted {
		record, err := newRecord(candidate)
		if err != nil {
			return nil, err
		}
		id, err := e.corpus.CreateImage(record)
		if err != nil {
			return nil, fmt.Errorf("failed to persist admitted image: %w", err)
		}
		result.ImageID = id
		e.metrics.SetCorpusSize(len(records) + 1)
	}

	switch {
	case result.FirstImage:
		e.metrics.ObserveAdmission(metrics.OutcomeFirst)
	case result.Admitted:
		e.metrics.ObserveAdmission(metrics.OutcomeAdmitted)
	default:
		e.metrics.ObserveAdmission(metrics.OutcomeRejected)
	}

	slog.Info("admission decided",
		"admitted", result.Admitted,
		"first_image", result.FirstImage,
		"combined_score", result.Match.CombinedScore,
		"matched_id", result.MatchedID,
		"image_id", result.ImageID,
		"corpus_size", len(records),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// scan returns the first record with the strictly highest combined score. The running best
// starts at zero with no record, so a corpus of only unreadable records yields all zeros.
func (e *Engine) scan(candidate *Candidate, records []*database.Image) (similarity.MatchResult, string) {
	var best similarity.MatchResult
	var bestID string
	for _, record := range records {
		stored, err := decodeRecord(record)
		if err != nil {
			e.skip(record.ID, err)
			continue
		}
		match, err := similarity.Compare(candidate.Signals, stored)
		if err != nil {
			e.skip(record.ID, err)
			continue
		}
		if match.CombinedScore > best.CombinedScore {
			best = match
			bestID = record.ID
		}
	}
	return best, bestID
}

func (e *Engine) skip(id string, err error) {
	slog.Warn("skipping unreadable corpus record", "image_id", id, "error", err)
	e.metrics.IncCorruptSkipped()
}
