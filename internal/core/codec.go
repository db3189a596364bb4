package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"github.com/jo-hoe/imagesieve/internal/backend/database"
	"github.com/jo-hoe/imagesieve/internal/similarity"
)

// newRecord encodes a candidate into a storable record.
func newRecord(candidate *Candidate) (*database.Image, error) {
	if candidate.Signals.Fingerprint == nil {
		return nil, fmt.Errorf("candidate has no fingerprint")
	}
	color, err := json.Marshal(candidate.Signals.ColorSignature)
	if err != nil {
		return nil, fmt.Errorf("failed to encode color signature: %w", err)
	}
	labels := append([]string{}, candidate.Signals.ObjectLabels...)
	sort.Strings(labels)
	encodedLabels, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object labels: %w", err)
	}
	return &database.Image{
		Image:          candidate.ImageBytes,
		Fingerprint:    similarity.EncodeFingerprint(candidate.Signals.Fingerprint),
		ColorSignature: string(color),
		ObjectLabels:   string(encodedLabels),
	}, nil
}

// decodeRecord reads the stored signals of a record. Any unreadable part makes the whole record unusable.
func decodeRecord(record *database.Image) (similarity.Signals, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(record.Image)); err != nil {
		return similarity.Signals{}, fmt.Errorf("stored image is unreadable: %w", err)
	}
	fingerprint, err := similarity.ParseFingerprint(record.Fingerprint)
	if err != nil {
		return similarity.Signals{}, fmt.Errorf("stored fingerprint is malformed: %w", err)
	}
	var color []int
	if err := json.Unmarshal([]byte(record.ColorSignature), &color); err != nil {
		return similarity.Signals{}, fmt.Errorf("stored color signature is malformed: %w", err)
	}
	for _, bucket := range color {
		if bucket < 0 {
			return similarity.Signals{}, fmt.Errorf("stored color signature has negative bucket %d", bucket)
		}
	}
	var labels []string
	if err := json.Unmarshal([]byte(record.ObjectLabels), &labels); err != nil {
		return similarity.Signals{}, fmt.Errorf("stored object labels are malformed: %w", err)
	}
	return similarity.Signals{
		Fingerprint:    fingerprint,
		ColorSignature: color,
		ObjectLabels:   labels,
	}, nil
}
