package database

import "time"

// Image is one stored corpus record. Signal columns hold their encoded text form
// and are decoded by the caller, so a malformed value can be skipped per record.
type Image struct {
	ID             string    `db:"id"`
	Image          []byte    `db:"image"`           // preprocessed image bytes
	Fingerprint    string    `db:"fingerprint"`     // hex encoded perceptual hash
	ColorSignature string    `db:"color_signature"` // JSON array of bucket counts
	ObjectLabels   string    `db:"object_labels"`   // JSON array of class names
	CreatedAt      time.Time `db:"created_at"`
}
