package similarity

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// DefaultFingerprintSize is the edge length of the average-hash grid (8x8 = 64 bits).
const DefaultFingerprintSize = 8

// Fingerprint is a perceptual average hash of an image.
type Fingerprint = goimagehash.ExtImageHash

// ComputeFingerprint reduces img to a size x size average hash.
// size*size must be a multiple of 64.
func ComputeFingerprint(img image.Image, size int) (*Fingerprint, error) {
	if err := ValidateFingerprintSize(size); err != nil {
		return nil, err
	}
	hash, err := goimagehash.ExtAverageHash(img, size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average hash: %w", err)
	}
	return hash, nil
}

// ValidateFingerprintSize checks that a size x size hash fills whole 64 bit words.
func ValidateFingerprintSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("fingerprint size must be positive, got %d", size)
	}
	if (size*size)%64 != 0 {
		return fmt.Errorf("fingerprint size %d yields %d bits, which is not a multiple of 64", size, size*size)
	}
	return nil
}

// EncodeFingerprint renders the hash as a printable string ("a:<hex>").
func EncodeFingerprint(fp *Fingerprint) string {
	return fp.ToString()
}

// ParseFingerprint reverses EncodeFingerprint.
func ParseFingerprint(s string) (*Fingerprint, error) {
	if s == "" {
		return nil, fmt.Errorf("empty fingerprint")
	}
	fp, err := goimagehash.ExtImageHashFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint %q: %w", s, err)
	}
	return fp, nil
}

// BitDistance is the Hamming distance between two fingerprints of the same kind and size.
func BitDistance(a, b *Fingerprint) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("fingerprint must not be nil")
	}
	return a.Distance(b)
}
