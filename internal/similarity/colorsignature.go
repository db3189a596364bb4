package similarity

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"

	"github.com/disintegration/imaging"
)

const (
	// ColorSignatureLength is the number of buckets in every color signature.
	// Palette indices only reach len(palette.WebSafe)-1; the tail stays zero so the
	// length matches a full 8 bit palette histogram.
	ColorSignatureLength = 256

	// DefaultColorSampleSize is the edge length the image is normalized to before quantizing.
	DefaultColorSampleSize = 32
)

// ComputeColorSignature normalizes img to sampleSize x sampleSize, quantizes it to the
// web-safe palette with Floyd-Steinberg error diffusion and counts pixels per palette entry.
func ComputeColorSignature(img image.Image, sampleSize int) ([]int, error) {
	if sampleSize <= 0 {
		return nil, fmt.Errorf("color sample size must be positive, got %d", sampleSize)
	}

	small := imaging.Resize(img, sampleSize, sampleSize, imaging.CatmullRom)

	quantized := image.NewPaletted(small.Bounds(), palette.WebSafe)
	draw.FloydSteinberg.Draw(quantized, quantized.Bounds(), small, small.Bounds().Min)

	signature := make([]int, ColorSignatureLength)
	for _, idx := range quantized.Pix {
		signature[idx]++
	}
	return signature, nil
}
