package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// hasCorrectPngSignature checks whether data starts with the 8-byte PNG signature.
func hasCorrectPngSignature(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
}

// hasCorrectSignature checks whether the provided data begins with a valid signature for the given image format.
func hasCorrectSignature(data []byte, format string) bool {
	switch format {
	case "png":
		return hasCorrectPngSignature(data)
	case "jpeg":
		// JPEG signature: 0xFF 0xD8 0xFF (third byte is a marker like 0xE0, 0xE1, etc.)
		if len(data) < 3 {
			return false
		}
		return data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	case "gif":
		if len(data) < 6 {
			return false
		}
		sig := data[:6]
		return bytes.Equal(sig, []byte("GIF87a")) || bytes.Equal(sig, []byte("GIF89a"))
	default:
		return false
	}
}

func createTargetCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
