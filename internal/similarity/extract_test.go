package similarity

import (
	"image"
	"image/color"
	"testing"
)

// gradient builds a horizontal luminance gradient, optionally inverted.
func gradient(width, height int, inverted bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8((x * 255) / width) // #nosec G115 -- 0..255 for 0<=x<width
			if inverted {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func solid(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestValidateFingerprintSize(t *testing.T) {
	for _, size := range []int{8, 16, 24} {
		if err := ValidateFingerprintSize(size); err != nil {
			t.Errorf("ValidateFingerprintSize(%d) unexpected error: %v", size, err)
		}
	}
	for _, size := range []int{0, -8, 4, 7} {
		if err := ValidateFingerprintSize(size); err == nil {
			t.Errorf("ValidateFingerprintSize(%d) expected error", size)
		}
	}
}

func TestComputeFingerprint_Deterministic(t *testing.T) {
	img := gradient(200, 150, false)

	first, err := ComputeFingerprint(img, DefaultFingerprintSize)
	if err != nil {
		t.Fatalf("ComputeFingerprint error: %v", err)
	}
	second, err := ComputeFingerprint(img, DefaultFingerprintSize)
	if err != nil {
		t.Fatalf("ComputeFingerprint error: %v", err)
	}
	if EncodeFingerprint(first) != EncodeFingerprint(second) {
		t.Fatalf("fingerprints differ for identical input: %s vs %s", EncodeFingerprint(first), EncodeFingerprint(second))
	}
}

func TestComputeFingerprint_ResizedIsClose(t *testing.T) {
	large, err := ComputeFingerprint(gradient(320, 320, false), DefaultFingerprintSize)
	if err != nil {
		t.Fatalf("ComputeFingerprint error: %v", err)
	}
	small, err := ComputeFingerprint(gradient(160, 160, false), DefaultFingerprintSize)
	if err != nil {
		t.Fatalf("ComputeFingerprint error: %v", err)
	}
	distance, err := BitDistance(large, small)
	if err != nil {
		t.Fatalf("BitDistance error: %v", err)
	}
	if distance > 4 {
		t.Fatalf("resized copy distance = %d, want <= 4", distance)
	}
}

func TestComputeFingerprint_InvertedIsFar(t *testing.T) {
	normal, err := ComputeFingerprint(gradient(256, 256, false), DefaultFingerprintSize)
	if err != nil {
		t.Fatalf("ComputeFingerprint error: %v", err)
	}
	inverted, err := ComputeFingerprint(gradient(256, 256, true), DefaultFingerprintSize)
	if err != nil {
		t.Fatalf("ComputeFingerprint error: %v", err)
	}
	distance, err := BitDistance(normal, inverted)
	if err != nil {
		t.Fatalf("BitDistance error: %v", err)
	}
	if distance < 40 {
		t.Fatalf("inverted image distance = %d, want >= 40", distance)
	}
}

func TestFingerprint_EncodeParseRoundTrip(t *testing.T) {
	for _, size := range []int{8, 16} {
		fp, err := ComputeFingerprint(gradient(64, 64, false), size)
		if err != nil {
			t.Fatalf("ComputeFingerprint(%d) error: %v", size, err)
		}
		parsed, err := ParseFingerprint(EncodeFingerprint(fp))
		if err != nil {
			t.Fatalf("ParseFingerprint error: %v", err)
		}
		distance, err := BitDistance(fp, parsed)
		if err != nil {
			t.Fatalf("BitDistance error: %v", err)
		}
		if distance != 0 {
			t.Fatalf("round trip distance = %d, want 0", distance)
		}
	}
}

func TestParseFingerprint_Invalid(t *testing.T) {
	for _, s := range []string{"", "not-a-hash", "z:zz"} {
		if _, err := ParseFingerprint(s); err == nil {
			t.Errorf("ParseFingerprint(%q) expected error", s)
		}
	}
}

func TestComputeColorSignature_FixedLengthAndMass(t *testing.T) {
	for _, img := range []image.Image{
		gradient(640, 480, false),
		gradient(33, 17, true),
		solid(10, 10, color.RGBA{R: 200, G: 30, B: 90, A: 255}),
	} {
		signature, err := ComputeColorSignature(img, DefaultColorSampleSize)
		if err != nil {
			t.Fatalf("ComputeColorSignature error: %v", err)
		}
		if len(signature) != ColorSignatureLength {
			t.Fatalf("signature length = %d, want %d", len(signature), ColorSignatureLength)
		}
		total := 0
		for _, n := range signature {
			if n < 0 {
				t.Fatalf("negative bucket count %d", n)
			}
			total += n
		}
		if want := DefaultColorSampleSize * DefaultColorSampleSize; total != want {
			t.Fatalf("signature mass = %d, want %d", total, want)
		}
	}
}

func TestComputeColorSignature_Deterministic(t *testing.T) {
	img := gradient(120, 90, false)
	a, err := ComputeColorSignature(img, DefaultColorSampleSize)
	if err != nil {
		t.Fatalf("ComputeColorSignature error: %v", err)
	}
	b, err := ComputeColorSignature(img, DefaultColorSampleSize)
	if err != nil {
		t.Fatalf("ComputeColorSignature error: %v", err)
	}
	if got := ColorScore(a, b); got != 100.0 {
		t.Fatalf("ColorScore of identical extraction = %v, want 100", got)
	}
}

func TestComputeColorSignature_SizeIndependent(t *testing.T) {
	a, err := ComputeColorSignature(gradient(400, 400, false), DefaultColorSampleSize)
	if err != nil {
		t.Fatalf("ComputeColorSignature error: %v", err)
	}
	b, err := ComputeColorSignature(gradient(100, 100, false), DefaultColorSampleSize)
	if err != nil {
		t.Fatalf("ComputeColorSignature error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("signature lengths differ: %d vs %d", len(a), len(b))
	}
	if got := ColorScore(a, b); got < 80 {
		t.Fatalf("ColorScore of rescaled image = %v, want >= 80", got)
	}
}

func TestComputeColorSignature_InvalidSampleSize(t *testing.T) {
	if _, err := ComputeColorSignature(gradient(10, 10, false), 0); err == nil {
		t.Fatal("expected error for zero sample size")
	}
}
