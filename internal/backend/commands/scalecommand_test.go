package commands

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/jo-hoe/imagesieve/internal/backend/commandstructure"
)

func TestNewScaleParamsFromMap(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		filter  string
	}{
		{name: "both sides", params: map[string]any{"width": 320, "height": 320}, filter: "lanczos"},
		{name: "float values from yaml", params: map[string]any{"width": float64(100), "height": float64(50)}, filter: "lanczos"},
		{name: "width only", params: map[string]any{"width": 100, "height": 0}, filter: "lanczos"},
		{name: "custom filter", params: map[string]any{"width": 10, "height": 10, "filter": "Nearest"}, filter: "nearest"},
		{name: "missing height", params: map[string]any{"width": 10}, wantErr: true},
		{name: "both zero", params: map[string]any{"width": 0, "height": 0}, wantErr: true},
		{name: "negative", params: map[string]any{"width": -5, "height": 10}, wantErr: true},
		{name: "unknown filter", params: map[string]any{"width": 10, "height": 10, "filter": "bicubic"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := NewScaleParamsFromMap(tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if params.Filter != tt.filter {
				t.Errorf("Expected filter %q, got %q", tt.filter, params.Filter)
			}
		})
	}
}

func TestScaleCommand_ExactResizeIgnoresAspect(t *testing.T) {
	command, err := NewScaleCommand(map[string]any{"width": 32, "height": 32})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute(makeTestPNG(t, 80, 20))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(result))
	if err != nil {
		t.Fatalf("Result is not valid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("Expected 32x32, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestScaleCommand_ZeroSidePreservesAspect(t *testing.T) {
	command, err := NewScaleCommand(map[string]any{"width": 40, "height": 0})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute(makeTestPNG(t, 80, 20))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(result))
	if err != nil {
		t.Fatalf("Result is not valid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 10 {
		t.Errorf("Expected 40x10, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestScaleCommand_SameSizeIsNoOp(t *testing.T) {
	imageData := makeTestPNG(t, 24, 24)
	command, err := NewScaleCommand(map[string]any{"width": 24, "height": 24})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}
	result, err := command.Execute(imageData)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(result, imageData) {
		t.Error("Expected unchanged bytes when dimensions already match")
	}
}

func TestScaleCommand_InvalidImage(t *testing.T) {
	command, err := NewScaleCommand(map[string]any{"width": 10, "height": 10})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}
	if _, err := command.Execute([]byte("garbage")); err == nil {
		t.Error("Expected error for invalid image data")
	}
}

func TestScaleCommand_RegisteredInDefaultRegistry(t *testing.T) {
	command, err := commandstructure.DefaultRegistry.Create("ScaleCommand", map[string]any{"width": 320, "height": 320})
	if err != nil {
		t.Fatalf("Failed to create command via registry: %v", err)
	}
	if command.Name() != "ScaleCommand" {
		t.Errorf("Expected name 'ScaleCommand', got '%s'", command.Name())
	}
}
