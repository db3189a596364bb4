package commands

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jo-hoe/imagesieve/internal/backend/commandstructure"
)

const defaultJPEGQuality = 80

// ImageConverterParams represents typed parameters for image converter command
type ImageConverterParams struct {
	TargetType string
	Quality    int
}

// NewImageConverterParamsFromMap creates ImageConverterParams from a generic map
func NewImageConverterParamsFromMap(params map[string]any) (*ImageConverterParams, error) {
	targetType := strings.ToLower(commandstructure.GetStringParam(params, "targetType", "png"))

	validTypes := map[string]bool{
		"png":  true,
		"jpeg": true,
		"jpg":  true,
		"gif":  true,
	}
	if !validTypes[targetType] {
		return nil, fmt.Errorf("invalid target type: %s (must be 'png', 'jpeg', 'jpg', or 'gif')", targetType)
	}
	if targetType == "jpg" {
		targetType = "jpeg"
	}

	quality := commandstructure.GetIntParam(params, "quality", defaultJPEGQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", quality)
	}

	return &ImageConverterParams{
		TargetType: targetType,
		Quality:    quality,
	}, nil
}

// ImageConverterCommand handles image format conversion
type ImageConverterCommand struct {
	name   string
	params *ImageConverterParams
}

// NewImageConverterCommand creates a new image converter command from configuration parameters
func NewImageConverterCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewImageConverterParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &ImageConverterCommand{
		name:   "ImageConverterCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *ImageConverterCommand) Name() string {
	return c.name
}

// Execute converts the image to the target format
func (c *ImageConverterCommand) Execute(imageData []byte) ([]byte, error) {
	img, currentFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// JPEG is always re-encoded so the configured quality applies.
	if currentFormat == c.params.TargetType && c.params.TargetType != "jpeg" {
		if hasCorrectSignature(imageData, c.params.TargetType) {
			slog.Debug("ImageConverterCommand: already in target format with correct signature, no conversion needed")
			return imageData, nil
		}
		slog.Warn("ImageConverterCommand: target format matches but signature incorrect, re-encoding to fix header",
			"format", c.params.TargetType)
	}

	var format imaging.Format
	switch c.params.TargetType {
	case "png":
		format = imaging.PNG
	case "jpeg":
		format = imaging.JPEG
	case "gif":
		format = imaging.GIF
	default:
		return nil, fmt.Errorf("unsupported target format: %s", c.params.TargetType)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(c.params.Quality)); err != nil {
		slog.Error("ImageConverterCommand: failed to encode image",
			"target_format", c.params.TargetType,
			"error", err)
		return nil, fmt.Errorf("failed to encode image to %s: %w", c.params.TargetType, err)
	}

	slog.Debug("ImageConverterCommand: conversion complete",
		"from", currentFormat,
		"to", c.params.TargetType,
		"quality", c.params.Quality,
		"output_size_bytes", buf.Len())

	return buf.Bytes(), nil
}

// GetTargetType returns the configured target type
func (c *ImageConverterCommand) GetTargetType() string {
	return c.params.TargetType
}

// GetParams returns the typed parameters
func (c *ImageConverterCommand) GetParams() *ImageConverterParams {
	return c.params
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ImageConverterCommand", NewImageConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register ImageConverterCommand: %v", err))
	}
}
