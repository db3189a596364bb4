package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/jo-hoe/imagesieve/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// RGBDecodeCommand decodes an upload into an opaque RGB image and re-encodes it as PNG.
// Alpha is dropped, not composited: a transparent pixel keeps the color it stores.
type RGBDecodeCommand struct {
	name            string
	svgWidth        int
	svgHeight       int
	autoOrientation bool
}

// NewRGBDecodeCommand creates the decode step. svgWidth and svgHeight override the
// viewBox size of SVG uploads.
func NewRGBDecodeCommand(params map[string]any) (commandstructure.Command, error) {
	w := commandstructure.GetIntParam(params, "svgWidth", 0)
	h := commandstructure.GetIntParam(params, "svgHeight", 0)
	if w < 0 || h < 0 {
		return nil, fmt.Errorf("svg size must not be negative, got %dx%d", w, h)
	}

	return &RGBDecodeCommand{
		name:            "RGBDecodeCommand",
		svgWidth:        w,
		svgHeight:       h,
		autoOrientation: commandstructure.GetBoolParam(params, "autoOrientation", true),
	}, nil
}

func (c *RGBDecodeCommand) Name() string {
	return c.name
}

func (c *RGBDecodeCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := c.decode(imageData)
	if err != nil {
		return nil, err
	}
	slog.Debug("RGBDecodeCommand: decoded image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"input_size_bytes", len(imageData))

	return encodePNG(opaqueRGB(img))
}

func (c *RGBDecodeCommand) decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if isSVGData(data) {
			img, err := c.renderSVG(data)
			return img, "svg", err
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(c.autoOrientation))
	if err != nil {
		return nil, format, fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	return img, format, nil
}

// renderSVG rasterizes onto a white canvas at the viewBox size unless overridden.
func (c *RGBDecodeCommand) renderSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	w, h := c.svgWidth, c.svgHeight
	if w == 0 {
		w = int(icon.ViewBox.W)
	}
	if h == 0 {
		h = int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG has no size; set a viewBox or svgWidth and svgHeight")
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := createTargetCanvas(w, h, color.White)
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return dst, nil
}

// opaqueRGB copies img into a fully opaque NRGBA image with the same non-premultiplied color values.
func opaqueRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[i:i+4*b.Dx()])
		}
	case *image.NRGBA64:
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < 4*b.Dx(); x++ {
				row[x] = src.Pix[i+2*x] // high byte of each big-endian channel
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				dst.SetNRGBA(x, y, color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA))
			}
		}
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// isSVGData reports whether the first 4KB of data mention an svg element.
func isSVGData(data []byte) bool {
	head := data[:min(len(data), 4096)]
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("RGBDecodeCommand", NewRGBDecodeCommand); err != nil {
		panic(fmt.Sprintf("failed to register RGBDecodeCommand: %v", err))
	}
}
