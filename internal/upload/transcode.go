package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const OutputContentType = "image/jpeg"

var (
	errNotImage = errors.New("not an image")
	errDecode   = errors.New("image could not be decoded")
	errTooLarge = errors.New("image dimensions exceed the pixel limit")
)

// DetectContentType sniffs data rather than trusting the client-declared type.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// Transcode decodes a raster image and re-encodes it as JPEG at quality.
// Images whose header declares more than maxPixels are refused before any
// pixel data is decoded. Transparent areas are flattened onto white.
func Transcode(data []byte, quality int, maxPixels int64) ([]byte, error) {
	if !isImage(DetectContentType(data)) {
		return nil, errNotImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errDecode
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", errTooLarge, cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// OutputName swaps the extension of name for .jpg.
func OutputName(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "upload"
	}
	return stem + ".jpg"
}
