// Package imgutil normalizes screenshots to PNG.
package imgutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	// Decoders for the screenshot formats Chrome can produce.
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// Sentinel errors for image normalization.
var (
	ErrDecode = errors.New("failed to decode image")
	ErrEncode = errors.New("failed to encode image")
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Image is a PNG-encoded image with its pixel size.
type Image struct {
	PNG    []byte
	Width  int
	Height int
}

// Normalize converts raw (PNG, JPEG or WebP) to PNG. When maxDim > 0 and
// either side exceeds it, the image is scaled down to fit, keeping its
// aspect ratio. A PNG that needs no scaling is returned unchanged.
func Normalize(raw []byte, maxDim int) (Image, error) {
	if bytes.HasPrefix(raw, pngMagic) {
		cfg, err := png.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if !exceeds(cfg.Width, cfg.Height, maxDim) {
			return Image{PNG: raw, Width: cfg.Width, Height: cfg.Height}, nil
		}
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrDecode)
	}

	var out image.Image = img
	if exceeds(b.Dx(), b.Dy(), maxDim) {
		out = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	ob := out.Bounds()
	return Image{PNG: buf.Bytes(), Width: ob.Dx(), Height: ob.Dy()}, nil
}

func exceeds(w, h, maxDim int) bool {
	return maxDim > 0 && (w > maxDim || h > maxDim)
}
