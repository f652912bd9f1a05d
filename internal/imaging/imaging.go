// Package imaging handles the binary image payloads the migration
// uploads: probing encoded images and downscaling static ones that
// exceed a platform's byte ceiling.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register the gif decoder for Probe
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// shrinkFactor is applied to both dimensions per downscale pass.
	shrinkFactor = 0.7

	// maxPasses bounds the downscale loop; beyond this the image is
	// degraded past usefulness anyway.
	maxPasses = 6

	jpegQuality = 80

	minDimension = 16
)

// Probe reports the encoded format and pixel dimensions of an image.
func Probe(data []byte) (format string, width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("probing image: %w", err)
	}
	return format, cfg.Width, cfg.Height, nil
}

// ShrinkToFit re-encodes a static PNG or JPEG, scaling it down until the
// encoded size fits within maxBytes. GIFs are refused: downscaling an
// animation frame by frame is not worth the quality loss, and the
// platforms reject resampled animations anyway.
func ShrinkToFit(data []byte, maxBytes int) ([]byte, error) {
	if len(data) <= maxBytes {
		return data, nil
	}

	format, _, _, err := Probe(data)
	if err != nil {
		return nil, err
	}
	if format == "gif" {
		return nil, fmt.Errorf("cannot downscale gif image")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	for pass := 0; pass < maxPasses; pass++ {
		b := img.Bounds()
		w := int(float64(b.Dx()) * shrinkFactor)
		h := int(float64(b.Dy()) * shrinkFactor)
		if w < minDimension || h < minDimension {
			break
		}

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst

		encoded, err := encode(img, format)
		if err != nil {
			return nil, err
		}
		if len(encoded) <= maxBytes {
			return encoded, nil
		}
	}

	return nil, fmt.Errorf("image still exceeds %d bytes after downscaling", maxBytes)
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}
