// Package imaging overlays map layers returned by WMS servers.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	// Base-layer services may answer with other raster formats.
	_ "image/gif"
	_ "image/jpeg"
)

// ErrNoImage is returned when none of the inputs could be used.
var ErrNoImage = errors.New("no image to composite")

// Composite draws each foreground, in order, over the background using alpha
// compositing and returns the result as PNG. A nil background makes the
// first usable foreground the canvas; nil foregrounds are skipped.
// Foregrounds of a different size are scaled to the canvas.
//
// Inputs that cannot be decoded are left out. The composite of the remaining
// inputs is still returned, together with an error naming the skipped ones;
// only when nothing is left is the returned image nil.
func Composite(background []byte, foregrounds ...[]byte) ([]byte, error) {
	var (
		canvas *image.RGBA
		errs   []error
	)

	if background != nil {
		img, err := decode(background)
		if err != nil {
			errs = append(errs, fmt.Errorf("decoding background: %w", err))
		} else {
			canvas = toRGBA(img)
		}
	}

	for i, fg := range foregrounds {
		if fg == nil {
			continue
		}
		img, err := decode(fg)
		if err != nil {
			errs = append(errs, fmt.Errorf("decoding foreground %d: %w", i, err))
			continue
		}
		if canvas == nil {
			canvas = toRGBA(img)
			continue
		}
		if img.Bounds().Size() != canvas.Bounds().Size() {
			img = scale(img, canvas.Bounds())
		}
		draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Over)
	}

	if canvas == nil {
		return nil, errors.Join(append([]error{ErrNoImage}, errs...)...)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encoding composite: %w", err)
	}
	return buf.Bytes(), errors.Join(errs...)
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func scale(img image.Image, bounds image.Rectangle) image.Image {
	dst := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(dst, bounds, img, img.Bounds(), draw.Src, nil)
	return dst
}
