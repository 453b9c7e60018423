// Package imaging applies the derivative transform: bounded downscale and
// JPEG re-encode. Re-encoding from decoded pixels drops every embedded
// metadata block, including EXIF geolocation.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Options bound the transform output.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // JPEG quality, 1-100
}

// Transform decodes src (JPEG or PNG), scales it down to fit within the
// configured bounds preserving aspect ratio, and re-encodes as JPEG. Images
// already within bounds are re-encoded without scaling.
func Transform(src []byte, opts Options) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}

	tw, th := fit(w, h, opts.MaxWidth, opts.MaxHeight)
	if tw != w || th != h {
		dst := image.NewRGBA(image.Rect(0, 0, tw, th))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

// fit returns the largest dimensions within (maxW, maxH) preserving the
// aspect ratio of (w, h). Never upscales.
func fit(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}

	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}
