package camera

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// EncodeJPEG encodes img at the given 1-100 quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Process applies the config's rotation, front-lens mirroring and
// downscaling to img.
func Process(img image.Image, cfg Config, facing Facing) image.Image {
	out := img

	switch cfg.Rotate {
	// imaging rotates counter-clockwise.
	case 90:
		out = imaging.Rotate270(out)
	case 180:
		out = imaging.Rotate180(out)
	case 270:
		out = imaging.Rotate90(out)
	}

	if facing == FacingFront && cfg.MirrorFront {
		out = imaging.FlipH(out)
	}

	if cfg.MaxWidth > 0 && out.Bounds().Dx() > cfg.MaxWidth {
		out = imaging.Resize(out, cfg.MaxWidth, 0, imaging.Linear)
	}

	return out
}

// Render turns a raw frame into a Photo, processing it unless the options
// say to skip.
func Render(img image.Image, opts CaptureOptions, cfg Config, facing Facing) (*Photo, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	if !opts.SkipProcessing {
		img = Process(img, cfg, facing)
	}

	data, err := EncodeJPEG(img, opts.JPEGQuality())
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &Photo{
		Data:       data,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Facing:     facing,
		CapturedAt: time.Now(),
	}, nil
}
