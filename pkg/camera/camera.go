// Package camera is the still-capture abstraction used by the monitor.
//
// A Camera hands back JPEG stills. Backends live in sub-packages
// (opencv for webcams, screen for desktop grabs); Mock is for tests.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Facing selects which lens a camera captures from.
type Facing string

const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// ParseFacing converts "front" or "back" to a Facing.
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingBack, FacingFront:
		return Facing(s), nil
	}
	return "", fmt.Errorf("camera: unknown facing %q", s)
}

// Toggle returns the other lens.
func (f Facing) Toggle() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// Sentinel errors returned by backends.
var (
	// ErrClosed is returned when capturing from a closed camera.
	ErrClosed = errors.New("camera: closed")

	// ErrEmptyFrame is returned when the device produced no image.
	ErrEmptyFrame = errors.New("camera: empty frame")

	// ErrNotOpen is returned when the device is gone and could not be
	// reopened, e.g. a USB camera that was unplugged.
	ErrNotOpen = errors.New("camera: device not open")
)

// DefaultQuality is the JPEG quality used when CaptureOptions.Quality is 0.
const DefaultQuality = 0.85

// CaptureOptions tunes a single still capture.
type CaptureOptions struct {
	// Quality is the JPEG compression quality in (0, 1].
	Quality float64

	// SkipProcessing returns the frame as the sensor produced it, without
	// mirroring, rotation or downscaling.
	SkipProcessing bool
}

// StreamingCapture is what the monitor asks for on every tick: the frame is
// thrown away after one inference, so speed beats fidelity.
var StreamingCapture = CaptureOptions{Quality: 0.1, SkipProcessing: true}

// JPEGQuality maps Quality onto the 1-100 scale JPEG encoders use.
func (o CaptureOptions) JPEGQuality() int {
	q := o.Quality
	if q <= 0 {
		q = DefaultQuality
	}
	if q > 1 {
		q = 1
	}
	n := int(q*100 + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// Photo is one captured still.
type Photo struct {
	Data       []byte // JPEG bytes
	Width      int
	Height     int
	Facing     Facing
	CapturedAt time.Time
}

// Camera captures still images.
type Camera interface {
	// TakePicture captures and encodes one frame.
	TakePicture(ctx context.Context, opts CaptureOptions) (*Photo, error)

	// Facing reports the active lens.
	Facing() Facing

	// SetFacing switches lens. Backends with one lens only record it.
	SetFacing(f Facing) error

	// Close releases the device.
	Close() error
}
