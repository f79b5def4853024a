// Package screen grabs the desktop as if it were a camera. Useful for
// pointing the classifier at a video call or a recording on machines
// without a webcam.
package screen

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/vova616/screenshot"

	"github.com/teslashibe/crywatch/pkg/camera"
)

// GrabFunc captures the screen.
type GrabFunc func() (*image.RGBA, error)

// Source is a camera.Camera backed by screen grabs. It has one lens;
// SetFacing is recorded so processing can still mirror "front" frames.
type Source struct {
	mu     sync.Mutex
	cfg    camera.Config
	facing camera.Facing
	grab   GrabFunc
	closed bool
}

// New returns a screen source using the primary display.
func New(cfg camera.Config) *Source {
	return NewWithGrab(cfg, screenshot.CaptureScreen)
}

// NewWithGrab returns a screen source using a custom grab function.
func NewWithGrab(cfg camera.Config, grab GrabFunc) *Source {
	return &Source{cfg: cfg, facing: camera.FacingBack, grab: grab}
}

// TakePicture implements camera.Camera. Raw grabs are full desktop
// resolution, so frames wider than the configured width are always scaled
// down, even when processing is skipped.
func (s *Source) TakePicture(ctx context.Context, opts camera.CaptureOptions) (*camera.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, camera.ErrClosed
	}
	cfg, facing, grab := s.cfg, s.facing, s.grab
	s.mu.Unlock()

	img, err := grab()
	if err != nil {
		return nil, fmt.Errorf("grab screen: %w", err)
	}
	if img == nil {
		return nil, camera.ErrEmptyFrame
	}

	var frame image.Image = img
	if cfg.Width > 0 && img.Bounds().Dx() > cfg.Width {
		frame = camera.Process(img, camera.Config{MaxWidth: cfg.Width}, facing)
	}

	return camera.Render(frame, opts, cfg, facing)
}

// Facing implements camera.Camera.
func (s *Source) Facing() camera.Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// SetFacing implements camera.Camera.
func (s *Source) SetFacing(f camera.Facing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return camera.ErrClosed
	}
	s.facing = f
	return nil
}

// Apply replaces the config. Wired to camera.Manager.SetOnConfigChange.
func (s *Source) Apply(cfg camera.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

// Close implements camera.Camera.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ camera.Camera = (*Source)(nil)
