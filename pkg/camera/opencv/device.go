// Package opencv captures stills from local video devices through gocv.
package opencv

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/crywatch/pkg/camera"
)

// Device is a camera.Camera reading from an OpenCV VideoCapture. The
// active lens maps to a device index through camera.Config.
type Device struct {
	mu     sync.Mutex
	cfg    camera.Config
	facing camera.Facing
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
	logger *slog.Logger
}

// Open opens the device for the given lens.
func Open(cfg camera.Config, facing camera.Facing, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		cfg:    cfg,
		facing: facing,
		frame:  gocv.NewMat(),
		logger: logger.With("component", "camera.opencv"),
	}
	if err := d.open(); err != nil {
		d.frame.Close()
		return nil, err
	}
	return d, nil
}

// open (re)opens the capture for the current lens. Callers hold mu or own d.
func (d *Device) open() error {
	if d.vc != nil {
		d.vc.Close()
		d.vc = nil
	}

	id := d.cfg.DeviceFor(d.facing)
	vc, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return fmt.Errorf("open video device %d: %w", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open video device %d: not opened", id)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(d.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(d.cfg.Height))

	d.vc = vc
	d.logger.Info("video device opened",
		"device", id,
		"facing", d.facing,
		"width", d.cfg.Width,
		"height", d.cfg.Height,
	)
	return nil
}

// TakePicture implements camera.Camera.
func (d *Device) TakePicture(ctx context.Context, opts camera.CaptureOptions) (*camera.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, camera.ErrClosed
	}
	if d.vc == nil {
		if err := d.open(); err != nil {
			return nil, fmt.Errorf("%w: %w", camera.ErrNotOpen, err)
		}
	}
	if ok := d.vc.Read(&d.frame); !ok || d.frame.Empty() {
		return nil, camera.ErrEmptyFrame
	}

	img := d.frame
	if !opts.SkipProcessing {
		processed := d.process(d.frame)
		defer processed.Close()
		img = processed
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, opts.JPEGQuality()})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that Close frees.
	data := append([]byte(nil), buf.GetBytes()...)

	return &camera.Photo{
		Data:       data,
		Width:      img.Cols(),
		Height:     img.Rows(),
		Facing:     d.facing,
		CapturedAt: time.Now(),
	}, nil
}

// process applies rotation, front-lens mirroring and downscaling. The
// returned Mat is owned by the caller.
func (d *Device) process(src gocv.Mat) gocv.Mat {
	out := src.Clone()

	if code, ok := rotateFlag(d.cfg.Rotate); ok {
		rotated := gocv.NewMat()
		gocv.Rotate(out, &rotated, code)
		out.Close()
		out = rotated
	}

	if d.facing == camera.FacingFront && d.cfg.MirrorFront {
		flipped := gocv.NewMat()
		gocv.Flip(out, &flipped, 1)
		out.Close()
		out = flipped
	}

	if d.cfg.MaxWidth > 0 && out.Cols() > d.cfg.MaxWidth {
		h := out.Rows() * d.cfg.MaxWidth / out.Cols()
		resized := gocv.NewMat()
		gocv.Resize(out, &resized, image.Pt(d.cfg.MaxWidth, h), 0, 0, gocv.InterpolationLinear)
		out.Close()
		out = resized
	}

	return out
}

func rotateFlag(deg int) (gocv.RotateFlag, bool) {
	switch deg {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	}
	return 0, false
}

// Facing implements camera.Camera.
func (d *Device) Facing() camera.Facing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.facing
}

// SetFacing switches lens, reopening the device when the lens maps to a
// different index.
func (d *Device) SetFacing(f camera.Facing) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.ErrClosed
	}
	if f == d.facing && d.vc != nil {
		return nil
	}
	prev := d.facing
	sameDevice := d.cfg.DeviceFor(prev) == d.cfg.DeviceFor(f)
	d.facing = f
	if sameDevice && d.vc != nil {
		return nil
	}
	if err := d.open(); err != nil {
		d.facing = prev
		if reopenErr := d.open(); reopenErr != nil {
			d.logger.Error("failed to restore previous lens", "error", reopenErr)
		}
		return err
	}
	return nil
}

// Apply reconfigures the device. Wired to camera.Manager.SetOnConfigChange.
func (d *Device) Apply(cfg camera.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.ErrClosed
	}
	prev := d.cfg
	d.cfg = cfg
	if err := d.open(); err != nil {
		d.cfg = prev
		if reopenErr := d.open(); reopenErr != nil {
			d.logger.Error("failed to restore previous config", "error", reopenErr)
		}
		return err
	}
	return nil
}

// Close implements camera.Camera.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.frame.Close()
	if d.vc != nil {
		return d.vc.Close()
	}
	return nil
}

var _ camera.Camera = (*Device)(nil)
