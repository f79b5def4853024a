// Package monitor runs the capture loop: while streaming, every tick takes a
// still, sends it to the classifier and updates the displayed label.
//
// A failed tick is logged and counted but never stops the loop or changes
// the label. A tick that comes due while the previous one is still in
// flight is skipped, so at most one capture-and-classify runs at a time.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/classifier"
	"github.com/teslashibe/crywatch/pkg/scheduler"
)

// Stats counts what the loop has done since the controller was created.
type Stats struct {
	Ticks            uint64    `json:"ticks"`
	Captures         uint64    `json:"captures"`
	CaptureFailures  uint64    `json:"capture_failures"`
	ClassifyFailures uint64    `json:"classify_failures"`
	Skipped          uint64    `json:"skipped"`
	LastResultAt     time.Time `json:"last_result_at,omitzero"`
}

// State is a snapshot of the controller.
type State struct {
	Streaming   bool          `json:"streaming"`
	Label       Label         `json:"label"`
	Display     string        `json:"display"`
	CameraReady bool          `json:"camera_ready"`
	Facing      camera.Facing `json:"facing,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	Stats       Stats         `json:"stats"`
}

// Controller owns the streaming flag, the current label and the repeating
// tick.
type Controller struct {
	cfg        *Config
	classifier classifier.Classifier
	logger     *slog.Logger

	// OnChange is called after Start, Stop and every label update.
	// Set it before the first Start.
	OnChange func(State)

	// OnPhoto is called with every captured still before it is
	// classified. Set it before the first Start.
	OnPhoto func(*camera.Photo)

	mu        sync.Mutex
	cam       camera.Camera
	streaming bool
	label     Label
	task      scheduler.Task
	cancel    context.CancelFunc
	session   string
	seq       uint64
	stats     Stats

	inFlight atomic.Bool
}

// New creates a stopped controller with the label at LabelUnknown.
func New(c classifier.Classifier, opts ...Option) *Controller {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Controller{
		cfg:        cfg,
		classifier: c,
		logger:     cfg.Logger.With("component", "monitor"),
	}
}

// SetCamera attaches a camera. Passing nil detaches it; ticks that run
// without a camera do nothing.
func (c *Controller) SetCamera(cam camera.Camera) {
	c.mu.Lock()
	c.cam = cam
	c.mu.Unlock()
}

// Camera returns the attached camera, or nil.
func (c *Controller) Camera() camera.Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam
}

// Start begins the repeating tick. Without a camera it logs a warning and
// leaves the controller stopped. Calling Start while streaming does
// nothing.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return
	}
	if c.cam == nil {
		c.mu.Unlock()
		c.logger.Warn("start ignored", "error", ErrCameraNotReady, "kind", failureKind(ErrCameraNotReady))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := uuid.NewString()
	c.session = session
	c.cancel = cancel
	c.seq = 0
	c.streaming = true
	c.task = c.cfg.Scheduler.Every(c.cfg.Interval, func() { c.tick(ctx, session) })
	st := c.snapshot()
	c.mu.Unlock()

	c.logger.Info("streaming started", "session", session, "interval", c.cfg.Interval)
	c.notify(st)
}

// Stop cancels the repeating tick and any request in flight. The label
// keeps its last value. Stop is safe to call at any time.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	was := c.streaming
	c.streaming = false
	session := c.session
	st := c.snapshot()
	c.mu.Unlock()

	if was {
		c.logger.Info("streaming stopped", "session", session)
		c.notify(st)
	}
}

// Toggle starts a stopped controller and stops a streaming one.
func (c *Controller) Toggle() {
	if c.Streaming() {
		c.Stop()
		return
	}
	c.Start()
}

// Streaming reports whether the loop is running.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Label returns the current label.
func (c *Controller) Label() Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Stats returns the loop counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) snapshot() State {
	st := State{
		Streaming:   c.streaming,
		Label:       c.label,
		Display:     c.label.DisplayText(),
		CameraReady: c.cam != nil,
		Stats:       c.stats,
	}
	if c.streaming {
		st.SessionID = c.session
	}
	if c.cam != nil {
		st.Facing = c.cam.Facing()
	}
	return st
}

func (c *Controller) notify(st State) {
	if c.OnChange != nil {
		c.OnChange(st)
	}
}

// tick runs one capture-and-classify cycle for session.
func (c *Controller) tick(ctx context.Context, session string) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.mu.Lock()
		c.stats.Skipped++
		c.mu.Unlock()
		c.logger.Debug("tick skipped, previous still in flight", "session", session)
		return
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	if !c.streaming || c.session != session {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	cam := c.cam
	c.stats.Ticks++
	c.mu.Unlock()

	if cam == nil {
		return
	}
	logger := c.logger.With("session", session, "tick", seq)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TickTimeout)
	defer cancel()

	photo, err := cam.TakePicture(ctx, c.cfg.Capture)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCapture, err)
		c.mu.Lock()
		c.stats.CaptureFailures++
		c.mu.Unlock()
		logger.Error("tick failed", "error", err, "kind", failureKind(err))
		return
	}
	c.mu.Lock()
	c.stats.Captures++
	c.mu.Unlock()

	if c.OnPhoto != nil {
		c.OnPhoto(photo)
	}

	res, err := c.classifier.Classify(ctx, photo)
	if err != nil {
		c.mu.Lock()
		c.stats.ClassifyFailures++
		c.mu.Unlock()
		logger.Error("tick failed", "error", err, "kind", failureKind(err))
		return
	}

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return
	}
	prev := c.label
	c.label = labelFor(res.EmotionDetected)
	c.stats.LastResultAt = time.Now()
	st := c.snapshot()
	c.mu.Unlock()

	if prev != st.Label {
		logger.Info("label changed", "from", prev, "to", st.Label, "backend", res.Backend, "latency", res.Latency)
	} else {
		logger.Debug("classified", "label", st.Label, "latency", res.Latency)
	}
	c.notify(st)
}
