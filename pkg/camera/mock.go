package camera

import (
	"context"
	"sync"
	"time"
)

// Mock implements Camera for testing.
type Mock struct {
	// TakePictureFunc is called when TakePicture is invoked. When nil a
	// tiny fixed JPEG-looking payload is returned.
	TakePictureFunc func(ctx context.Context, opts CaptureOptions) (*Photo, error)

	mu      sync.Mutex
	facing  Facing
	closed  bool
	calls   []CaptureOptions
	facings []Facing
}

// NewMock creates a mock camera facing back.
func NewMock() *Mock {
	return &Mock{facing: FacingBack}
}

// MockFailing returns a mock whose every capture fails with err.
func MockFailing(err error) *Mock {
	m := NewMock()
	m.TakePictureFunc = func(ctx context.Context, opts CaptureOptions) (*Photo, error) {
		return nil, err
	}
	return m
}

// TakePicture implements Camera.
func (m *Mock) TakePicture(ctx context.Context, opts CaptureOptions) (*Photo, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.calls = append(m.calls, opts)
	fn := m.TakePictureFunc
	facing := m.facing
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, opts)
	}
	return &Photo{
		Data:       []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Width:      1,
		Height:     1,
		Facing:     facing,
		CapturedAt: time.Now(),
	}, nil
}

// Facing implements Camera.
func (m *Mock) Facing() Facing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}

// SetFacing implements Camera.
func (m *Mock) SetFacing(f Facing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facing = f
	m.facings = append(m.facings, f)
	return nil
}

// Close implements Camera.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Captures returns the options of every TakePicture call.
func (m *Mock) Captures() []CaptureOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CaptureOptions, len(m.calls))
	copy(out, m.calls)
	return out
}

// CaptureCount returns how many times TakePicture was called.
func (m *Mock) CaptureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Camera at compile time.
var _ Camera = (*Mock)(nil)
