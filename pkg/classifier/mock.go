package classifier

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/crywatch/pkg/camera"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, photo *camera.Photo) (*Result, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Classify invocation.
type MockCall struct {
	Photo *camera.Photo
	Time  time.Time
}

// NewMock creates a mock that always answers with detected.
func NewMock(detected bool) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, photo *camera.Photo) (*Result, error) {
			return &Result{EmotionDetected: detected, Backend: "mock"}, nil
		},
	}
}

// MockError returns a mock that always fails with err.
func MockError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, photo *camera.Photo) (*Result, error) {
			return nil, err
		},
	}
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, photo *camera.Photo) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Photo: photo, Time: time.Now()})
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, photo)
	}
	return nil, ErrNetwork
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Classify calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Classifier at compile time.
var _ Classifier = (*Mock)(nil)
