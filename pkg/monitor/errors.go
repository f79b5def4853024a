package monitor

import (
	"context"
	"errors"

	"github.com/teslashibe/crywatch/pkg/classifier"
)

// Tick failures. None of them leave the controller: they are logged,
// counted, and the next tick tries again.
var (
	// ErrCameraNotReady is logged when Start is called with no camera.
	ErrCameraNotReady = errors.New("monitor: camera not ready")

	// ErrCapture wraps a failed still capture.
	ErrCapture = errors.New("monitor: capture failed")
)

// failureKind names the error class for the "kind" log attribute.
func failureKind(err error) string {
	var apiErr *classifier.APIError
	switch {
	case errors.Is(err, ErrCameraNotReady):
		return "camera_not_ready"
	case errors.Is(err, ErrCapture):
		return "capture"
	case errors.Is(err, classifier.ErrMalformedResponse):
		return "response_parse"
	case errors.As(err, &apiErr):
		return "api"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, classifier.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return "network"
	default:
		return "unknown"
	}
}
