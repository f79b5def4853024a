package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/teslashibe/crywatch/internal/httpc"
	"github.com/teslashibe/crywatch/pkg/camera"
)

const backendHTTP = "http"

// maxResponseSize caps how much of a reply is read. Real replies are a
// few dozen bytes.
const maxResponseSize = 64 * 1024

// Client uploads photos to the analyze_camera_photo endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a new HTTP classifier.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	return &Client{
		endpoint: Endpoint(cfg.BaseURL),
		http:     hc,
		logger:   cfg.Logger.With("component", "classifier.http"),
	}, nil
}

// Endpoint joins the base URL and AnalyzePath. The base URL may or may
// not end in a slash.
func Endpoint(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + AnalyzePath
}

// URL returns the endpoint this client posts to.
func (c *Client) URL() string { return c.endpoint }

// Classify implements Classifier.
func (c *Client) Classify(ctx context.Context, photo *camera.Photo) (*Result, error) {
	if photo == nil || len(photo.Data) == 0 {
		return nil, ErrNoPhoto
	}
	start := time.Now()

	body, contentType, err := buildUpload(photo.Data)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			Backend:    backendHTTP,
		}
	}

	detected, err := decodeDetection(data)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	c.logger.Debug("photo classified",
		"emotion_detected", detected,
		"bytes", len(photo.Data),
		"latency_ms", latency.Milliseconds(),
	)

	return &Result{
		EmotionDetected: detected,
		Backend:         backendHTTP,
		Latency:         latency,
	}, nil
}

// buildUpload builds the multipart body: one file part, "photo", holding
// photo.jpg.
func buildUpload(jpeg []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, PhotoField, PhotoFilename))
	h.Set("Content-Type", PhotoContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var _ Classifier = (*Client)(nil)
