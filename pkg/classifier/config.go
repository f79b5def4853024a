package classifier

import (
	"log/slog"
	"net/http"
	"time"
)

// AnalyzePath is the endpoint path, relative to the base URL.
const AnalyzePath = "api/analyze_camera_photo/"

// Multipart layout of the upload.
const (
	PhotoField       = "photo"
	PhotoFilename    = "photo.jpg"
	PhotoContentType = "image/jpeg"
)

// Config holds backend configuration.
type Config struct {
	// Connection
	BaseURL string // Classifier host, e.g. "http://10.0.0.5:8000/"
	APIKey  string // Hosted backends only

	// Model for hosted vision backends.
	Model string

	// Timeout bounds one request. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring backends.
type Option func(*Config)

// WithBaseURL sets the classifier base URL (the DOMEN setting).
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key for hosted backends.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the vision model for hosted backends.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults shared by all backends.
func DefaultConfig() *Config {
	return &Config{
		Model:   "gpt-4o-mini",
		Timeout: 10 * time.Second,
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
