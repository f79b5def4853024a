// Package config reads crywatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultInterval    = time.Second
	DefaultTickTimeout = 10 * time.Second
	DefaultPort        = "8080"
	DefaultCamera      = CameraOpenCV
	DefaultClassifier  = ClassifierHTTP
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultBackDevice  = 0
	DefaultFrontDevice = 1
)

// Camera backends.
const (
	CameraOpenCV = "opencv"
	CameraScreen = "screen"
)

// Classifier backends.
const (
	ClassifierHTTP   = "http"
	ClassifierOpenAI = "openai"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	// BaseURL is the classifier host (DOMEN), e.g. "http://10.0.0.5:8000/".
	BaseURL string

	Interval    time.Duration
	TickTimeout time.Duration

	Camera      string
	BackDevice  int
	FrontDevice int
	Facing      string

	Classifier  string
	OpenAIKey   string
	OpenAIModel string

	Port      string
	LogLevel  string
	AutoStart bool

	// PermissionGranted skips the dashboard permission prompt.
	PermissionGranted bool
}

// Load reads the configuration from environment variables.
func Load() Config {
	return Config{
		BaseURL:           os.Getenv("DOMEN"),
		Interval:          Duration("CRYWATCH_INTERVAL", DefaultInterval),
		TickTimeout:       Duration("CRYWATCH_TICK_TIMEOUT", DefaultTickTimeout),
		Camera:            String("CRYWATCH_CAMERA", DefaultCamera),
		BackDevice:        Int("CRYWATCH_BACK_DEVICE", DefaultBackDevice),
		FrontDevice:       Int("CRYWATCH_FRONT_DEVICE", DefaultFrontDevice),
		Facing:            String("CRYWATCH_FACING", "back"),
		Classifier:        String("CRYWATCH_CLASSIFIER", DefaultClassifier),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       String("CRYWATCH_OPENAI_MODEL", DefaultOpenAIModel),
		Port:              String("CRYWATCH_PORT", DefaultPort),
		LogLevel:          String("LOG_LEVEL", "info"),
		AutoStart:         Bool("CRYWATCH_AUTOSTART", false),
		PermissionGranted: Bool("CRYWATCH_PERMISSION_GRANTED", false),
	}
}

// Validate checks that the configuration can run.
func (c Config) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.TickTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tick timeout must be positive, got %s", c.TickTimeout))
	}

	switch c.Camera {
	case CameraOpenCV, CameraScreen:
	default:
		errs = append(errs, fmt.Errorf("unknown camera backend %q", c.Camera))
	}

	switch c.Facing {
	case "front", "back":
	default:
		errs = append(errs, fmt.Errorf("facing must be front or back, got %q", c.Facing))
	}

	switch c.Classifier {
	case ClassifierHTTP:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("DOMEN is required for the http classifier"))
		} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("DOMEN is not an absolute URL: %q", c.BaseURL))
		}
	case ClassifierOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier backend %q", c.Classifier))
	}

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}

	return errors.Join(errs...)
}

// String returns the env var value or def when unset.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or def when unset or invalid.
func Int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the env var parsed as a bool, or def when unset or invalid.
func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the env var parsed as a duration, or def when unset or
// invalid. Bare integers are read as milliseconds ("1000" == 1s).
func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
