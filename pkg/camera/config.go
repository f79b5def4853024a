package camera

// Config holds the runtime-tunable capture parameters.
// These can be modified through the dashboard camera API.
type Config struct {
	// === Devices ===
	BackDevice  int `json:"back_device"`  // Device index of the back lens
	FrontDevice int `json:"front_device"` // Device index of the front lens

	// === Resolution ===
	Width  int `json:"width"`  // Requested frame width in pixels
	Height int `json:"height"` // Requested frame height in pixels

	// === Processing ===
	// Applied only when a capture does not set SkipProcessing.

	// MaxWidth downscales wider frames, keeping aspect ratio. 0 disables.
	MaxWidth int `json:"max_width"`

	// MirrorFront flips front-lens frames horizontally so they read like
	// a mirror.
	MirrorFront bool `json:"mirror_front"`

	// Rotate is a clockwise rotation in degrees: 0, 90, 180 or 270.
	Rotate int `json:"rotate"`
}

// Device limits.
const (
	MinWidth   = 160
	MinHeight  = 120
	MaxWidth   = 3840
	MaxHeight  = 2160
	MaxDevices = 16
)

// DefaultConfig returns VGA capture, which is plenty for a classifier
// that looks at one face.
func DefaultConfig() Config {
	return Config{
		BackDevice:  0,
		FrontDevice: 1,
		Width:       640,
		Height:      480,
		MaxWidth:    0,
		MirrorFront: true,
		Rotate:      0,
	}
}

// DeviceFor returns the device index for a lens.
func (c *Config) DeviceFor(f Facing) int {
	if f == FacingFront {
		return c.FrontDevice
	}
	return c.BackDevice
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.BackDevice < 0 || c.BackDevice >= MaxDevices {
		errors = append(errors, "back_device must be between 0 and 15")
	}
	if c.FrontDevice < 0 || c.FrontDevice >= MaxDevices {
		errors = append(errors, "front_device must be between 0 and 15")
	}

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}

	if c.MaxWidth != 0 && (c.MaxWidth < MinWidth || c.MaxWidth > MaxWidth) {
		errors = append(errors, "max_width must be 0 (off) or between 160 and 3840")
	}

	switch c.Rotate {
	case 0, 90, 180, 270:
	default:
		errors = append(errors, "rotate must be 0, 90, 180 or 270")
	}

	return errors
}
