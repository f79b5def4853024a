package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	PresetHD      = "hd"
	PresetLaptop  = "laptop"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLow:     LowConfig(),
		PresetHD:      HDConfig(),
		PresetLaptop:  LaptopConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetLow, PresetHD, PresetLaptop}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LowConfig captures QVGA for slow uplinks.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	return cfg
}

// HDConfig captures 720p and scales processed stills back to 640 wide.
func HDConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.MaxWidth = 640
	return cfg
}

// LaptopConfig is for machines with a single built-in webcam: both
// lenses map to device 0.
func LaptopConfig() Config {
	cfg := DefaultConfig()
	cfg.FrontDevice = 0
	return cfg
}
