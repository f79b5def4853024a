package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	onConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager with the given config.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// SetOnConfigChange sets the hook that applies a new config to the device.
// A hook error rolls the config back.
func (m *Manager) SetOnConfigChange(fn func(cfg Config) error) {
	m.mu.Lock()
	m.onConfigChange = fn
	m.mu.Unlock()
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores cfg, then applies it through
// the config-change hook. The stored config is rolled back if applying fails.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	prev := m.config
	m.config = cfg
	callback := m.onConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			m.mu.Lock()
			m.config = prev
			m.mu.Unlock()
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, as decoded from JSON. A "preset"
// key replaces the base config before the other fields are applied.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if name, ok := params["preset"].(string); ok {
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", name)
		}
		cfg = *preset
	}

	for key, value := range params {
		switch key {
		case "preset":
		case "back_device":
			v, ok := toInt(value)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.BackDevice = v
		case "front_device":
			v, ok := toInt(value)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.FrontDevice = v
		case "width":
			v, ok := toInt(value)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.Width = v
		case "height":
			v, ok := toInt(value)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.Height = v
		case "max_width":
			v, ok := toInt(value)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.MaxWidth = v
		case "rotate":
			v, ok := toInt(value)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.Rotate = v
		case "mirror_front":
			v, ok := value.(bool)
			if !ok {
				return invalidValue(key, value)
			}
			cfg.MirrorFront = v
		default:
			return fmt.Errorf("unknown field: %s", key)
		}
	}

	return m.SetConfig(cfg)
}

func invalidValue(key string, v interface{}) error {
	return fmt.Errorf("invalid value for %s: %v", key, v)
}

// toInt accepts whole numbers only; 640.5 is not a width.
func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
