// Package settings persists user preferences as YAML under the user's
// config directory.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppName is the config directory name
const AppName = "stagesync"

// UserSettings holds persistable user preferences
type UserSettings struct {
	DisplayName      string `yaml:"displayName"`
	Picture          string `yaml:"picture"`
	Scene            string `yaml:"scene"`
	FPS              int    `yaml:"fps"`
	SampleIntervalMs int    `yaml:"sampleIntervalMs"`
	Codec            string `yaml:"codec"`
	PenColor         string `yaml:"penColor"`
	Signal           string `yaml:"signal,omitempty"`
}

// DefaultSettings returns the default settings. Identity fields stay empty
// until EnsureIdentity fills them.
func DefaultSettings() UserSettings {
	return UserSettings{
		Scene:            "apartment",
		FPS:              60,
		SampleIntervalMs: 100,
		Codec:            "json",
		PenColor:         "#ff3b30",
	}
}

// DefaultPath returns the config file path.
// Uses XDG_CONFIG_HOME if set, otherwise the OS user config directory.
func DefaultPath() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, AppName)
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, AppName)
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// Manager handles loading and saving user settings
type Manager struct {
	path     string
	settings UserSettings
}

// NewManager creates a manager for the given path. An empty path selects
// DefaultPath.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	return &Manager{path: path, settings: DefaultSettings()}, nil
}

// Path returns the config file path
func (m *Manager) Path() string {
	return m.path
}

// Load reads settings from the config file.
// Returns default settings if file doesn't exist or is invalid.
func (m *Manager) Load() (UserSettings, error) {
	m.settings = DefaultSettings()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m.settings, nil
		}
		return m.settings, fmt.Errorf("read settings: %w", err)
	}

	// missing fields keep their defaults
	if err := yaml.Unmarshal(data, &m.settings); err != nil {
		m.settings = DefaultSettings()
		return m.settings, nil
	}

	m.validate()
	return m.settings, nil
}

// validate resets out-of-range values to their defaults
func (m *Manager) validate() {
	def := DefaultSettings()
	if m.settings.FPS <= 0 || m.settings.FPS > 240 {
		m.settings.FPS = def.FPS
	}
	if m.settings.SampleIntervalMs <= 0 || m.settings.SampleIntervalMs > 10000 {
		m.settings.SampleIntervalMs = def.SampleIntervalMs
	}
	if m.settings.Scene == "" {
		m.settings.Scene = def.Scene
	}
	if m.settings.Codec == "" {
		m.settings.Codec = def.Codec
	}
	if m.settings.PenColor == "" {
		m.settings.PenColor = def.PenColor
	}
}

// Save writes settings to the config file
func (m *Manager) Save(settings UserSettings) error {
	m.settings = settings

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	return os.WriteFile(m.path, data, 0644)
}

// Settings returns the current settings
func (m *Manager) Settings() UserSettings {
	return m.settings
}
