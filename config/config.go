package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX ControllerType = "launchpad-x"
	ControllerKeyboard   ControllerType = "keyboard"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName    string         `json:"portName"`
	Type        ControllerType `json:"type"`
	AutoConnect bool           `json:"autoConnect"`
}

// ModuleKind names a sound chip.
type ModuleKind string

const (
	KindYM2608 ModuleKind = "YM2608"
	KindYM2203 ModuleKind = "YM2203"
)

// ModuleConfig describes one sound module slot. The slot index is the module id.
type ModuleConfig struct {
	Kind ModuleKind `json:"kind"`
}

// SpeechConfig configures the speech voice.
type SpeechConfig struct {
	Enabled       bool `json:"enabled"`
	TimerModule   int  `json:"timerModule"`
	Operators     int  `json:"operators"`
	FramePeriodMs int  `json:"framePeriodMs"`
}

// SerialConfig selects the link to the module board. An empty port runs
// without hardware.
type SerialConfig struct {
	Port string `json:"port,omitempty"`
	Baud int    `json:"baud,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Controllers     []ControllerConfig `json:"controllers,omitempty"`
	Modules         []ModuleConfig     `json:"modules"`
	RhythmModule    int                `json:"rhythmModule"`
	Speech          SpeechConfig       `json:"speech"`
	Serial          SerialConfig       `json:"serial,omitempty"`
	EnabledChannels uint16             `json:"enabledChannels"`
	DebugLevel      int                `json:"debugLevel,omitempty"`
	LogFile         bool               `json:"logFile,omitempty"`
	Palette         string             `json:"palette,omitempty"` // GIMP palette file for the console
}

const (
	MaxModules    = 4
	DefaultBaud   = 115200
	minOperators  = 4
	maxOperators  = 16
	defaultFrames = 10
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
			},
		},
		Modules: []ModuleConfig{
			{Kind: KindYM2608},
			{Kind: KindYM2608},
			{Kind: KindYM2203},
			{Kind: KindYM2203},
		},
		Speech: SpeechConfig{
			Enabled:       true,
			TimerModule:   0,
			Operators:     8,
			FramePeriodMs: defaultFrames,
		},
		Serial:          SerialConfig{Baud: DefaultBaud},
		EnabledChannels: 0xFFFF,
	}
}

// Validate checks the module topology.
func (c *Config) Validate() error {
	if len(c.Modules) == 0 {
		return errors.New("config: no modules")
	}
	if len(c.Modules) > MaxModules {
		return errors.Errorf("config: %d modules, at most %d supported", len(c.Modules), MaxModules)
	}
	for i, m := range c.Modules {
		if m.Kind != KindYM2608 && m.Kind != KindYM2203 {
			return errors.Errorf("config: module %d: unknown kind %q", i, m.Kind)
		}
	}
	if c.RhythmModule < 0 || c.RhythmModule >= len(c.Modules) {
		return errors.Errorf("config: rhythm module %d out of range", c.RhythmModule)
	}
	if c.Speech.Enabled {
		if c.Speech.TimerModule < 0 || c.Speech.TimerModule >= len(c.Modules) {
			return errors.Errorf("config: speech timer module %d out of range", c.Speech.TimerModule)
		}
		if c.Speech.Operators < minOperators || c.Speech.Operators > maxOperators {
			return errors.Errorf("config: speech operators %d not in %d..%d",
				c.Speech.Operators, minOperators, maxOperators)
		}
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "home directory")
	}
	return filepath.Join(home, ".config", "fmsynth-ensemble"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
// Fields absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.Wrapf(os.WriteFile(path, data, 0644), "write %s", path)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}

// HasKeyboards reports whether any keyboard is configured explicitly.
func (c *Config) HasKeyboards() bool {
	for _, ctrl := range c.Controllers {
		if ctrl.Type == ControllerKeyboard {
			return true
		}
	}
	return false
}
