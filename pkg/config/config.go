package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinLookBehind and MaxLookBehind bound the per-channel history length.
	MinLookBehind = 10
	MaxLookBehind = 5000
	// MaxBaudRate is the highest baud rate accepted for a custom setting.
	MaxBaudRate = 3_000_000
	// DefaultBaudRate is the baud rate assigned to newly added channels.
	DefaultBaudRate = 115_200
)

// BaudRates lists the recognized baud rates offered by the UI.
var BaudRates = []int{9_600, 57_600, 115_200, 256_000, 512_000, 921_600, 3_000_000}

var (
	// ErrInvalidRange is returned when a range has Lo >= Hi.
	ErrInvalidRange = errors.New("invalid range: lower bound must be below upper bound")
	// ErrInvalidBaud is returned for a baud rate outside the accepted set.
	ErrInvalidBaud = errors.New("invalid baud rate")
	// ErrNoPort is returned when a channel has no device identifier.
	ErrNoPort = errors.New("no serial port selected")
)

// Config represents the application configuration.
type Config struct {
	LookBehind       int             `yaml:"look_behind"`
	ReadTimeout      time.Duration   `yaml:"read_timeout"`
	RefreshInterval  time.Duration   `yaml:"refresh_interval"`
	LivenessInterval time.Duration   `yaml:"liveness_interval"`
	Channel          ChannelConfig   `yaml:"channel"`  // Template for newly added channels
	Channels         []ChannelConfig `yaml:"channels"` // Channels restored at startup
	Mock             MockConfig      `yaml:"mock"`
}

// ChannelConfig contains the settings of a single telemetry channel.
type ChannelConfig struct {
	Port       string `yaml:"port"`
	BaudRate   int    `yaml:"baud_rate"`
	CustomBaud bool   `yaml:"custom_baud"`
	Input      Range  `yaml:"input"`
	Output     Range  `yaml:"output"`
	Convert    bool   `yaml:"convert"` // Remap Input onto Output
	Color      string `yaml:"color"`   // #rrggbb
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Ports      []string      `yaml:"ports"`
	Amplitude  float64       `yaml:"amplitude"`   // Peak deviation from Offset
	Offset     float64       `yaml:"offset"`      // Center value
	Period     time.Duration `yaml:"period"`      // Sine period
	NoiseLevel float64       `yaml:"noise_level"` // Peak noise
	SampleRate time.Duration `yaml:"sample_rate"` // Time between emitted lines
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		LookBehind:       2000,
		ReadTimeout:      10 * time.Millisecond,
		RefreshInterval:  7 * time.Millisecond,
		LivenessInterval: 250 * time.Millisecond,
		Channel:          DefaultChannel(""),
		Mock: MockConfig{
			Ports:      []string{"MOCK0", "MOCK1"},
			Amplitude:  400,
			Offset:     512,
			Period:     2 * time.Second,
			NoiseLevel: 10,
			SampleRate: 10 * time.Millisecond,
		},
	}
}

// DefaultChannel returns the default settings for a channel on port.
func DefaultChannel(port string) ChannelConfig {
	return ChannelConfig{
		Port:     port,
		BaudRate: DefaultBaudRate,
		Input:    Range{Lo: 0, Hi: 1024},
		Output:   Range{Lo: 0, Hi: 3.3},
		Color:    "#ff0000",
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.LookBehind == 0 {
		c.LookBehind = def.LookBehind
	}
	c.LookBehind = ClampLookBehind(c.LookBehind)

	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = def.RefreshInterval
	}
	if c.LivenessInterval == 0 {
		c.LivenessInterval = def.LivenessInterval
	}

	c.Channel.ensureDefaults()
	for i := range c.Channels {
		c.Channels[i].ensureDefaults()
	}

	if len(c.Mock.Ports) == 0 {
		c.Mock.Ports = def.Mock.Ports
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
}

func (c *ChannelConfig) ensureDefaults() {
	def := DefaultChannel(c.Port)

	if c.BaudRate == 0 {
		c.BaudRate = def.BaudRate
	}
	// A zero range in YAML means the section was omitted.
	if c.Input == (Range{}) {
		c.Input = def.Input
	}
	if c.Output == (Range{}) {
		c.Output = def.Output
	}
	if c.Color == "" {
		c.Color = def.Color
	}
}

// Validate checks the channel settings before they reach a running channel.
func (c ChannelConfig) Validate() error {
	if c.Port == "" {
		return ErrNoPort
	}
	if err := ValidateBaud(c.BaudRate, c.CustomBaud); err != nil {
		return err
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if c.Convert {
		if err := c.Output.Validate(); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}
	return nil
}

// DisplayRange returns the range the channel's values are expected to fall in.
func (c ChannelConfig) DisplayRange() Range {
	if c.Convert {
		return c.Output
	}
	return c.Input
}

// ValidateBaud checks baud against the recognized set, or against
// [1, MaxBaudRate] when custom is set.
func ValidateBaud(baud int, custom bool) error {
	if custom {
		if baud < 1 || baud > MaxBaudRate {
			return fmt.Errorf("%w: %d", ErrInvalidBaud, baud)
		}
		return nil
	}
	for _, b := range BaudRates {
		if b == baud {
			return nil
		}
	}
	return fmt.Errorf("%w: %d is not a standard rate", ErrInvalidBaud, baud)
}

// ClampLookBehind limits n to [MinLookBehind, MaxLookBehind].
func ClampLookBehind(n int) int {
	return max(MinLookBehind, min(n, MaxLookBehind))
}
