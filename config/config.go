package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/opd-ai/rtpmidi/limits"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration
type Config struct {
	Name        string        `yaml:"name" toml:"name"`
	BindAddress string        `yaml:"bind_address" toml:"bind_address"`
	ControlPort int           `yaml:"control_port" toml:"control_port"`
	MaxPeers    int           `yaml:"max_peers" toml:"max_peers"`
	Logging     LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics     MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// MetricsConfig contains the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Address string `yaml:"address" toml:"address"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Name:        "rtpmidid",
		BindAddress: "0.0.0.0",
		ControlPort: 5004,
		MaxPeers:    16,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}
}

// Load reads the configuration file at path, overlays it on Default and
// validates the result.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	case ".toml":
		cfg, err = loadTOML(path)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// yaml.v3 leaves fields absent from the document untouched.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func loadTOML(path string) (*Config, error) {
	cfg := Default()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("bind_address") {
		cfg.BindAddress = strings.TrimSpace(raw.BindAddress)
	}
	if meta.IsDefined("control_port") {
		cfg.ControlPort = raw.ControlPort
	}
	if meta.IsDefined("max_peers") {
		cfg.MaxPeers = raw.MaxPeers
	}

	if meta.IsDefined("logging", "level") {
		cfg.Logging.Level = strings.TrimSpace(raw.Logging.Level)
	}
	if meta.IsDefined("logging", "format") {
		cfg.Logging.Format = strings.TrimSpace(raw.Logging.Format)
	}
	if meta.IsDefined("logging", "output") {
		cfg.Logging.Output = strings.TrimSpace(raw.Logging.Output)
	}

	if meta.IsDefined("metrics", "enabled") {
		cfg.Metrics.Enabled = raw.Metrics.Enabled
	}
	if meta.IsDefined("metrics", "address") {
		cfg.Metrics.Address = strings.TrimSpace(raw.Metrics.Address)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "loadTOML",
			"path":     path,
			"keys":     fmt.Sprint(undecoded),
		}).Warn("Ignoring unknown configuration keys")
	}

	return cfg, nil
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := limits.ValidateName(c.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}

	if c.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}
	if net.ParseIP(c.BindAddress) == nil {
		return fmt.Errorf("bind_address must be an IP address, got %q", c.BindAddress)
	}

	// The MIDI port is ControlPort+1, so the control port stops one short.
	if c.ControlPort < 1 || c.ControlPort > 65534 {
		return fmt.Errorf("control_port must be between 1 and 65534, got %d", c.ControlPort)
	}

	if c.MaxPeers < 1 {
		return fmt.Errorf("max_peers must be at least 1, got %d", c.MaxPeers)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid log level %q", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Address); err != nil {
		return fmt.Errorf("invalid metrics address %q: %w", m.Address, err)
	}
	return nil
}

// ControlAddress returns the listen address of the control socket.
func (c *Config) ControlAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.ControlPort))
}

// MidiAddress returns the listen address of the MIDI data socket.
func (c *Config) MidiAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.ControlPort+1))
}

// NewLogger builds a logrus logger from the logging configuration. The
// returned closer releases the log file when Output names one.
func (l *LoggingConfig) NewLogger() (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	logger.SetLevel(level)

	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	switch l.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr", "":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", l.Output, err)
		}
		logger.SetOutput(f)
		closer = f
	}

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
