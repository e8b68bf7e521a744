package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:5004", cfg.ControlAddress())
	assert.Equal(t, "0.0.0.0:5005", cfg.MidiAddress())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty name", func(c *Config) { c.Name = "" }, "name"},
		{"empty bind address", func(c *Config) { c.BindAddress = "" }, "bind_address cannot be empty"},
		{"hostname bind address", func(c *Config) { c.BindAddress = "localhost" }, "must be an IP address"},
		{"port zero", func(c *Config) { c.ControlPort = 0 }, "control_port"},
		{"port leaves no room for midi", func(c *Config) { c.ControlPort = 65535 }, "control_port"},
		{"no peers", func(c *Config) { c.MaxPeers = 0 }, "max_peers"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "format must be"},
		{"empty output", func(c *Config) { c.Logging.Output = "" }, "output cannot be empty"},
		{"bad metrics address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = "nope"
		}, "invalid metrics address"},
		{"metrics address ignored when disabled", func(c *Config) { c.Metrics.Address = "nope" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "rtpmidid.yaml", `
name: studio
control_port: 6004
logging:
  level: debug
metrics:
  enabled: true
  address: "127.0.0.1:9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "studio", cfg.Name)
	assert.Equal(t, 6004, cfg.ControlPort)
	assert.Equal(t, "0.0.0.0", cfg.BindAddress, "absent keys keep defaults")
	assert.Equal(t, 16, cfg.MaxPeers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Address)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "rtpmidid.toml", `
name = " stage "
max_peers = 4

[logging]
format = "json"

[metrics]
enabled = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "stage", cfg.Name)
	assert.Equal(t, 4, cfg.MaxPeers)
	assert.Equal(t, 5004, cfg.ControlPort)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Address)
}

func TestLoadErrors(t *testing.T) {
	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "rtpmidid.ini", "name=x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported config file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yml", "name: [unterminated"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.toml", "name = "))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yaml", "max_peers: 0\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("json to file", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "rtpmidid.log")
		cfg := LoggingConfig{Level: "warn", Format: "json", Output: logPath}

		logger, closer, err := cfg.NewLogger()
		require.NoError(t, err)

		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

		logger.Warn("written")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"written"`)
	})

	t.Run("text to stderr", func(t *testing.T) {
		logger, closer, err := Default().Logging.NewLogger()
		require.NoError(t, err)
		defer closer.Close()

		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
		assert.Equal(t, os.Stderr, logger.Out)
	})

	t.Run("bad level", func(t *testing.T) {
		cfg := LoggingConfig{Level: "loud", Format: "text", Output: "stderr"}
		_, _, err := cfg.NewLogger()
		assert.Error(t, err)
	})
}
