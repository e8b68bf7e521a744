// Package config loads and validates the rtpmidid daemon configuration.
//
// Configuration files are YAML (.yaml, .yml) or TOML (.toml). Keys that a
// file leaves out keep their values from Default. The MIDI data port is not
// configured: it is always the control port plus one.
package config
