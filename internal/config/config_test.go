// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
fields = 4
log_level = "debug"

[bus]
i2c = "/dev/i2c-1"

[controller]
runs = 50
timeout = "90s"
targets = ["0x41", "66"]

[responder]
address = "0x42"
indicator = "rgb_led"
poll_interval = "1ms"
printout = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Fields)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/dev/i2c-1", cfg.Bus.I2C)
	assert.Equal(t, 115200, cfg.Bus.Baud, "default kept")
	assert.Equal(t, 50, cfg.Controller.Runs)
	assert.Equal(t, 90*time.Second, cfg.Controller.Timeout)
	assert.Equal(t, []bus.Address{0x41, 0x42}, cfg.Controller.Targets)
	assert.Equal(t, bus.Address(0x42), cfg.Responder.Address)
	assert.Equal(t, "rgb_led", cfg.Responder.Indicator)
	assert.Equal(t, time.Millisecond, cfg.Responder.PollInterval)
	assert.True(t, cfg.Responder.Printout)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad fields", "fields = 5"},
		{"bad duration", "[controller]\ntimeout = \"soon\""},
		{"negative duration", "[responder]\npoll_interval = \"-1s\""},
		{"bad target", "[controller]\ntargets = [\"0x99\"]"},
		{"bad address", "[responder]\naddress = \"zz\""},
		{"two buses", "[bus]\ni2c = \"/dev/i2c-1\"\nport = \"/dev/ttyUSB0\""},
		{"bad indicator", "[responder]\nindicator = \"neon\""},
		{"unknown key", "colour = \"red\""},
		{"zero runs", "[controller]\nruns = 0"},
		{"syntax", "fields = "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
