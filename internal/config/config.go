// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/Thermoquad/framelink/pkg/responder"
)

// Bus selects the bus connection. At most one of I2C, Port and URL is set.
type Bus struct {
	I2C         string
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool
}

// Controller holds transaction loop settings
type Controller struct {
	Runs      int
	MaxErrors int
	Timeout   time.Duration
	Targets   []bus.Address
	Seed      int64
}

// Responder holds receive service settings
type Responder struct {
	Address      bus.Address
	Indicator    string
	PollInterval time.Duration
	Printout     bool
}

// Bridge holds bridge server settings
type Bridge struct {
	Listen    string
	ServePort string
}

// Config is the deployment configuration
type Config struct {
	Fields     int
	LogLevel   string
	Bus        Bus
	Controller Controller
	Responder  Responder
	Bridge     Bridge
}

// Default returns the settings used when no file is given
func Default() Config {
	return Config{
		Fields:   2,
		LogLevel: "info",
		Bus: Bus{
			Baud: 115200,
		},
		Controller: Controller{
			Runs:    200,
			Timeout: 3 * time.Minute,
		},
		Responder: Responder{
			Address:   0x41,
			Indicator: responder.IndicatorNone,
		},
	}
}

// framelink config.toml layout
type fileConfig struct {
	Fields   int    `toml:"fields"`
	LogLevel string `toml:"log_level"`
	Bus      struct {
		I2C         string `toml:"i2c"`
		Port        string `toml:"port"`
		Baud        int    `toml:"baud"`
		URL         string `toml:"url"`
		Username    string `toml:"username"`
		NoSSLVerify bool   `toml:"no_ssl_verify"`
	} `toml:"bus"`
	Controller struct {
		Runs      int      `toml:"runs"`
		MaxErrors int      `toml:"max_errors"`
		Timeout   string   `toml:"timeout"`
		Targets   []string `toml:"targets"`
		Seed      int64    `toml:"seed"`
	} `toml:"controller"`
	Responder struct {
		Address      string `toml:"address"`
		Indicator    string `toml:"indicator"`
		PollInterval string `toml:"poll_interval"`
		Printout     bool   `toml:"printout"`
	} `toml:"responder"`
	Bridge struct {
		Listen    string `toml:"listen"`
		ServePort string `toml:"serve_port"`
	} `toml:"bridge"`
}

// Load reads a TOML file over the defaults and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load framelink config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load framelink config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("fields") {
		cfg.Fields = raw.Fields
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("bus", "i2c") {
		cfg.Bus.I2C = strings.TrimSpace(raw.Bus.I2C)
	}
	if meta.IsDefined("bus", "port") {
		cfg.Bus.Port = strings.TrimSpace(raw.Bus.Port)
	}
	if meta.IsDefined("bus", "baud") {
		cfg.Bus.Baud = raw.Bus.Baud
	}
	if meta.IsDefined("bus", "url") {
		cfg.Bus.URL = strings.TrimSpace(raw.Bus.URL)
	}
	if meta.IsDefined("bus", "username") {
		cfg.Bus.Username = strings.TrimSpace(raw.Bus.Username)
	}
	if meta.IsDefined("bus", "no_ssl_verify") {
		cfg.Bus.NoSSLVerify = raw.Bus.NoSSLVerify
	}

	if meta.IsDefined("controller", "runs") {
		cfg.Controller.Runs = raw.Controller.Runs
	}
	if meta.IsDefined("controller", "max_errors") {
		cfg.Controller.MaxErrors = raw.Controller.MaxErrors
	}
	if meta.IsDefined("controller", "timeout") {
		if cfg.Controller.Timeout, err = parseDuration("controller.timeout", raw.Controller.Timeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("controller", "targets") {
		cfg.Controller.Targets = nil
		for _, s := range raw.Controller.Targets {
			addr, err := bus.ParseAddress(s)
			if err != nil {
				return Config{}, fmt.Errorf("load framelink config: controller.targets: %w", err)
			}
			cfg.Controller.Targets = append(cfg.Controller.Targets, addr)
		}
	}
	if meta.IsDefined("controller", "seed") {
		cfg.Controller.Seed = raw.Controller.Seed
	}

	if meta.IsDefined("responder", "address") {
		if cfg.Responder.Address, err = bus.ParseAddress(raw.Responder.Address); err != nil {
			return Config{}, fmt.Errorf("load framelink config: responder.address: %w", err)
		}
	}
	if meta.IsDefined("responder", "indicator") {
		cfg.Responder.Indicator = strings.TrimSpace(raw.Responder.Indicator)
	}
	if meta.IsDefined("responder", "poll_interval") {
		if cfg.Responder.PollInterval, err = parseDuration("responder.poll_interval", raw.Responder.PollInterval); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("responder", "printout") {
		cfg.Responder.Printout = raw.Responder.Printout
	}

	if meta.IsDefined("bridge", "listen") {
		cfg.Bridge.Listen = strings.TrimSpace(raw.Bridge.Listen)
	}
	if meta.IsDefined("bridge", "serve_port") {
		cfg.Bridge.ServePort = strings.TrimSpace(raw.Bridge.ServePort)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load framelink config: %w", err)
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("load framelink config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("load framelink config: %s must not be negative", key)
	}
	return d, nil
}

// Validate checks value ranges and the bus selection
func (c Config) Validate() error {
	if !dataframe.ValidFieldCount(c.Fields) {
		return fmt.Errorf("fields must be %d-%d, got %d", dataframe.MinFields, dataframe.MaxFields, c.Fields)
	}
	if c.Controller.Runs <= 0 {
		return fmt.Errorf("controller.runs must be positive, got %d", c.Controller.Runs)
	}
	if c.Controller.MaxErrors < 0 {
		return fmt.Errorf("controller.max_errors must not be negative, got %d", c.Controller.MaxErrors)
	}
	if c.Bus.Baud <= 0 {
		return fmt.Errorf("bus.baud must be positive, got %d", c.Bus.Baud)
	}

	selected := 0
	for _, s := range []string{c.Bus.I2C, c.Bus.Port, c.Bus.URL} {
		if s != "" {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("only one of bus.i2c, bus.port and bus.url may be set")
	}

	switch c.Responder.Indicator {
	case "", responder.IndicatorNone, responder.IndicatorLED, responder.IndicatorRGB:
	default:
		return fmt.Errorf("unknown responder.indicator %q", c.Responder.Indicator)
	}
	return nil
}
