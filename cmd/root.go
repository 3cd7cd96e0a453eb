// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/Thermoquad/framelink/internal/config"
	"github.com/Thermoquad/framelink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	fieldCount int
	logLevel   string

	// I2C bus flag
	i2cDevice string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Resolved by the root pre-run
	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "framelink",
	Short: "STX/ETX dataframe link over a shared two-wire bus",
	Long: `Framelink - A CLI tool for sending, receiving and analyzing STX/ETX dataframes.

A controller pushes 1 to 4 sixteen-bit fields per frame to responders on a
shared bus and reads back one status byte per transaction:
  0 - checksum invalid
  1 - checksum valid
  2 - frame incomplete

Bus connection modes:
  I2C:       --i2c /dev/i2c-1
  Serial:    --port /dev/ttyUSB0 [--baud 115200]   (remote bridge)
  WebSocket: --url ws://host/path [--username user] (remote bridge)

Settings can also come from a TOML file (--config). Flags that are set
explicitly override the file.

For WebSocket authentication, the password is read from the FRAMELINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().IntVarP(&fieldCount, "fields", "n", 2, "Number of 16-bit fields per dataframe (1-4)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// I2C bus flag
	rootCmd.PersistentFlags().StringVar(&i2cDevice, "i2c", "", "Linux i2c-dev node (e.g. /dev/i2c-1)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadSettings merges the config file with explicitly set flags and sets up logging
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg = config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("fields") {
		cfg.Fields = fieldCount
	}
	if flags.Changed("i2c") {
		cfg.Bus.I2C = i2cDevice
	}
	if flags.Changed("port") {
		cfg.Bus.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Bus.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Bus.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Bus.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Bus.NoSSLVerify = wsNoSSLVerify
	}

	level, err := logging.ParseLevel(logging.ResolveLevel(logLevel, cfg.LogLevel))
	if err != nil {
		return err
	}
	logger = logging.New(os.Stderr, level)

	return cfg.Validate()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
