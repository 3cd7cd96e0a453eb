// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/framelink/pkg/bridge"
	"github.com/Thermoquad/framelink/pkg/bus"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("FRAMELINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenStream opens a serial or WebSocket byte stream based on the settings
func OpenStream() (bridge.Conn, string, error) {
	if cfg.Bus.URL != "" {
		password := ""
		if cfg.Bus.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := bridge.OpenWebSocket(cfg.Bus.URL, cfg.Bus.Username, password, cfg.Bus.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", cfg.Bus.URL), nil
	}

	if cfg.Bus.Port != "" {
		conn, err := bridge.OpenSerial(cfg.Bus.Port, cfg.Bus.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Bus.Port, cfg.Bus.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenBus opens the controller side of the bus: a local i2c-dev node, or a
// bridge client over serial or WebSocket
func OpenBus() (bus.Controller, io.Closer, string, error) {
	if cfg.Bus.I2C != "" {
		dev, err := bus.OpenI2C(cfg.Bus.I2C)
		if err != nil {
			return nil, nil, "", err
		}
		return dev, dev, fmt.Sprintf("I2C: %s", cfg.Bus.I2C), nil
	}

	if cfg.Bus.Port == "" && cfg.Bus.URL == "" {
		return nil, nil, "", fmt.Errorf("one of --i2c, --port or --url must be specified")
	}

	conn, info, err := OpenStream()
	if err != nil {
		return nil, nil, "", err
	}
	return bridge.NewClient(conn), conn, "Bridge " + info, nil
}
