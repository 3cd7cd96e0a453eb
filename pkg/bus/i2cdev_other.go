// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package bus

import (
	"context"
	"fmt"
)

// I2CDev is only available on Linux
type I2CDev struct{}

// OpenI2C always fails outside Linux
func OpenI2C(path string) (*I2CDev, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

// Path returns an empty string
func (d *I2CDev) Path() string {
	return ""
}

// WriteFrame implements Controller
func (d *I2CDev) WriteFrame(ctx context.Context, addr Address, frame []byte) error {
	return &TransportError{Op: "write", Addr: addr, Err: ErrUnsupported}
}

// ReadStatusByte implements Controller
func (d *I2CDev) ReadStatusByte(ctx context.Context, addr Address) (byte, error) {
	return 0, &TransportError{Op: "read", Addr: addr, Err: ErrUnsupported}
}

// Scan implements Scanner
func (d *I2CDev) Scan(ctx context.Context) ([]Address, error) {
	return nil, ErrUnsupported
}

// Close implements io.Closer
func (d *I2CDev) Close() error {
	return nil
}
