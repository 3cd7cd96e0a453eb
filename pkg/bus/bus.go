// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bus defines the two-wire bus contract used by the dataframe
// controller and responders, plus drivers that implement it.
package bus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address is a 7-bit responder address
type Address uint8

// MaxAddress is the highest 7-bit address
const MaxAddress Address = 0x7F

// String renders the address in hex
func (a Address) String() string {
	return fmt.Sprintf("0x%02X", uint8(a))
}

// ParseAddress parses a decimal or 0x-prefixed hex address
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid bus address %q: %w", s, err)
	}
	if Address(v) > MaxAddress {
		return 0, fmt.Errorf("bus address %q out of 7-bit range", s)
	}
	return Address(v), nil
}

// Transport failures
var (
	ErrNoDevice    = errors.New("no device at address")
	ErrTimeout     = errors.New("bus timeout")
	ErrClosed      = errors.New("bus closed")
	ErrShortWrite  = errors.New("short write")
	ErrUnsupported = errors.New("bus driver not supported on this platform")
)

// TransportError reports a failed bus transaction
type TransportError struct {
	Op   string
	Addr Address
	Err  error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("bus %s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a bus transport failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Controller is the controller side of the bus.
type Controller interface {
	// WriteFrame writes an encoded frame to the responder at addr.
	WriteFrame(ctx context.Context, addr Address, frame []byte) error
	// ReadStatusByte reads the one-byte status from the responder at addr.
	ReadStatusByte(ctx context.Context, addr Address) (byte, error)
}

// Responder is the responder side of the bus. Every method is a poll and
// never blocks.
type Responder interface {
	ByteAvailable() bool
	NextByte() byte
	StatusRequestPending() bool
	Respond(b byte)
}

// Scanner is a Controller that can list the responders present on the bus
type Scanner interface {
	Scan(ctx context.Context) ([]Address, error)
}

// Scan range for 7-bit addresses, skipping the reserved blocks
const (
	ScanFirst Address = 0x08
	ScanLast  Address = 0x77
)
