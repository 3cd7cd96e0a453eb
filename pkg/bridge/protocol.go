// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge carries bus transactions over a byte stream, so a
// controller can drive a bus attached to another machine. Requests and
// replies are CBOR arrays written back to back on the stream.
package bridge

import (
	"errors"

	"github.com/Thermoquad/framelink/pkg/bus"
)

// Operations
const (
	OpWrite uint8 = 1
	OpRead  uint8 = 2
	OpScan  uint8 = 3
)

// Reply error codes
const (
	CodeOK       uint8 = 0
	CodeNoDevice uint8 = 1
	CodeTimeout  uint8 = 2
	CodeClosed   uint8 = 3
	CodeBadOp    uint8 = 4
	CodeNoScan   uint8 = 5
	CodeOther    uint8 = 255
)

// Server side failures
var (
	ErrBadOp  = errors.New("unknown bridge operation")
	ErrNoScan = errors.New("bridged bus cannot be scanned")
)

// Request is one bus transaction sent to a Server
type Request struct {
	_     struct{} `cbor:",toarray"`
	ID    uint32
	Op    uint8
	Addr  uint8
	Frame []byte
}

// Reply answers the Request with the same ID
type Reply struct {
	_       struct{} `cbor:",toarray"`
	ID      uint32
	Status  uint8
	Code    uint8
	Message string
	Found   []byte // OpScan addresses
}

// errorCode maps a transaction error to its wire code
func errorCode(err error) uint8 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, bus.ErrNoDevice):
		return CodeNoDevice
	case errors.Is(err, bus.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, bus.ErrClosed):
		return CodeClosed
	case errors.Is(err, ErrBadOp):
		return CodeBadOp
	case errors.Is(err, ErrNoScan):
		return CodeNoScan
	default:
		return CodeOther
	}
}

// remoteError rebuilds an error from a reply so errors.Is keeps working
// across the bridge
type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string {
	return "remote: " + e.message
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}

func replyError(rep Reply) error {
	var sentinel error
	switch rep.Code {
	case CodeOK:
		return nil
	case CodeNoDevice:
		sentinel = bus.ErrNoDevice
	case CodeTimeout:
		sentinel = bus.ErrTimeout
	case CodeClosed:
		sentinel = bus.ErrClosed
	case CodeBadOp:
		sentinel = ErrBadOp
	case CodeNoScan:
		sentinel = ErrNoScan
	}
	return &remoteError{sentinel: sentinel, message: rep.Message}
}
