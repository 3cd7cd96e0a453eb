// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package bus

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h
const i2cSlave = 0x0703

// I2CDev drives a Linux i2c-dev character device as the bus controller
type I2CDev struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenI2C opens an i2c-dev node such as /dev/i2c-1
func OpenI2C(path string) (*I2CDev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &I2CDev{path: path, f: f}, nil
}

// Path returns the device node path
func (d *I2CDev) Path() string {
	return d.path
}

func (d *I2CDev) selectAddress(addr Address) error {
	if d.f == nil {
		return ErrClosed
	}
	return unix.IoctlSetInt(int(d.f.Fd()), i2cSlave, int(addr))
}

// WriteFrame implements Controller
func (d *I2CDev) WriteFrame(ctx context.Context, addr Address, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "write", Addr: addr, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.selectAddress(addr); err != nil {
		return &TransportError{Op: "write", Addr: addr, Err: err}
	}
	n, err := d.f.Write(frame)
	if err != nil {
		return &TransportError{Op: "write", Addr: addr, Err: err}
	}
	if n != len(frame) {
		return &TransportError{Op: "write", Addr: addr, Err: ErrShortWrite}
	}
	return nil
}

// ReadStatusByte implements Controller
func (d *I2CDev) ReadStatusByte(ctx context.Context, addr Address) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, &TransportError{Op: "read", Addr: addr, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.selectAddress(addr); err != nil {
		return 0, &TransportError{Op: "read", Addr: addr, Err: err}
	}
	var buf [1]byte
	n, err := d.f.Read(buf[:])
	if err != nil {
		return 0, &TransportError{Op: "read", Addr: addr, Err: err}
	}
	if n != 1 {
		return 0, &TransportError{Op: "read", Addr: addr, Err: ErrNoDevice}
	}
	return buf[0], nil
}

// Scan implements Scanner. It reads one byte from every address in the scan
// range and lists those that answer.
func (d *I2CDev) Scan(ctx context.Context) ([]Address, error) {
	var found []Address
	for addr := ScanFirst; addr <= ScanLast; addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if _, err := d.ReadStatusByte(ctx, addr); err == nil {
			found = append(found, addr)
		}
	}
	return found, nil
}

// Close releases the device node
func (d *I2CDev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
