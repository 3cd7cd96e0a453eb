// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package registers holds the state shared between a responder's receive
// loop and the code consuming its decoded fields.
//
// Every cell has its own lock and holds exactly one value. Writers overwrite,
// readers see the latest write, and nothing is queued. There is no ordering
// or atomicity across cells.
package registers

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFieldIndex is returned for a field index outside the configured count
var ErrFieldIndex = errors.New("field index out of range")

// Register is a single 16-bit cell guarded by its own lock
type Register struct {
	mu    sync.Mutex
	value uint16
}

// Load returns the current value
func (r *Register) Load() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Store replaces the current value
func (r *Register) Store(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
}

// Flag is a boolean cell guarded by its own lock
type Flag struct {
	mu  sync.Mutex
	set bool
}

// Load returns the current flag value
func (f *Flag) Load() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Store replaces the current flag value
func (f *Flag) Store(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = v
}

// Registers is the set of field cells plus the halt flag. It is allocated
// once at startup and handed to both execution contexts.
type Registers struct {
	fields []Register
	halt   Flag
}

// New creates n zeroed field registers and a cleared halt flag
func New(n int) *Registers {
	return &Registers{fields: make([]Register, n)}
}

// Len returns the number of field registers
func (r *Registers) Len() int {
	return len(r.fields)
}

// WriteField stores value in field i
func (r *Registers) WriteField(i int, value uint16) error {
	if i < 0 || i >= len(r.fields) {
		return fmt.Errorf("write field %d of %d: %w", i, len(r.fields), ErrFieldIndex)
	}
	r.fields[i].Store(value)
	return nil
}

// ReadField returns the latest value of field i
func (r *Registers) ReadField(i int) (uint16, error) {
	if i < 0 || i >= len(r.fields) {
		return 0, fmt.Errorf("read field %d of %d: %w", i, len(r.fields), ErrFieldIndex)
	}
	return r.fields[i].Load(), nil
}

// WriteHalt sets or clears the halt flag
func (r *Registers) WriteHalt(v bool) {
	r.halt.Store(v)
}

// ReadHalt returns the halt flag
func (r *Registers) ReadHalt() bool {
	return r.halt.Load()
}

// Publish writes values to the field registers one cell at a time.
// Extra values beyond the register count are ignored.
func (r *Registers) Publish(values []uint16) {
	for i, v := range values {
		if i >= len(r.fields) {
			return
		}
		r.fields[i].Store(v)
	}
}

// Snapshot reads every field register one cell at a time. A concurrent
// Publish may be observed partially applied.
func (r *Registers) Snapshot() []uint16 {
	out := make([]uint16, len(r.fields))
	for i := range r.fields {
		out[i] = r.fields[i].Load()
	}
	return out
}
