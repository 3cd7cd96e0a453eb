// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import "time"

// Frame represents a decoded dataframe
type Frame struct {
	fields    []uint16
	valid     bool
	checksum  byte // transmitted
	expected  byte // recomputed over STX and fields
	raw       []byte
	timestamp time.Time
}

// NewFrame creates a frame from already decoded values
func NewFrame(fields []uint16, checksum, expected byte, raw []byte) *Frame {
	return &Frame{
		fields:    fields,
		valid:     checksum == expected,
		checksum:  checksum,
		expected:  expected,
		raw:       raw,
		timestamp: time.Now(),
	}
}

// Fields returns the decoded 16-bit field values
func (f *Frame) Fields() []uint16 {
	return f.fields
}

// ChecksumValid reports whether the transmitted checksum matched
func (f *Frame) ChecksumValid() bool {
	return f.valid
}

// Checksum returns the transmitted checksum byte
func (f *Frame) Checksum() byte {
	return f.checksum
}

// ExpectedChecksum returns the checksum recomputed by the receiver
func (f *Frame) ExpectedChecksum() byte {
	return f.expected
}

// Raw returns the escaped bytes from STX to ETX as they were received
func (f *Frame) Raw() []byte {
	return f.raw
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Status returns the status byte a responder reports for this frame
func (f *Frame) Status() Status {
	if f.valid {
		return StatusChecksumValid
	}
	return StatusChecksumInvalid
}
