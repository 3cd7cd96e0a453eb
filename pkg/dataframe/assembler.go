// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"encoding/binary"
	"fmt"
)

// Assembler finds dataframes in a byte stream fed one byte at a time.
//
// It keeps a sliding window of at most MaxBuffer(n) raw bytes. Every byte
// triggers a scan of the window for the latest unescaped STX followed by an
// unescaped ETX. A closed frame, valid or not, empties the window. Without one
// the oldest byte is dropped once the window is full, so a start byte still in
// the tail can be found later.
//
// An Assembler is owned by a single goroutine.
type Assembler struct {
	fields    int
	maxBuffer int
	buffer    []byte
	last      *Frame
	status    Status
}

// NewAssembler creates an assembler for frames of n fields
func NewAssembler(n int) (*Assembler, error) {
	if !ValidFieldCount(n) {
		return nil, fmt.Errorf("invalid field count %d (must be %d-%d)", n, MinFields, MaxFields)
	}
	return &Assembler{
		fields:    n,
		maxBuffer: MaxBuffer(n),
		buffer:    make([]byte, 0, MaxBuffer(n)+1),
		status:    StatusIncomplete,
	}, nil
}

// Fields returns the configured field count
func (a *Assembler) Fields() int {
	return a.fields
}

// Reset drops buffered bytes and the last result
func (a *Assembler) Reset() {
	a.buffer = a.buffer[:0]
	a.last = nil
	a.status = StatusIncomplete
}

// Buffered returns the raw bytes accumulated since the last closed frame
func (a *Assembler) Buffered() []byte {
	return a.buffer
}

// Last returns the most recently closed frame, or nil before the first one
func (a *Assembler) Last() *Frame {
	return a.last
}

// Status returns the status byte for a status read: the outcome of the most
// recently fed byte. StatusIncomplete until a byte closes a frame, and again
// as soon as the next byte arrives.
func (a *Assembler) Status() Status {
	return a.status
}

// Feed appends one byte and returns the frame it closed, or nil
func (a *Assembler) Feed(b byte) *Frame {
	a.buffer = append(a.buffer, b)

	frame := a.scan()
	if frame != nil {
		a.buffer = a.buffer[:0]
		a.last = frame
		a.status = frame.Status()
		return frame
	}

	a.status = StatusIncomplete
	if len(a.buffer) > a.maxBuffer {
		// Slide the window by one, keeping the newest bytes
		n := copy(a.buffer, a.buffer[1:])
		a.buffer = a.buffer[:n]
	}
	return nil
}

// scan looks for a closed frame in the buffer
func (a *Assembler) scan() *Frame {
	buf := a.buffer
	if len(buf) < minBuffered(a.fields) {
		return nil
	}

	start := -1
	for i, b := range buf {
		switch {
		case b == STX && !escaped(buf, i):
			start = i

		case b == ETX && start >= 0 && !escaped(buf, i):
			stop := i
			// A doubled ETX at the tail belongs to the frame
			if i == len(buf)-2 && buf[i+1] == ETX {
				stop++
			}
			if stop <= start+FieldSize*a.fields {
				continue
			}
			raw := buf[start : stop+1]
			frame, err := DecodeClean(UnstuffBytes(raw), a.fields)
			if err != nil {
				continue
			}
			frame.raw = append([]byte(nil), raw...)
			return frame
		}
	}

	return nil
}

// escaped reports whether buf[i] is preceded by an odd run of escape bytes.
// An even run is a sequence of stuffed literal escapes, so the byte is not
// escaped.
func escaped(buf []byte, i int) bool {
	run := 0
	for j := i - 1; j >= 0 && buf[j] == Escape; j-- {
		run++
	}
	return run%2 == 1
}

// DecodeClean extracts n fields from an unescaped frame
// (STX, fields, checksum, ETX) and checks its checksum.
func DecodeClean(clean []byte, n int) (*Frame, error) {
	if len(clean) < minClean(n) {
		return nil, fmt.Errorf("frame too short: %d bytes (need %d)", len(clean), minClean(n))
	}

	fields := make([]uint16, n)
	for i := range fields {
		fields[i] = binary.BigEndian.Uint16(clean[1+FieldSize*i:])
	}

	checksum := clean[len(clean)-2]
	expected := Checksum(clean[:len(clean)-2])

	return NewFrame(fields, checksum, expected, nil), nil
}

// Decode decodes one complete escaped frame of n fields.
// It is a convenience around a fresh Assembler.
func Decode(data []byte, n int) (*Frame, error) {
	a, err := NewAssembler(n)
	if err != nil {
		return nil, err
	}
	for _, b := range data {
		if frame := a.Feed(b); frame != nil {
			return frame, nil
		}
	}
	return nil, fmt.Errorf("no complete frame in %d bytes", len(data))
}
