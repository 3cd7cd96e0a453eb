// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"encoding/binary"
	"fmt"
)

// Encoder encodes dataframes with a fixed field count.
type Encoder struct {
	fields int
}

// NewEncoder creates an encoder for frames of n fields.
func NewEncoder(n int) (*Encoder, error) {
	if !ValidFieldCount(n) {
		return nil, fmt.Errorf("invalid field count %d (must be %d-%d)", n, MinFields, MaxFields)
	}
	return &Encoder{fields: n}, nil
}

// Fields returns the configured field count
func (e *Encoder) Fields() int {
	return e.fields
}

// Encode encodes values to wire format.
func (e *Encoder) Encode(values []uint16) ([]byte, error) {
	if len(values) != e.fields {
		return nil, fmt.Errorf("expected %d fields, got %d", e.fields, len(values))
	}
	return EncodeFrame(values...), nil
}

// EncodeFrame creates a complete wire-formatted frame carrying values.
// The field count is len(values); the caller keeps it within MinFields-MaxFields.
func EncodeFrame(values ...uint16) []byte {
	// STX + big-endian fields + checksum
	data := make([]byte, 1+FieldSize*len(values), 2+FieldSize*len(values))
	data[0] = STX
	for i, v := range values {
		binary.BigEndian.PutUint16(data[1+FieldSize*i:], v)
	}
	data = append(data, Checksum(data))

	// STX is never escaped, only what follows it
	stuffed := stuffBytes(data[1:])

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, STX)
	frame = append(frame, stuffed...)
	frame = append(frame, ETX)

	return frame
}

// needsEscape reports whether b collides with a control byte
func needsEscape(b byte) bool {
	return b == STX || b == ETX || b == Escape
}

// stuffBytes prefixes every STX, ETX and escape byte with an escape.
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if needsEscape(b) {
			result = append(result, Escape)
		}
		result = append(result, b)
	}

	return result
}

// UnstuffBytes removes byte stuffing: every escape followed by a byte becomes
// that byte. A trailing lone escape is dropped.
func UnstuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data))

	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == Escape {
			if i+1 >= len(data) {
				break
			}
			i++
			b = data[i]
		}
		result = append(result, b)
	}

	return result
}
