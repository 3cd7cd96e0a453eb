// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"bytes"
	"testing"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	if sum := Checksum(nil); sum != 0 {
		t.Errorf("checksum of empty data should be 0, got 0x%02X", sum)
	}
}

func TestChecksum_Wraps(t *testing.T) {
	data := []byte{0xFF, 0x02, 0x01}
	if sum := Checksum(data); sum != 0x02 {
		t.Errorf("expected 0x02, got 0x%02X", sum)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeFrame_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		values   []uint16
		expected []byte
	}{
		{
			name:     "two fields without stuffing",
			values:   []uint16{1, 300},
			expected: []byte{0x02, 0x00, 0x01, 0x01, 0x2C, 0x30, 0x03},
		},
		{
			name:     "one field with STX and ETX bytes",
			values:   []uint16{0x0203},
			expected: []byte{0x02, 0x5C, 0x02, 0x5C, 0x03, 0x07, 0x03},
		},
		{
			name:     "escape byte in field",
			values:   []uint16{0x5C00},
			expected: []byte{0x02, 0x5C, 0x5C, 0x00, 0x5E, 0x03},
		},
		{
			name:     "checksum needs escaping",
			values:   []uint16{0x005A},
			expected: []byte{0x02, 0x00, 0x5A, 0x5C, 0x5C, 0x03},
		},
		{
			name:     "four fields",
			values:   []uint16{0x0000, 0xFFFF, 0x1234, 0x0100},
			expected: []byte{0x02, 0x00, 0x00, 0xFF, 0xFF, 0x12, 0x34, 0x01, 0x00, 0x47, 0x03},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeFrame(tt.values...)
			if !bytes.Equal(encoded, tt.expected) {
				t.Errorf("expected % X, got % X", tt.expected, encoded)
			}
		})
	}
}

func TestEncodeFrame_Framing(t *testing.T) {
	encoded := EncodeFrame(0x0202, 0x0303)
	if encoded[0] != STX {
		t.Errorf("frame should start with STX (0x%02X), got 0x%02X", STX, encoded[0])
	}
	if encoded[len(encoded)-1] != ETX {
		t.Errorf("frame should end with ETX (0x%02X), got 0x%02X", ETX, encoded[len(encoded)-1])
	}

	// Every control byte between the delimiters must be escaped
	interior := encoded[1 : len(encoded)-1]
	for i := 0; i < len(interior); i++ {
		if interior[i] == Escape {
			i++
			continue
		}
		if interior[i] == STX || interior[i] == ETX {
			t.Errorf("unescaped control byte 0x%02X at interior offset %d", interior[i], i)
		}
	}
}

func TestEncodeFrame_MaxLength(t *testing.T) {
	for n := MinFields; n <= MaxFields; n++ {
		values := make([]uint16, n)
		for i := range values {
			values[i] = 0x5C5C
		}
		encoded := EncodeFrame(values...)
		if len(encoded) > MaxFrameSize(n) {
			t.Errorf("n=%d: frame length %d exceeds bound %d", n, len(encoded), MaxFrameSize(n))
		}
	}
}

func TestNewEncoder_InvalidFieldCount(t *testing.T) {
	for _, n := range []int{-1, 0, 5} {
		if _, err := NewEncoder(n); err == nil {
			t.Errorf("expected error for field count %d", n)
		}
	}
}

func TestEncoder_CountMismatch(t *testing.T) {
	enc, err := NewEncoder(2)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if _, err := enc.Encode([]uint16{1}); err == nil {
		t.Error("expected error for too few values")
	}
	if _, err := enc.Encode([]uint16{1, 2, 3}); err == nil {
		t.Error("expected error for too many values")
	}

	encoded, err := enc.Encode([]uint16{1, 300})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(encoded, EncodeFrame(1, 300)) {
		t.Errorf("Encoder and EncodeFrame disagree: % X vs % X", encoded, EncodeFrame(1, 300))
	}
}

// ============================================================
// Byte Stuffing Tests
// ============================================================

func TestUnstuffBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{"no escapes", []byte{0x01, 0x02, 0x03}, []byte{0x01, 0x02, 0x03}},
		{"escaped STX", []byte{0x5C, 0x02}, []byte{0x02}},
		{"escaped escape", []byte{0x5C, 0x5C}, []byte{0x5C}},
		{"escaped escape then ETX", []byte{0x5C, 0x5C, 0x03}, []byte{0x5C, 0x03}},
		{"trailing lone escape", []byte{0x01, 0x5C}, []byte{0x01}},
		{"empty", []byte{}, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnstuffBytes(tt.input)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("expected % X, got % X", tt.expected, got)
			}
		})
	}
}

func TestStuffUnstuff_RoundTrip(t *testing.T) {
	data := []byte{0x00, 0x02, 0x03, 0x5C, 0x5C, 0xFF, 0x02}
	got := UnstuffBytes(stuffBytes(data))
	if !bytes.Equal(got, data) {
		t.Errorf("expected % X, got % X", data, got)
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestParseHex(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
	}{
		{"02 00 01 03", []byte{0x02, 0x00, 0x01, 0x03}},
		{"0x02,0x5c,0x03", []byte{0x02, 0x5C, 0x03}},
		{"02005C03", []byte{0x02, 0x00, 0x5C, 0x03}},
		{"", nil},
	}

	for _, tt := range tests {
		got, err := ParseHex(tt.input)
		if err != nil {
			t.Errorf("ParseHex(%q) failed: %v", tt.input, err)
			continue
		}
		if !bytes.Equal(got, tt.expected) {
			t.Errorf("ParseHex(%q): expected % X, got % X", tt.input, tt.expected, got)
		}
	}

	if _, err := ParseHex("abc"); err == nil {
		t.Error("expected error for odd length token")
	}
	if _, err := ParseHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0x02, 0x5C, 0x03}); got != "02 5C 03" {
		t.Errorf("unexpected hex rendering %q", got)
	}
}
