// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s fields=%d chk=0x%02X", timestamp, f.Status(), len(f.fields), f.checksum)
	if !f.valid {
		result += fmt.Sprintf(" (expected 0x%02X)", f.expected)
	}
	result += "\n"

	for i, v := range f.fields {
		result += fmt.Sprintf("  F%d: %5d (0x%04X)\n", i+1, v, v)
	}
	if len(f.raw) > 0 {
		result += "  Raw: " + FormatHex(f.raw) + "\n"
	}

	return result
}

// FormatHex renders bytes as space separated hex pairs
func FormatHex(data []byte) string {
	var s strings.Builder
	for i, b := range data {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%02X", b)
	}
	return s.String()
}

// ParseHex parses hex bytes separated by spaces, commas or nothing.
// An optional 0x prefix on each byte is accepted.
func ParseHex(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})

	var out []byte
	for _, field := range fields {
		field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
		if len(field)%2 != 0 {
			return nil, fmt.Errorf("odd length hex token %q", field)
		}
		for i := 0; i < len(field); i += 2 {
			var b byte
			if _, err := fmt.Sscanf(field[i:i+2], "%02x", &b); err != nil {
				return nil, fmt.Errorf("invalid hex byte %q: %w", field[i:i+2], err)
			}
			out = append(out, b)
		}
	}

	return out, nil
}
