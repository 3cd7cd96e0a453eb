// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dataframe implements the STX/ETX dataframe protocol used to move
// fixed-shape sets of 16-bit fields from a bus controller to its responders.
//
// A frame on the wire is
//
//	STX | E(F1_hi F1_lo ... Fn_hi Fn_lo CHK) | ETX
//
// where E() prefixes every STX, ETX or escape byte with a literal escape and
// CHK is the sum of STX and all field bytes modulo 256. The field count n is
// fixed per deployment and must be agreed out of band by both peers.
package dataframe

// Protocol framing bytes
const (
	STX    = 0x02
	ETX    = 0x03
	Escape = 0x5C
)

// Field count limits
const (
	MinFields = 1
	MaxFields = 4
	FieldSize = 2
)

// Status is the single byte a responder returns to a status read.
type Status byte

// Status values
const (
	StatusChecksumInvalid Status = 0
	StatusChecksumValid   Status = 1
	StatusIncomplete      Status = 2
)

// String returns the human-readable name for a status byte
func (s Status) String() string {
	switch s {
	case StatusChecksumInvalid:
		return "CHECKSUM_INVALID"
	case StatusChecksumValid:
		return "CHECKSUM_VALID"
	case StatusIncomplete:
		return "INCOMPLETE"
	default:
		return "UNKNOWN"
	}
}

// ValidFieldCount reports whether n is a supported field count
func ValidFieldCount(n int) bool {
	return n >= MinFields && n <= MaxFields
}

// MaxBuffer returns the receive buffer bound for n fields
func MaxBuffer(n int) int {
	return 2 + 4*n
}

// MaxFrameSize returns the longest possible escaped frame for n fields,
// reached when every interior byte needs an escape.
func MaxFrameSize(n int) int {
	return 2 + 2*(FieldSize*n+1)
}

// minBuffered is the shortest buffer worth scanning for a frame
func minBuffered(n int) int {
	return 2 + FieldSize*n
}

// minClean is the length of an unescaped frame: STX, fields, CHK and ETX
func minClean(n int) int {
	return 3 + FieldSize*n
}
