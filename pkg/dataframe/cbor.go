// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is the CBOR form of a decoded frame, used for capture files.
// Encoded as a 4-element array: [timestamp_us, fields, checksum_valid, raw]
type Record struct {
	_             struct{} `cbor:",toarray"`
	TimestampUS   int64
	Fields        []uint16
	ChecksumValid bool
	Raw           []byte
}

// NewRecord converts a frame to its capture record
func NewRecord(f *Frame) Record {
	return Record{
		TimestampUS:   f.timestamp.UnixMicro(),
		Fields:        f.fields,
		ChecksumValid: f.valid,
		Raw:           f.raw,
	}
}

// Frame rebuilds the frame described by the record. The checksum is taken
// from the raw bytes when they decode, otherwise it is left zero.
func (r Record) Frame() *Frame {
	f := &Frame{
		fields:    r.Fields,
		valid:     r.ChecksumValid,
		raw:       r.Raw,
		timestamp: time.UnixMicro(r.TimestampUS),
	}
	if decoded, err := Decode(r.Raw, len(r.Fields)); err == nil {
		f.checksum = decoded.checksum
		f.expected = decoded.expected
	}
	return f
}

// MarshalRecord encodes a frame as a CBOR record
func MarshalRecord(f *Frame) ([]byte, error) {
	data, err := cbor.Marshal(NewRecord(f))
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame record: %w", err)
	}
	return data, nil
}

// RecordWriter appends CBOR frame records to a stream
type RecordWriter struct {
	enc *cbor.Encoder
}

// NewRecordWriter creates a record writer on w
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{enc: cbor.NewEncoder(w)}
}

// Write appends one frame record
func (w *RecordWriter) Write(f *Frame) error {
	if err := w.enc.Encode(NewRecord(f)); err != nil {
		return fmt.Errorf("failed to write frame record: %w", err)
	}
	return nil
}

// ReadRecords decodes every record in r until EOF
func ReadRecords(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)

	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to decode frame record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
