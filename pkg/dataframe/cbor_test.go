// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestRecordWriter_ReadRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewRecordWriter(&buf)

	inputs := [][]byte{
		EncodeFrame(1, 300),
		{0x02, 0x00, 0x01, 0x01, 0x2C, 0x31, 0x03},
	}
	var frames []*Frame
	for _, input := range inputs {
		f, err := Decode(input, 2)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		frames = append(frames, f)
		if err := w.Write(f); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	records, err := ReadRecords(&buf)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(records) != len(frames) {
		t.Fatalf("expected %d records, got %d", len(frames), len(records))
	}

	for i, rec := range records {
		f := rec.Frame()
		if !fieldsEqual(f.Fields(), frames[i].Fields()) {
			t.Errorf("record %d: expected fields %v, got %v", i, frames[i].Fields(), f.Fields())
		}
		if f.ChecksumValid() != frames[i].ChecksumValid() {
			t.Errorf("record %d: checksum flag mismatch", i)
		}
		if f.Checksum() != frames[i].Checksum() || f.ExpectedChecksum() != frames[i].ExpectedChecksum() {
			t.Errorf("record %d: checksum bytes not restored", i)
		}
		if !bytes.Equal(f.Raw(), inputs[i]) {
			t.Errorf("record %d: expected raw % X, got % X", i, inputs[i], f.Raw())
		}
		if f.Timestamp().UnixMicro() != frames[i].Timestamp().UnixMicro() {
			t.Errorf("record %d: timestamp not preserved", i)
		}
	}
}

func TestMarshalRecord_ArrayLayout(t *testing.T) {
	f, err := Decode(EncodeFrame(7), 1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	data, err := MarshalRecord(f)
	if err != nil {
		t.Fatalf("MarshalRecord failed: %v", err)
	}

	var generic []interface{}
	if err := cbor.Unmarshal(data, &generic); err != nil {
		t.Fatalf("record is not a CBOR array: %v", err)
	}
	if len(generic) != 4 {
		t.Errorf("expected 4-element array, got %d elements", len(generic))
	}
}

func TestReadRecords_Truncated(t *testing.T) {
	f, _ := Decode(EncodeFrame(7), 1)
	data, _ := MarshalRecord(f)

	_, err := ReadRecords(bytes.NewReader(data[:len(data)-2]))
	if err == nil {
		t.Fatal("expected error for truncated record")
	}
	if !strings.Contains(err.Error(), "record 0") {
		t.Errorf("error should name the failing record, got %v", err)
	}
}

func TestFormatFrame(t *testing.T) {
	f, _ := Decode([]byte{0x02, 0x00, 0x01, 0x01, 0x2C, 0x31, 0x03}, 2)
	out := FormatFrame(f)
	for _, want := range []string{"CHECKSUM_INVALID", "expected 0x30", "F1:", "F2:   300", "Raw: 02 00 01 01 2C 31 03"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted frame missing %q:\n%s", want, out)
		}
	}
}
