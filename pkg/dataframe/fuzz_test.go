// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataframe

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomValues picks n field values, biased towards bytes that need escaping
func randomValues(rng *rand.Rand, n int) []uint16 {
	special := []byte{STX, ETX, Escape}
	values := make([]uint16, n)
	for i := range values {
		hi := byte(rng.Intn(256))
		lo := byte(rng.Intn(256))
		if rng.Intn(3) == 0 {
			hi = special[rng.Intn(len(special))]
		}
		if rng.Intn(3) == 0 {
			lo = special[rng.Intn(len(special))]
		}
		values[i] = uint16(hi)<<8 | uint16(lo)
	}
	return values
}

// ============================================================
// Round Trip Fuzz Tests
// ============================================================

func TestFuzz_RoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		n := MinFields + rng.Intn(MaxFields)
		values := randomValues(rng, n)
		encoded := EncodeFrame(values...)

		a, _ := NewAssembler(n)
		frames := feedAll(a, encoded)
		if len(frames) != 1 {
			t.Fatalf("round %d: n=%d values=%v encoded=% X: expected 1 frame, got %d", round, n, values, encoded, len(frames))
		}
		if !fieldsEqual(frames[0].Fields(), values) || !frames[0].ChecksumValid() {
			t.Fatalf("round %d: expected %v, got %v valid=%v (encoded % X)", round, values, frames[0].Fields(), frames[0].ChecksumValid(), encoded)
		}
	}
}

func TestFuzz_StreamWithNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for n := MinFields; n <= MaxFields; n++ {
		a, _ := NewAssembler(n)
		for round := 0; round < rounds/MaxFields; round++ {
			// Noise that never contains STX cannot fake a frame start
			noise := make([]byte, rng.Intn(20))
			for i := range noise {
				b := byte(rng.Intn(256))
				if b == STX || b == Escape {
					b = 0x00
				}
				noise[i] = b
			}
			feedAll(a, noise)

			values := randomValues(rng, n)
			frames := feedAll(a, EncodeFrame(values...))
			if len(frames) != 1 {
				t.Fatalf("n=%d round %d: expected 1 frame after noise % X, got %d", n, round, noise, len(frames))
			}
			if !fieldsEqual(frames[0].Fields(), values) || !frames[0].ChecksumValid() {
				t.Fatalf("n=%d round %d: expected %v, got %v valid=%v", n, round, values, frames[0].Fields(), frames[0].ChecksumValid())
			}
		}
	}
}

// ============================================================
// Checksum Sensitivity Fuzz Tests
// ============================================================

func TestFuzz_BitFlipDetected(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	checked := 0

	for round := 0; round < rounds; round++ {
		n := MinFields + rng.Intn(MaxFields)
		values := randomValues(rng, n)
		encoded := EncodeFrame(values...)

		pos := 1 + rng.Intn(len(encoded)-2)
		bit := byte(1) << uint(rng.Intn(8))
		flipped := encoded[pos] ^ bit

		// Only flips that keep the framing intact are guaranteed to reach the checksum
		if needsEscape(encoded[pos]) || needsEscape(flipped) || encoded[pos-1] == Escape {
			continue
		}

		corrupted := append([]byte(nil), encoded...)
		corrupted[pos] = flipped

		a, _ := NewAssembler(n)
		frames := feedAll(a, corrupted)
		if len(frames) != 1 {
			t.Fatalf("round %d: expected 1 frame from % X, got %d", round, corrupted, len(frames))
		}
		if frames[0].ChecksumValid() {
			t.Fatalf("round %d: bit flip at %d not detected (% X -> % X)", round, pos, encoded, corrupted)
		}
		checked++
	}

	if checked == 0 {
		t.Error("no bit flips were checked")
	}
}

// ============================================================
// Resync Fuzz Tests
// ============================================================

func TestFuzz_RandomBytesBounded(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for n := MinFields; n <= MaxFields; n++ {
		a, _ := NewAssembler(n)
		for i := 0; i < rounds*10; i++ {
			a.Feed(byte(rng.Intn(256)))
			if len(a.Buffered()) > MaxBuffer(n) {
				t.Fatalf("n=%d: buffer grew to %d (max %d)", n, len(a.Buffered()), MaxBuffer(n))
			}
		}
	}
}

// ============================================================
// Native Fuzz Targets
// ============================================================

func FuzzAssembler(f *testing.F) {
	f.Add(uint8(2), []byte{0x02, 0x00, 0x01, 0x01, 0x2C, 0x30, 0x03})
	f.Add(uint8(1), []byte{0x02, 0x5C, 0x02, 0x5C, 0x03, 0x07, 0x03})
	f.Add(uint8(4), []byte{0x5C, 0x5C, 0x03, 0x02, 0x02, 0x03})

	f.Fuzz(func(t *testing.T, fields uint8, data []byte) {
		n := MinFields + int(fields)%MaxFields
		a, _ := NewAssembler(n)
		for _, b := range data {
			if frame := a.Feed(b); frame != nil {
				if len(frame.Fields()) != n {
					t.Fatalf("frame has %d fields, want %d", len(frame.Fields()), n)
				}
				if len(a.Buffered()) != 0 {
					t.Fatal("buffer not cleared after frame")
				}
			}
			if len(a.Buffered()) > MaxBuffer(n) {
				t.Fatalf("buffer grew to %d (max %d)", len(a.Buffered()), MaxBuffer(n))
			}
		}
	})
}

func FuzzRoundTrip(f *testing.F) {
	f.Add(uint8(0), uint16(0x0203), uint16(0), uint16(0), uint16(0))
	f.Add(uint8(3), uint16(0x5C5C), uint16(0x0302), uint16(0xFFFF), uint16(0x005A))

	f.Fuzz(func(t *testing.T, fields uint8, v1, v2, v3, v4 uint16) {
		n := MinFields + int(fields)%MaxFields
		values := []uint16{v1, v2, v3, v4}[:n]

		frame, err := Decode(EncodeFrame(values...), n)
		if err != nil {
			t.Fatalf("Decode failed for %v: %v", values, err)
		}
		if !fieldsEqual(frame.Fields(), values) || !frame.ChecksumValid() {
			t.Fatalf("expected %v, got %v valid=%v", values, frame.Fields(), frame.ChecksumValid())
		}
	})
}
