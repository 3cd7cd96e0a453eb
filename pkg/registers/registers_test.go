// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package registers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisters_FieldReadWrite(t *testing.T) {
	r := New(4)
	require.Equal(t, 4, r.Len())

	for i := 0; i < 4; i++ {
		v, err := r.ReadField(i)
		require.NoError(t, err)
		assert.Zero(t, v)
	}

	require.NoError(t, r.WriteField(2, 0xBEEF))
	v, err := r.ReadField(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), v)

	// Last write wins
	require.NoError(t, r.WriteField(2, 7))
	v, _ = r.ReadField(2)
	assert.Equal(t, uint16(7), v)
}

func TestRegisters_FieldIndexOutOfRange(t *testing.T) {
	r := New(2)
	assert.ErrorIs(t, r.WriteField(2, 1), ErrFieldIndex)
	assert.ErrorIs(t, r.WriteField(-1, 1), ErrFieldIndex)

	_, err := r.ReadField(5)
	assert.ErrorIs(t, err, ErrFieldIndex)
}

func TestRegisters_Halt(t *testing.T) {
	r := New(1)
	assert.False(t, r.ReadHalt())
	r.WriteHalt(true)
	assert.True(t, r.ReadHalt())
	r.WriteHalt(false)
	assert.False(t, r.ReadHalt())
}

func TestRegisters_PublishSnapshot(t *testing.T) {
	r := New(3)
	r.Publish([]uint16{1, 2, 3, 4})
	assert.Equal(t, []uint16{1, 2, 3}, r.Snapshot())

	r.Publish([]uint16{9})
	assert.Equal(t, []uint16{9, 2, 3}, r.Snapshot())
}

func TestRegisters_ConcurrentAccess(t *testing.T) {
	r := New(2)
	const writes = 1000

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			// Both bytes carry the same value so a torn write would be visible
			v := uint16(i%256)<<8 | uint16(i%256)
			_ = r.WriteField(0, v)
			_ = r.WriteField(1, v)
		}
		r.WriteHalt(true)
	}()

	go func() {
		defer wg.Done()
		for !r.ReadHalt() {
			for i := 0; i < 2; i++ {
				v, err := r.ReadField(i)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, v>>8, v&0xFF, "torn value 0x%04X", v)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for !r.ReadHalt() {
			for _, v := range r.Snapshot() {
				assert.Equal(t, v>>8, v&0xFF, "torn value 0x%04X", v)
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, []uint16{uint16(writes%256)<<8 | uint16(writes%256), uint16(writes%256)<<8 | uint16(writes%256)}, r.Snapshot())
}
