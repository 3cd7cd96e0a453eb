// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/Thermoquad/framelink/pkg/registers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a scripted bus.Responder
type fakePort struct {
	rx      []byte
	pending bool
	replies []byte
}

func (p *fakePort) ByteAvailable() bool { return len(p.rx) > 0 }

func (p *fakePort) NextByte() byte {
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b
}

func (p *fakePort) StatusRequestPending() bool { return p.pending }

func (p *fakePort) Respond(b byte) {
	p.pending = false
	p.replies = append(p.replies, b)
}

// countingIndicator records flashes by color
type countingIndicator struct {
	red, green, blue int
}

func (c *countingIndicator) FlashRed() { c.red++ }
func (c *countingIndicator) FlashGreen() { c.green++ }
func (c *countingIndicator) FlashBlue() { c.blue++ }
func (c *countingIndicator) HeartBeat(n int, d time.Duration) {}

func newTestResponder(t *testing.T, port bus.Responder, fields int) (*Responder, *registers.Registers, *countingIndicator) {
	t.Helper()
	regs := registers.New(dataframe.MaxFields)
	ind := &countingIndicator{}
	r, err := New(port, regs, Config{
		Address:   0x41,
		Fields:    fields,
		Indicator: ind,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return r, regs, ind
}

func drain(r *Responder) {
	for r.Poll() {
	}
}

// ============================================================
// Poll Tests
// ============================================================

func TestResponder_ValidFramePublishes(t *testing.T) {
	port := &fakePort{rx: dataframe.EncodeFrame(1, 300)}
	r, regs, ind := newTestResponder(t, port, 2)

	drain(r)

	assert.Equal(t, []uint16{1, 300, 0, 0}, regs.Snapshot())
	assert.Equal(t, 1, ind.blue)
	assert.Equal(t, 0, ind.red)

	port.pending = true
	require.True(t, r.Poll())
	assert.Equal(t, []byte{byte(dataframe.StatusChecksumValid)}, port.replies)

	stats := r.Stats()
	assert.Equal(t, uint64(7), stats.Bytes)
	assert.Equal(t, uint64(1), stats.Valid)
	assert.Equal(t, uint64(1), stats.StatusReads)
}

func TestResponder_InvalidFrameKeepsRegisters(t *testing.T) {
	port := &fakePort{rx: []byte{0x02, 0x00, 0x01, 0x01, 0x2C, 0x31, 0x03}}
	r, regs, ind := newTestResponder(t, port, 2)
	require.NoError(t, regs.WriteField(0, 99))

	drain(r)

	assert.Equal(t, uint16(99), regs.Snapshot()[0])
	assert.Equal(t, 1, ind.red)

	port.pending = true
	r.Poll()
	assert.Equal(t, []byte{byte(dataframe.StatusChecksumInvalid)}, port.replies)
	assert.Equal(t, uint64(1), r.Stats().Invalid)
}

func TestResponder_StatusBeforeData(t *testing.T) {
	port := &fakePort{pending: true}
	r, _, _ := newTestResponder(t, port, 1)

	require.True(t, r.Poll())
	assert.Equal(t, []byte{byte(dataframe.StatusIncomplete)}, port.replies)
	assert.False(t, r.Poll(), "idle responder does no work")
}

func TestResponder_BytesBeforeStatus(t *testing.T) {
	port := &fakePort{rx: dataframe.EncodeFrame(7), pending: true}
	r, _, _ := newTestResponder(t, port, 1)

	// The whole frame is consumed before the pending read is answered
	drain(r)
	assert.Equal(t, []byte{byte(dataframe.StatusChecksumValid)}, port.replies)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&fakePort{}, registers.New(4), Config{Fields: 0})
	assert.Error(t, err)

	_, err = New(&fakePort{}, registers.New(1), Config{Fields: 2})
	assert.Error(t, err)
}

// ============================================================
// Run Tests
// ============================================================

func TestResponder_RunHalts(t *testing.T) {
	r, regs, _ := newTestResponder(t, &fakePort{}, 1)
	regs.WriteHalt(true)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("responder did not stop on halt")
	}
}

func TestResponder_RunCancelled(t *testing.T) {
	b := bus.NewSimBus()
	port, err := b.Attach(0x41)
	require.NoError(t, err)
	r, _, _ := newTestResponder(t, port, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("responder did not stop on cancel")
	}
}

func TestResponder_OverSimBus(t *testing.T) {
	b := bus.NewSimBus(bus.WithReadTimeout(time.Second))
	port, err := b.Attach(0x41)
	require.NoError(t, err)

	regs := registers.New(2)
	r, err := New(port, regs, Config{Address: 0x41, Fields: 2, Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.NoError(t, b.WriteFrame(ctx, 0x41, dataframe.EncodeFrame(0x0203, 0x5C5C)))
	status, err := b.ReadStatusByte(ctx, 0x41)
	require.NoError(t, err)
	assert.Equal(t, byte(dataframe.StatusChecksumValid), status)
	assert.Equal(t, []uint16{0x0203, 0x5C5C}, regs.Snapshot())
}

// ============================================================
// Indicator Tests
// ============================================================

func TestNewIndicator(t *testing.T) {
	var buf bytes.Buffer
	for _, kind := range []string{"", IndicatorNone, IndicatorLED, IndicatorRGB} {
		ind, err := NewIndicator(kind, &buf)
		require.NoError(t, err, "kind %q", kind)
		ind.FlashBlue()
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "●"))

	_, err := NewIndicator("neon", &buf)
	assert.Error(t, err)
}

func TestRGB_HeartBeat(t *testing.T) {
	var buf bytes.Buffer
	NewRGB(&buf).HeartBeat(2, 0)
	assert.Equal(t, 6, strings.Count(buf.String(), "●"))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestColorFunc(t *testing.T) {
	var got []Color
	ind := ColorFunc(func(c Color) { got = append(got, c) })
	ind.FlashRed()
	ind.FlashBlue()
	ind.HeartBeat(2, 0)
	assert.Equal(t, []Color{ColorRed, ColorBlue, ColorGreen, ColorGreen}, got)
	assert.Equal(t, "blue", ColorBlue.String())
}
