// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package responder runs the receive side of the dataframe link. It feeds
// bus bytes into an assembler, answers status reads with the assembler's
// status and publishes valid frames into shared registers.
package responder

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/Thermoquad/framelink/pkg/registers"
	"github.com/rs/zerolog"
)

// Config configures a Responder
type Config struct {
	Address      bus.Address
	Fields       int
	PollInterval time.Duration // idle sleep between polls; zero yields instead
	Indicator    Indicator
	Logger       zerolog.Logger
	OnFrame      func(*dataframe.Frame) // called from the service goroutine
}

// Stats counts responder activity
type Stats struct {
	Bytes       uint64
	Valid       uint64
	Invalid     uint64
	StatusReads uint64
}

// Responder is the receive service for one bus address
type Responder struct {
	port bus.Responder
	regs *registers.Registers
	asm  *dataframe.Assembler
	cfg  Config

	bytes       atomic.Uint64
	valid       atomic.Uint64
	invalid     atomic.Uint64
	statusReads atomic.Uint64
}

// New creates a responder reading from port and publishing to regs
func New(port bus.Responder, regs *registers.Registers, cfg Config) (*Responder, error) {
	asm, err := dataframe.NewAssembler(cfg.Fields)
	if err != nil {
		return nil, err
	}
	if regs.Len() < cfg.Fields {
		return nil, fmt.Errorf("registers hold %d fields, need %d", regs.Len(), cfg.Fields)
	}
	if cfg.Indicator == nil {
		cfg.Indicator = Nop{}
	}

	return &Responder{
		port: port,
		regs: regs,
		asm:  asm,
		cfg:  cfg,
	}, nil
}

// Stats returns a snapshot of the counters. Safe from any goroutine.
func (r *Responder) Stats() Stats {
	return Stats{
		Bytes:       r.bytes.Load(),
		Valid:       r.valid.Load(),
		Invalid:     r.invalid.Load(),
		StatusReads: r.statusReads.Load(),
	}
}

// Poll runs one service step and reports whether it did any work.
// Incoming bytes take priority over a pending status read.
func (r *Responder) Poll() bool {
	if r.port.ByteAvailable() {
		r.bytes.Add(1)
		if frame := r.asm.Feed(r.port.NextByte()); frame != nil {
			r.handleFrame(frame)
		}
		return true
	}

	if r.port.StatusRequestPending() {
		status := r.asm.Status()
		r.statusReads.Add(1)
		r.port.Respond(byte(status))
		if status == dataframe.StatusIncomplete {
			r.cfg.Logger.Debug().
				Stringer("address", r.cfg.Address).
				Hex("buffered", r.asm.Buffered()).
				Msg("status read with incomplete data")
		}
		return true
	}

	return false
}

func (r *Responder) handleFrame(frame *dataframe.Frame) {
	if frame.ChecksumValid() {
		r.valid.Add(1)
		r.regs.Publish(frame.Fields())
		r.cfg.Indicator.FlashBlue()
		r.cfg.Logger.Debug().
			Stringer("address", r.cfg.Address).
			Interface("fields", frame.Fields()).
			Msg("received data")
	} else {
		r.invalid.Add(1)
		r.cfg.Indicator.FlashRed()
		r.cfg.Logger.Warn().
			Stringer("address", r.cfg.Address).
			Hex("raw", frame.Raw()).
			Uint8("checksum", frame.Checksum()).
			Uint8("expected", frame.ExpectedChecksum()).
			Msg("checksum error")
	}

	if r.cfg.OnFrame != nil {
		r.cfg.OnFrame(frame)
	}
}

// Run polls until the halt flag is set or ctx is done. A halt returns nil.
func (r *Responder) Run(ctx context.Context) error {
	r.cfg.Logger.Info().
		Stringer("address", r.cfg.Address).
		Int("fields", r.cfg.Fields).
		Msg("responder started")

	for {
		if r.regs.ReadHalt() {
			r.cfg.Logger.Info().Stringer("address", r.cfg.Address).Msg("responder halted")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if r.Poll() {
			continue
		}
		if r.cfg.PollInterval > 0 {
			time.Sleep(r.cfg.PollInterval)
		} else {
			runtime.Gosched()
		}
	}
}
