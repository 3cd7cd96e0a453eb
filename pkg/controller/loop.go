// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller drives the send side of the dataframe link. Each round
// sends one dataset to every target and reads back its status byte.
package controller

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/rs/zerolog"
)

// Status bytes returned by a responder
const (
	StatusChecksumError = byte(dataframe.StatusChecksumInvalid)
	StatusAccepted      = byte(dataframe.StatusChecksumValid)
	StatusIncomplete    = byte(dataframe.StatusIncomplete)
)

// Target is a labelled responder on the bus
type Target struct {
	Name    string
	Address bus.Address
}

// LabelTargets names addresses A, B, C, ... in order
func LabelTargets(addrs []bus.Address) []Target {
	targets := make([]Target, len(addrs))
	for i, addr := range addrs {
		name := string(rune('A' + i%26))
		if i >= 26 {
			name = fmt.Sprintf("%s%d", name, i/26)
		}
		targets[i] = Target{Name: name, Address: addr}
	}
	return targets
}

// RandomPayload returns n values in [0, 65535)
func RandomPayload(rng *rand.Rand, n int) []uint16 {
	values := make([]uint16, n)
	for i := range values {
		values[i] = uint16(rng.Intn(0xFFFF))
	}
	return values
}

// Config configures a Loop
type Config struct {
	Fields    int
	Runs      int           // stop after this many positive rounds
	MaxErrors int           // stop after this many errors; zero means Runs
	Timeout   time.Duration // zero means no timeout
	Targets   []Target

	// Payload supplies each round's values; nil draws random values from Seed
	Payload func() []uint16
	Seed    int64

	Logger  zerolog.Logger
	OnRound func(RoundResult, *Statistics)
}

// TargetResult is the outcome of one transaction with one target
type TargetResult struct {
	Target Target
	Status byte
	Sent   int
	Err    error
}

// OK reports whether the target accepted the frame
func (r TargetResult) OK() bool {
	return r.Err == nil && r.Status == StatusAccepted
}

// RoundResult is the outcome of one round
type RoundResult struct {
	Round   int
	Values  []uint16
	Frame   []byte
	Results []TargetResult
}

// OK reports whether every target accepted the round
func (r RoundResult) OK() bool {
	for _, tr := range r.Results {
		if !tr.OK() {
			return false
		}
	}
	return len(r.Results) > 0
}

// Loop is the controller transaction loop
type Loop struct {
	bus     bus.Controller
	cfg     Config
	encoder *dataframe.Encoder
	payload func() []uint16
}

// New creates a loop over b
func New(b bus.Controller, cfg Config) (*Loop, error) {
	enc, err := dataframe.NewEncoder(cfg.Fields)
	if err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, errors.New("no targets to send to")
	}
	if cfg.Runs <= 0 {
		return nil, fmt.Errorf("invalid run count %d", cfg.Runs)
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = cfg.Runs
	}

	l := &Loop{bus: b, cfg: cfg, encoder: enc, payload: cfg.Payload}
	if l.payload == nil {
		rng := rand.New(rand.NewSource(cfg.Seed))
		l.payload = func() []uint16 { return RandomPayload(rng, cfg.Fields) }
	}
	return l, nil
}

// RunRound sends values to every target and reads each status byte.
// A failed write skips that target's status read.
func (l *Loop) RunRound(ctx context.Context, round int, values []uint16) (RoundResult, error) {
	frame, err := l.encoder.Encode(values)
	if err != nil {
		return RoundResult{}, fmt.Errorf("failed to encode round %d: %w", round, err)
	}

	result := RoundResult{Round: round, Values: values, Frame: frame}
	for _, target := range l.cfg.Targets {
		result.Results = append(result.Results, l.transact(ctx, target, frame))
	}
	return result, nil
}

func (l *Loop) transact(ctx context.Context, target Target, frame []byte) TargetResult {
	tr := TargetResult{Target: target}
	log := l.cfg.Logger.With().Str("device", target.Name).Stringer("address", target.Address).Logger()

	if err := l.bus.WriteFrame(ctx, target.Address, frame); err != nil {
		tr.Err = err
		log.Warn().Err(err).Msg("write failed")
		return tr
	}
	tr.Sent = len(frame)

	status, err := l.bus.ReadStatusByte(ctx, target.Address)
	if err != nil {
		tr.Err = err
		log.Warn().Err(err).Msg("status read failed")
		return tr
	}
	tr.Status = status

	switch status {
	case StatusAccepted:
		log.Debug().Hex("frame", frame).Msg("dataframe accepted")
	case StatusChecksumError:
		log.Warn().Hex("frame", frame).Msg("checksum error")
	case StatusIncomplete:
		log.Warn().Hex("frame", frame).Msg("incomplete dataframe")
	default:
		log.Warn().Uint8("status", status).Msg("unexpected status byte")
	}
	return tr
}

// Run executes rounds until a stop condition and returns the statistics.
// It returns an error when ctx is cancelled or a payload has the wrong
// number of values.
func (l *Loop) Run(ctx context.Context) (*Statistics, error) {
	runCtx := ctx
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	stats := NewStatistics()
	l.cfg.Logger.Info().
		Int("fields", l.cfg.Fields).
		Int("runs", l.cfg.Runs).
		Int("targets", len(l.cfg.Targets)).
		Msg("transaction loop started")

	for round := 1; ; round++ {
		if runCtx.Err() != nil {
			if ctx.Err() != nil {
				stats.Finish(StopCancelled)
				return stats, ctx.Err()
			}
			stats.Finish(StopTimeout)
			return stats, nil
		}

		result, err := l.RunRound(runCtx, round, l.payload())
		if err != nil {
			stats.Finish(StopErrors)
			return stats, err
		}
		for _, tr := range result.Results {
			stats.Update(tr)
		}
		stats.UpdateRound(result.OK())

		if l.cfg.OnRound != nil {
			l.cfg.OnRound(result, stats)
		}

		if stats.OKRounds >= uint64(l.cfg.Runs) {
			stats.Finish(StopRuns)
			break
		}
		if stats.Errors() >= uint64(l.cfg.MaxErrors) {
			stats.Finish(StopErrors)
			break
		}
	}

	l.cfg.Logger.Info().
		Uint64("ok_rounds", stats.OKRounds).
		Uint64("errors", stats.Errors()).
		Stringer("reason", stats.Reason).
		Msg("transaction loop finished")
	return stats, nil
}
