// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"fmt"
	"time"
)

// StopReason tells why a loop ended
type StopReason int

const (
	StopNone StopReason = iota
	StopRuns
	StopErrors
	StopTimeout
	StopCancelled
)

// String returns a short description of the reason
func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "running"
	case StopRuns:
		return "run limit reached"
	case StopErrors:
		return "error limit reached"
	case StopTimeout:
		return "timeout"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Statistics tracks transaction outcomes over a loop
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time
	EndTime        time.Time

	// Per round
	Rounds   uint64
	OKRounds uint64

	// Per target transaction
	Transactions    uint64
	Accepted        uint64
	ChecksumErrors  uint64
	Incomplete      uint64
	TransportFaults uint64
	UnknownStatus   uint64
	BytesSent       uint64

	Reason StopReason

	// Rates (calculated)
	RoundRate float64 // rounds/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Errors is the error tally: checksum errors plus incomplete replies
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.Incomplete
}

// Update records one target transaction
func (s *Statistics) Update(r TargetResult) {
	s.Transactions++
	s.BytesSent += uint64(r.Sent)

	switch {
	case r.Err != nil:
		s.TransportFaults++
	case r.Status == StatusAccepted:
		s.Accepted++
	case r.Status == StatusChecksumError:
		s.ChecksumErrors++
	case r.Status == StatusIncomplete:
		s.Incomplete++
	default:
		s.UnknownStatus++
	}

	s.LastUpdateTime = time.Now()
}

// UpdateRound records the end of a round
func (s *Statistics) UpdateRound(ok bool) {
	s.Rounds++
	if ok {
		s.OKRounds++
	}
	s.LastUpdateTime = time.Now()
}

// Finish stamps the end time and stop reason
func (s *Statistics) Finish(reason StopReason) {
	s.Reason = reason
	s.EndTime = time.Now()
	s.CalculateRates()
}

// Elapsed returns the run time so far, or the total once finished
func (s *Statistics) Elapsed() time.Duration {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// CalculateRates calculates round and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.Elapsed().Seconds()
	if elapsed > 0 {
		s.RoundRate = float64(s.OKRounds) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var okPercent float64
	if s.Rounds > 0 {
		okPercent = float64(s.OKRounds) * 100.0 / float64(s.Rounds)
	}

	result := fmt.Sprintf("=== Statistics (%.3f seconds) ===\n", s.Elapsed().Seconds())
	result += fmt.Sprintf("Rounds:          %8d\n", s.Rounds)
	result += fmt.Sprintf("Positive Rounds: %8d (%.1f%%)\n", s.OKRounds, okPercent)
	result += fmt.Sprintf("Transactions:    %8d\n", s.Transactions)
	result += fmt.Sprintf("Errors:          %8d\n", s.Errors())

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("  Checksum:         %5d\n", s.ChecksumErrors)
	}
	if s.Incomplete > 0 {
		result += fmt.Sprintf("  Incomplete:       %5d\n", s.Incomplete)
	}
	if s.TransportFaults > 0 {
		result += fmt.Sprintf("Transport Faults:%8d\n", s.TransportFaults)
	}
	if s.UnknownStatus > 0 {
		result += fmt.Sprintf("Unknown Status:  %8d\n", s.UnknownStatus)
	}

	result += fmt.Sprintf("Bytes Sent:      %8d\n", s.BytesSent)
	result += fmt.Sprintf("Data Rate:       %8.1f Hz\n", s.RoundRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	if s.Reason != StopNone {
		result += fmt.Sprintf("Stopped:         %s\n", s.Reason)
	}
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
