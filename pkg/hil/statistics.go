// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame decode counts. Counters are monotonic for the
// lifetime of the decoder that owns them.
type Statistics struct {
	StartTime     time.Time `json:"start_time"`
	LastFrameTime time.Time `json:"last_frame_time"`

	// Counters
	ValidFrames    uint64 `json:"valid_frames"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	FramingErrors  uint64 `json:"framing_errors"`
	OverflowErrors uint64 `json:"overflow_errors"`
	Abandoned      uint64 `json:"abandoned"` // footer-1 mismatches, not counted as failures
	IdleResets     uint64 `json:"idle_resets"`
	PayloadBytes   uint64 `json:"payload_bytes"`

	// Rates (calculated)
	FrameRate float64 `json:"frame_rate"` // frames/sec
	ErrorRate float64 `json:"error_rate"` // failures/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Failed returns the total failure count
func (s *Statistics) Failed() uint64 {
	return s.ChecksumErrors + s.FramingErrors + s.OverflowErrors
}

func (s *Statistics) recordFrame(f *Frame) {
	s.ValidFrames++
	s.PayloadBytes += uint64(len(f.payload))
	s.LastFrameTime = f.timestamp
}

func (s *Statistics) recordFailure(err error) {
	switch {
	case errors.Is(err, ErrChecksum):
		s.ChecksumErrors++
	case errors.Is(err, ErrOverflow):
		s.OverflowErrors++
	default:
		s.FramingErrors++
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.ErrorRate = float64(s.Failed()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	total := s.ValidFrames + s.Failed()
	var validPercent float64
	if total > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(total)
	}

	result := fmt.Sprintf("=== HIL Frames (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d\n", s.FramingErrors)
	}
	if s.OverflowErrors > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", s.OverflowErrors)
	}
	if s.Abandoned > 0 {
		result += fmt.Sprintf("Abandoned:       %8d\n", s.Abandoned)
	}
	if s.IdleResets > 0 {
		result += fmt.Sprintf("Idle Resets:     %8d\n", s.IdleResets)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}
