// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"time"

	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// Statistics tracks translation counts in both directions
type Statistics struct {
	StartTime time.Time `json:"start_time"`

	// UDP to serial
	DatagramsIn   uint64            `json:"datagrams_in"`
	Translations  uint64            `json:"translations"`
	Undersized    uint64            `json:"undersized"`
	CodecFailures uint64            `json:"codec_failures"`
	MessagesSent  map[string]uint64 `json:"messages_sent"`

	// Serial to UDP
	SerialChunks    uint64 `json:"serial_chunks"`
	MessagesDecoded uint64 `json:"messages_decoded"`
	IgnoredMessages uint64 `json:"ignored_messages"`
	PwmDatagrams    uint64 `json:"pwm_datagrams"`
	PassThrough     uint64 `json:"pass_through"`

	// Rates (calculated)
	TranslationRate float64 `json:"translation_rate"` // translations/sec
	PwmRate         float64 `json:"pwm_rate"`         // PWM datagrams/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{StartTime: time.Now(), MessagesSent: make(map[string]uint64)}
	for _, t := range telemetry.AllTypes() {
		s.MessagesSent[t.String()] = 0
	}
	return s
}

func (s *Statistics) recordSent(recs ...telemetry.Record) {
	for _, r := range recs {
		s.MessagesSent[r.Type().String()]++
	}
}

// Copy returns a deep copy safe to hand to another goroutine
func (s *Statistics) Copy() Statistics {
	c := *s
	c.MessagesSent = make(map[string]uint64, len(s.MessagesSent))
	for k, v := range s.MessagesSent {
		c.MessagesSent[k] = v
	}
	return c
}

// CalculateRates calculates translation and PWM rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.TranslationRate = float64(s.Translations) / elapsed
		s.PwmRate = float64(s.PwmDatagrams) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	result := fmt.Sprintf("=== Bridge (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	result += fmt.Sprintf("Datagrams In:     %8d\n", s.DatagramsIn)
	result += fmt.Sprintf("Translations:     %8d (%.1f/sec)\n", s.Translations, s.TranslationRate)
	if s.Undersized > 0 {
		result += fmt.Sprintf("Undersized:       %8d\n", s.Undersized)
	}
	if s.CodecFailures > 0 {
		result += fmt.Sprintf("Codec Failures:   %8d\n", s.CodecFailures)
	}
	for _, t := range telemetry.AllTypes() {
		result += fmt.Sprintf("  %-16s %8d\n", t.String()+":", s.MessagesSent[t.String()])
	}
	result += fmt.Sprintf("Serial Chunks:    %8d\n", s.SerialChunks)
	result += fmt.Sprintf("MAVLink Decoded:  %8d\n", s.MessagesDecoded)
	if s.IgnoredMessages > 0 {
		result += fmt.Sprintf("Ignored:          %8d\n", s.IgnoredMessages)
	}
	result += fmt.Sprintf("PWM Datagrams:    %8d (%.1f/sec)\n", s.PwmDatagrams, s.PwmRate)
	if s.PassThrough > 0 {
		result += fmt.Sprintf("Pass-through:     %8d\n", s.PassThrough)
	}
	result += "================================\n"

	return result
}
