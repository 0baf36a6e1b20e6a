// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"
	"time"

	"github.com/Thermoquad/hilbridge/pkg/bridge"
	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// EventKind classifies gateway activity for live monitors
type EventKind int

const (
	EventTelemetry   EventKind = iota // sensor datagram translated and written to serial
	EventRawToSerial                  // sensor datagram forwarded unchanged (hil mode)
	EventPwm                          // PWM datagram sent to the simulator
	EventPassThrough                  // undecoded serial chunk forwarded to UDP
	EventFrame                        // HIL frame decoded
	EventFiltered                     // datagram from an unexpected sender dropped
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTelemetry:
		return "TELEMETRY"
	case EventRawToSerial:
		return "RAW"
	case EventPwm:
		return "PWM"
	case EventPassThrough:
		return "PASS"
	case EventFrame:
		return "FRAME"
	case EventFiltered:
		return "FILTERED"
	case EventError:
		return "ERROR"
	}
	return fmt.Sprintf("EVENT(%d)", int(k))
}

// Event is a single unit of gateway activity
type Event struct {
	Time   time.Time
	Kind   EventKind
	Size   int
	Detail string
}

// LinkCounters counts raw traffic on both sides of the gateway
type LinkCounters struct {
	SerialChunks   uint64 `json:"serial_chunks"`
	SerialBytesIn  uint64 `json:"serial_bytes_in"`
	SerialBytesOut uint64 `json:"serial_bytes_out"`
	DatagramsIn    uint64 `json:"datagrams_in"`
	DatagramsOut   uint64 `json:"datagrams_out"`
	Filtered       uint64 `json:"filtered"`
	Oversized      uint64 `json:"oversized"`
	WriteErrors    uint64 `json:"write_errors"`
	EventsDropped  uint64 `json:"events_dropped"`
}

// Snapshot is a consistent copy of every gateway counter
type Snapshot struct {
	Mode      string       `json:"mode"`
	StartTime time.Time    `json:"start_time"`
	Uptime    float64      `json:"uptime_seconds"`
	Link      LinkCounters `json:"link"`

	// mavlink mode
	Layout        string                `json:"layout,omitempty"`
	NextSelection string                `json:"next_selection,omitempty"`
	LastPwm       *telemetry.PwmCommand `json:"last_pwm,omitempty"`
	Bridge        *bridge.Statistics    `json:"bridge,omitempty"`

	// hil mode
	HIL *hil.Statistics `json:"hil,omitempty"`
}

// Snapshot copies the counters. It is safe to call while Run is active.
func (g *Gateway) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Mode:      g.opts.Mode,
		StartTime: g.startTime,
		Uptime:    time.Since(g.startTime).Seconds(),
		Link:      g.counters,
	}
	if t := g.opts.Translator; t != nil {
		stats := t.Statistics()
		stats.CalculateRates()
		cmd := t.LastCommand()
		s.Bridge = &stats
		s.Layout = t.Layout().Name()
		s.NextSelection = t.NextSelection().String()
		s.LastPwm = &cmd
	}
	if d := g.opts.Decoder; d != nil {
		stats := *d.Statistics()
		stats.CalculateRates()
		s.HIL = &stats
	}
	return s
}

// Layout returns the active offset table, nil in hil mode
func (g *Gateway) Layout() *telemetry.Layout {
	if g.opts.Translator == nil {
		return nil
	}
	return g.opts.Translator.Layout()
}

// String returns a formatted summary of the snapshot
func (s Snapshot) String() string {
	result := fmt.Sprintf("=== Gateway %s (%.0f seconds) ===\n", s.Mode, s.Uptime)
	result += fmt.Sprintf("Datagrams In:    %8d\n", s.Link.DatagramsIn)
	result += fmt.Sprintf("Datagrams Out:   %8d\n", s.Link.DatagramsOut)
	result += fmt.Sprintf("Serial In:       %8d bytes\n", s.Link.SerialBytesIn)
	result += fmt.Sprintf("Serial Out:      %8d bytes\n", s.Link.SerialBytesOut)
	if s.Link.Filtered > 0 {
		result += fmt.Sprintf("Filtered:        %8d\n", s.Link.Filtered)
	}
	if s.Link.Oversized > 0 {
		result += fmt.Sprintf("Oversized:       %8d\n", s.Link.Oversized)
	}
	if s.Link.WriteErrors > 0 {
		result += fmt.Sprintf("Write Errors:    %8d\n", s.Link.WriteErrors)
	}
	if s.Bridge != nil {
		result += s.Bridge.String()
	}
	if s.HIL != nil {
		result += s.HIL.String()
	}
	return result
}
