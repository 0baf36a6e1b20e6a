// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// Config configures a Translator
type Config struct {
	Layout           *telemetry.Layout
	Codec            mavcodec.Config
	TimestampSource  TimestampSource
	ForwardUndecoded bool

	// Scheduler overrides the default rotation when set
	Scheduler *telemetry.Scheduler
}

// Translator owns all per-link translation state: the scheduler, the
// encoder's sequence numbers, the incremental parser and the counters.
// Each direction may be driven independently but never concurrently.
type Translator struct {
	scheduler  *telemetry.Scheduler
	assembler  *Assembler
	dispatcher *Dispatcher
	forward    bool
	stats      *Statistics
}

// NewTranslator creates a translator for conf
func NewTranslator(conf Config) (*Translator, error) {
	if conf.Layout == nil {
		return nil, fmt.Errorf("translator needs a layout")
	}
	enc, err := mavcodec.NewEncoder(conf.Codec)
	if err != nil {
		return nil, err
	}

	stats := NewStatistics()
	dispatcher, err := NewDispatcher(conf.TimestampSource, stats)
	if err != nil {
		return nil, err
	}

	scheduler := conf.Scheduler
	if scheduler == nil {
		scheduler = telemetry.NewScheduler()
	}

	return &Translator{
		scheduler:  scheduler,
		assembler:  NewAssembler(conf.Layout, enc),
		dispatcher: dispatcher,
		forward:    conf.ForwardUndecoded,
		stats:      stats,
	}, nil
}

// OnUDPDatagram translates one sensor datagram into the bytes to write to
// the serial link. The schedule advances even when the datagram is
// rejected.
func (t *Translator) OnUDPDatagram(datagram []byte) ([]byte, error) {
	t.stats.DatagramsIn++
	sel := t.scheduler.Next()

	out, err := t.assembler.AssembleSelection(datagram, sel)
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrShortDatagram):
			t.stats.Undersized++
		default:
			t.stats.CodecFailures++
		}
		return nil, fmt.Errorf("translate %s: %w", sel, err)
	}

	for _, rec := range []telemetry.Record{out.Primary, out.Secondary} {
		if att, ok := rec.(telemetry.Attitude); ok {
			t.dispatcher.SetAttitudeTime(att.TimeBootMs)
		}
	}
	t.stats.Translations++
	t.stats.recordSent(out.Primary, out.Secondary)
	return out.Data, nil
}

// OnSerialChunk returns the UDP datagrams to send for a chunk read from the
// serial link: PWM datagrams for decoded servo messages, otherwise the chunk
// itself when forwarding undecoded data is enabled.
func (t *Translator) OnSerialChunk(chunk []byte) [][]byte {
	out, decoded := t.dispatcher.Dispatch(chunk)
	if decoded {
		return out
	}
	if !t.forward || len(chunk) == 0 {
		return nil
	}
	t.stats.PassThrough++
	return out
}

// Statistics returns a snapshot of the counters
func (t *Translator) Statistics() Statistics {
	return t.stats.Copy()
}

// Layout returns the active offset table
func (t *Translator) Layout() *telemetry.Layout {
	return t.assembler.Layout()
}

// NextSelection returns the pair the next datagram will be translated into
func (t *Translator) NextSelection() telemetry.Selection {
	return t.scheduler.Peek()
}

// LastCommand returns the most recent PWM command sent to the simulator
func (t *Translator) LastCommand() telemetry.PwmCommand {
	return t.dispatcher.LastCommand()
}

// PassThrough returns how many serial chunks were forwarded undecoded
func (t *Translator) PassThrough() uint64 {
	return t.stats.PassThrough
}
