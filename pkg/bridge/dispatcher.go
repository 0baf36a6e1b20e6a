// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"strings"

	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"

	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// TimestampSource selects where the PWM datagram timestamp comes from
type TimestampSource int

const (
	// TimestampServo uses SERVO_OUTPUT_RAW time_usec
	TimestampServo TimestampSource = iota
	// TimestampAttitude uses the last attitude time sent to the autopilot,
	// converted to microseconds
	TimestampAttitude
)

func (s TimestampSource) String() string {
	switch s {
	case TimestampServo:
		return "servo"
	case TimestampAttitude:
		return "attitude"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseTimestampSource resolves "servo" or "attitude"
func ParseTimestampSource(name string) (TimestampSource, error) {
	switch strings.ToLower(name) {
	case "servo", "":
		return TimestampServo, nil
	case "attitude":
		return TimestampAttitude, nil
	}
	return 0, fmt.Errorf("unknown PWM timestamp source %q (expected servo or attitude)", name)
}

// Dispatcher scans serial chunks for MAVLink messages and turns every
// SERVO_OUTPUT_RAW into a PWM datagram for the simulator.
//
// A Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	parser     *mavcodec.Parser
	source     TimestampSource
	attitudeMs uint32
	pwm        telemetry.PwmCommand
	stats      *Statistics
}

// NewDispatcher creates a dispatcher recording into stats, which may be nil
func NewDispatcher(source TimestampSource, stats *Statistics) (*Dispatcher, error) {
	parser, err := mavcodec.NewParser()
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = NewStatistics()
	}
	return &Dispatcher{parser: parser, source: source, stats: stats}, nil
}

// SetAttitudeTime records the attitude time most recently sent to the
// autopilot, used by TimestampAttitude
func (d *Dispatcher) SetAttitudeTime(ms uint32) {
	d.attitudeMs = ms
}

// LastCommand returns the most recent PWM command
func (d *Dispatcher) LastCommand() telemetry.PwmCommand {
	return d.pwm
}

// Parser returns the incremental MAVLink parser
func (d *Dispatcher) Parser() *mavcodec.Parser {
	return d.parser
}

// Dispatch feeds chunk to the parser and returns one packed PWM datagram per
// servo message completed by it. When no servo message was decoded the
// chunk itself is returned and decoded is false.
func (d *Dispatcher) Dispatch(chunk []byte) (out [][]byte, decoded bool) {
	d.stats.SerialChunks++

	for _, f := range d.parser.Feed(chunk) {
		d.stats.MessagesDecoded++

		switch msg := f.GetMessage().(type) {
		case *common.MessageServoOutputRaw:
			d.pwm = d.command(msg)
			out = append(out, d.pwm.Pack())
			d.stats.PwmDatagrams++

		default:
			d.stats.IgnoredMessages++
		}
	}

	if len(out) == 0 {
		return [][]byte{chunk}, false
	}
	return out, true
}

func (d *Dispatcher) command(msg *common.MessageServoOutputRaw) telemetry.PwmCommand {
	cmd := telemetry.PwmCommand{
		Channels: [telemetry.PwmChannels]uint16{
			msg.Servo1Raw, msg.Servo2Raw, msg.Servo3Raw, msg.Servo4Raw,
			msg.Servo5Raw, msg.Servo6Raw, msg.Servo7Raw, msg.Servo8Raw,
		},
		TimeUsec: msg.TimeUsec,
	}
	if d.source == TimestampAttitude {
		cmd.TimeUsec = d.attitudeMs * 1000
	}
	return cmd
}
