// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge translates between the simulator's UDP datagrams and the
// autopilot's MAVLink serial stream.
package bridge

import (
	"fmt"

	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v2/pkg/message"

	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// Assembled is the output of one UDP to serial translation
type Assembled struct {
	Data      []byte
	Primary   telemetry.Record
	Secondary telemetry.Record
}

// Assembler extracts telemetry records from sensor datagrams and encodes
// them as MAVLink messages.
type Assembler struct {
	layout  *telemetry.Layout
	encoder *mavcodec.Encoder
}

// NewAssembler creates an assembler reading datagrams with layout
func NewAssembler(layout *telemetry.Layout, encoder *mavcodec.Encoder) *Assembler {
	return &Assembler{layout: layout, encoder: encoder}
}

// Layout returns the offset table in use
func (a *Assembler) Layout() *telemetry.Layout {
	return a.layout
}

// Assemble extracts the record of type t from datagram and returns its
// encoded MAVLink envelope.
func (a *Assembler) Assemble(datagram []byte, t telemetry.MessageType) ([]byte, telemetry.Record, error) {
	rec, err := telemetry.Extract(datagram, a.layout, t)
	if err != nil {
		return nil, nil, err
	}
	msg, err := ToMessage(rec)
	if err != nil {
		return nil, nil, err
	}
	data, err := a.encoder.Encode(msg)
	if err != nil {
		return nil, nil, err
	}
	return data, rec, nil
}

// AssembleSelection encodes the primary message followed by the secondary
// one. Both records are length-checked before anything is encoded, so an
// undersized datagram produces no output at all.
func (a *Assembler) AssembleSelection(datagram []byte, sel telemetry.Selection) (*Assembled, error) {
	for _, t := range []telemetry.MessageType{sel.Primary, sel.Secondary} {
		if need := a.layout.MinSize(t); len(datagram) < need {
			return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", telemetry.ErrShortDatagram, t, need, len(datagram))
		}
	}

	primary, primaryRec, err := a.Assemble(datagram, sel.Primary)
	if err != nil {
		return nil, err
	}
	secondary, secondaryRec, err := a.Assemble(datagram, sel.Secondary)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, len(primary)+len(secondary))
	data = append(data, primary...)
	data = append(data, secondary...)
	return &Assembled{Data: data, Primary: primaryRec, Secondary: secondaryRec}, nil
}

// ToMessage fills the MAVLink message for rec. Fields the simulator does not
// provide are left zero.
func ToMessage(rec telemetry.Record) (message.Message, error) {
	switch r := rec.(type) {
	case telemetry.GPS:
		return &common.MessageGpsRawInt{
			Lat: r.Lat,
			Lon: r.Lon,
			Alt: r.Alt,
			Cog: r.Cog,
			Vel: r.Vel,
			Eph: r.Eph,
		}, nil

	case telemetry.GPSDateTime:
		return &mavcodec.MessageGpsDateTime{
			Year:   r.Year,
			Month:  r.Month,
			Day:    r.Day,
			Hour:   r.Hour,
			Min:    r.Min,
			Sec:    r.Sec,
			VisSat: r.VisibleSats,
		}, nil

	case telemetry.AirData:
		return &common.MessageScaledPressure{
			PressDiff:   r.PressDiff,
			PressAbs:    r.PressAbs,
			Temperature: r.Temperature,
		}, nil

	case telemetry.RawIMU:
		return &common.MessageRawImu{
			Xgyro: r.XGyro,
			Ygyro: r.YGyro,
			Zgyro: r.ZGyro,
			Xacc:  r.XAcc,
			Yacc:  r.YAcc,
			Zacc:  r.ZAcc,
			Xmag:  r.XMag,
			Ymag:  r.YMag,
			Zmag:  r.ZMag,
		}, nil

	case telemetry.RawPressure:
		return &common.MessageRawPressure{
			PressDiff1:  r.PressDiff1,
			PressAbs:    r.PressAbs,
			Temperature: r.Temperature,
		}, nil

	case telemetry.Attitude:
		return &common.MessageAttitude{
			TimeBootMs: r.TimeBootMs,
			Roll:       r.Roll,
			Pitch:      r.Pitch,
			Yaw:        r.Yaw,
			Rollspeed:  r.RollSpeed,
			Pitchspeed: r.PitchSpeed,
			Yawspeed:   r.YawSpeed,
		}, nil

	case telemetry.LocalPosition:
		return &common.MessageLocalPositionNed{
			X:  r.X,
			Y:  r.Y,
			Z:  r.Z,
			Vx: r.VX,
			Vy: r.VY,
			Vz: r.VZ,
		}, nil
	}

	return nil, fmt.Errorf("%w: no MAVLink message for %T", telemetry.ErrUnknownMessageType, rec)
}
