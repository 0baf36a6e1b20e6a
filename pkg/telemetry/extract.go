// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortDatagram is returned when a datagram cannot hold the requested record
var ErrShortDatagram = errors.New("datagram too short")

// Extract decodes the record of type t from datagram using layout.
// A datagram shorter than layout.MinSize(t) yields ErrShortDatagram and no
// bytes are read.
func Extract(datagram []byte, layout *Layout, t MessageType) (Record, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, int(t))
	}
	if need := layout.MinSize(t); len(datagram) < need {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortDatagram, t, need, len(datagram))
	}

	f := fields(datagram[layout.Offset(t) : layout.Offset(t)+t.Width()])

	switch t {
	case MsgGPS:
		return GPS{
			Lat: f.i32(0),
			Lon: f.i32(4),
			Alt: f.i32(8),
			Cog: f.u16(12),
			Vel: f.u16(14),
			Eph: f.u16(16),
		}, nil

	case MsgGPSDateTime:
		return GPSDateTime{
			Year:        f.u8(0),
			Month:       f.u8(1),
			Day:         f.u8(2),
			Hour:        f.u8(3),
			Min:         f.u8(4),
			Sec:         f.u8(5),
			VisibleSats: f.u8(24),
		}, nil

	case MsgAirData:
		return AirData{
			PressDiff:   f.f32(0),
			PressAbs:    f.f32(4),
			Temperature: f.i16(8),
		}, nil

	case MsgRawIMU:
		return RawIMU{
			XGyro: f.i16(0),
			YGyro: f.i16(2),
			ZGyro: f.i16(4),
			XAcc:  f.i16(6),
			YAcc:  f.i16(8),
			ZAcc:  f.i16(10),
			XMag:  f.i16(12),
			YMag:  f.i16(14),
			ZMag:  f.i16(16),
		}, nil

	case MsgRawPressure:
		return RawPressure{
			PressDiff1:  f.i16(0),
			PressAbs:    f.i16(2),
			Temperature: f.i16(4),
		}, nil

	case MsgAttitude:
		return Attitude{
			Roll:       f.f32(0),
			Pitch:      f.f32(4),
			Yaw:        f.f32(8),
			RollSpeed:  f.f32(12),
			PitchSpeed: f.f32(16),
			YawSpeed:   f.f32(20),
			TimeBootMs: f.u32(24) / 1000,
		}, nil

	case MsgLocalPosition:
		return LocalPosition{
			X:  f.f32(0),
			Y:  f.f32(4),
			Z:  f.f32(8),
			VX: f.f32(12),
			VY: f.f32(16),
			VZ: f.f32(20),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s has no extractor", ErrUnknownMessageType, t)
}

// fields is a record-sized window onto a datagram. The slice bounds make
// any offset past the record width panic in tests instead of reading a
// neighbouring record.
type fields []byte

func (f fields) u8(off int) uint8 {
	return f[off]
}

func (f fields) u16(off int) uint16 {
	return binary.LittleEndian.Uint16(f[off : off+2])
}

func (f fields) i16(off int) int16 {
	return int16(f.u16(off))
}

func (f fields) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(f[off : off+4])
}

func (f fields) i32(off int) int32 {
	return int32(f.u32(off))
}

func (f fields) f32(off int) float32 {
	return math.Float32frombits(f.u32(off))
}
