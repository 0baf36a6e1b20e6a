// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"encoding/binary"
	"fmt"
)

// PWM datagram layout
const (
	PwmChannels     = 8
	PwmDatagramSize = PwmChannels*2 + 4
)

// PwmCommand is one actuator sample: raw servo outputs in microseconds and
// the sample time in microseconds.
type PwmCommand struct {
	Channels [PwmChannels]uint16
	TimeUsec uint32
}

// Pack encodes the command as the 20-byte simulator datagram: eight
// little-endian u16 channels followed by a little-endian u32 timestamp.
func (p PwmCommand) Pack() []byte {
	buf := make([]byte, PwmDatagramSize)
	for i, ch := range p.Channels {
		binary.LittleEndian.PutUint16(buf[i*2:], ch)
	}
	binary.LittleEndian.PutUint32(buf[PwmChannels*2:], p.TimeUsec)
	return buf
}

// UnpackPwm is the inverse of Pack
func UnpackPwm(data []byte) (PwmCommand, error) {
	var p PwmCommand
	if len(data) < PwmDatagramSize {
		return p, fmt.Errorf("%w: PWM datagram needs %d bytes, got %d", ErrShortDatagram, PwmDatagramSize, len(data))
	}
	for i := range p.Channels {
		p.Channels[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	p.TimeUsec = binary.LittleEndian.Uint32(data[PwmChannels*2:])
	return p, nil
}
