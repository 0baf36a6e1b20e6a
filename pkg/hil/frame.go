// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import "time"

// Frame represents a decoded HIL frame
type Frame struct {
	length    uint8
	payload   []byte
	checksum  byte
	timestamp time.Time
}

// NewFrame creates a frame carrying a copy of payload. The checksum is
// computed from the payload.
func NewFrame(payload []byte) *Frame {
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Frame{
		length:    uint8(len(payload)),
		payload:   p,
		checksum:  Checksum(payload),
		timestamp: time.Now(),
	}
}

// Length returns the frame's payload length byte
func (f *Frame) Length() uint8 {
	return f.length
}

// Payload returns the verified payload bytes
func (f *Frame) Payload() []byte {
	return f.payload
}

// Checksum returns the frame's checksum byte
func (f *Frame) Checksum() byte {
	return f.checksum
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}
