// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import "fmt"

// EncodeFrame creates a complete wire-formatted HIL frame carrying payload.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, len(payload)+FrameOverhead+1)
	frame = append(frame, Header0, Header1, uint8(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(payload), Footer0, Footer1)
	return frame, nil
}

// MustEncodeFrame is like EncodeFrame but panics on an oversized payload.
// Intended for constant payloads in tests and tools.
func MustEncodeFrame(payload []byte) []byte {
	data, err := EncodeFrame(payload)
	if err != nil {
		panic(fmt.Sprintf("hil: encode error: %v", err))
	}
	return data
}
