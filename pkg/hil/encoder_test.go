// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import (
	"bytes"
	"testing"
)

func TestEncodeFrame_Layout(t *testing.T) {
	got, err := EncodeFrame([]byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	expected := []byte{0x25, 0x26, 0x02, 0xAA, 0xBB, 0x11, 0x5E, 0x26}
	if !bytes.Equal(got, expected) {
		t.Errorf("Frame mismatch:\n  expected % X\n  got      % X", expected, got)
	}
}

func TestEncodeFrame_Size(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0x01}},
		{"contains magic bytes", []byte{Header0, Header1, Footer0, Footer1}},
		{"max size", make([]byte, MaxPayloadSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeFrame(tt.payload)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if len(frame) != len(tt.payload)+FrameOverhead+1 {
				t.Errorf("Expected %d bytes, got %d", len(tt.payload)+FrameOverhead+1, len(frame))
			}
		})
	}
}

func TestEncodeFrame_PayloadTooLarge(t *testing.T) {
	if _, err := EncodeFrame(make([]byte, MaxPayloadSize+1)); err == nil {
		t.Error("Expected error for oversized payload")
	}
}

func TestEncodeFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"magic bytes in payload", []byte{Header0, Header1, Footer0, Footer1, Header0}},
		{"sample", []byte{0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			frames, errs := feed(d, MustEncodeFrame(tt.payload))
			if len(errs) != 0 {
				t.Fatalf("Unexpected errors: %v", errs)
			}
			if len(frames) != 1 {
				t.Fatalf("Expected 1 frame, got %d", len(frames))
			}
			if !bytes.Equal(frames[0].Payload(), tt.payload) {
				t.Errorf("Payload mismatch: expected % X, got % X", tt.payload, frames[0].Payload())
			}
		})
	}
}

func TestMustEncodeFrame_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for oversized payload")
		}
	}()
	MustEncodeFrame(make([]byte, MaxPayloadSize+1))
}
