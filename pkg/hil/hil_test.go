// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// feed runs data through d and returns the delivered frames and the errors
// reported along the way.
func feed(d *Decoder, data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	if sum := Checksum(nil); sum != 0 {
		t.Errorf("Checksum of empty data should be 0, got 0x%02X", sum)
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"single byte", []byte{0x5A}, 0x5A},
		{"two bytes", []byte{0xAA, 0xBB}, 0x11},
		{"self cancelling", []byte{0x42, 0x42}, 0x00},
		{"four bytes", []byte{0x01, 0x02, 0x04, 0x08}, 0x0F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sum := Checksum(tt.data); sum != tt.expected {
				t.Errorf("Checksum mismatch: expected 0x%02X, got 0x%02X", tt.expected, sum)
			}
		})
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_ChecksumMismatchScenario(t *testing.T) {
	d := NewDecoder()
	frames, errs := feed(d, []byte{0x25, 0x26, 0x02, 0xAA, 0xBB, 0x19, 0x5E, 0x26})

	if len(frames) != 0 {
		t.Fatalf("Expected no frames, got %d", len(frames))
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrChecksum) {
		t.Fatalf("Expected a single checksum error, got %v", errs)
	}
	if d.Statistics().ChecksumErrors != 1 || d.Statistics().Failed() != 1 {
		t.Errorf("Expected 1 checksum failure, got %+v", d.Statistics())
	}

	frames, errs = feed(d, []byte{0x25, 0x26, 0x02, 0xAA, 0xBB, 0x11, 0x5E, 0x26})
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Payload(), []byte{0xAA, 0xBB}) {
		t.Errorf("Payload mismatch: got % X", frames[0].Payload())
	}
	if d.Statistics().ValidFrames != 1 {
		t.Errorf("Expected 1 valid frame, got %d", d.Statistics().ValidFrames)
	}
}

func TestDecoder_EmptyPayload(t *testing.T) {
	d := NewDecoder()
	frames, errs := feed(d, MustEncodeFrame(nil))
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("Expected 1 frame and no errors, got %d frames, errors %v", len(frames), errs)
	}
	if frames[0].Length() != 0 || len(frames[0].Payload()) != 0 {
		t.Errorf("Expected empty payload, got % X", frames[0].Payload())
	}
}

func TestDecoder_MaxPayload(t *testing.T) {
	payload := make([]byte, MaxPayloadSize)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	d := NewDecoder()
	frames, errs := feed(d, MustEncodeFrame(payload))
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("Expected 1 frame and no errors, got %d frames, errors %v", len(frames), errs)
	}
	if !bytes.Equal(frames[0].Payload(), payload) {
		t.Error("Payload mismatch for max size frame")
	}
}

func TestDecoder_Overflow(t *testing.T) {
	d := NewDecoder()
	// A length byte one past the maximum can never reach its footer
	data := []byte{Header0, Header1, MaxPayloadSize + 1}
	data = append(data, make([]byte, ScratchSize)...)

	_, errs := feed(d, data)
	if d.Statistics().OverflowErrors != 1 {
		t.Fatalf("Expected 1 overflow, got %d (errors %v)", d.Statistics().OverflowErrors, errs)
	}
	if !errors.Is(errs[0], ErrOverflow) {
		t.Errorf("Expected ErrOverflow, got %v", errs[0])
	}

	// The decoder must recover on the next valid frame
	frames, _ := feed(d, MustEncodeFrame([]byte{0x01}))
	if len(frames) != 1 {
		t.Errorf("Expected recovery after overflow, got %d frames", len(frames))
	}
}

func TestDecoder_BadFooter0(t *testing.T) {
	d := NewDecoder()
	frame := MustEncodeFrame([]byte{0x10, 0x20})
	frame[len(frame)-2] = 0x00

	_, errs := feed(d, frame)
	if len(errs) != 1 || !errors.Is(errs[0], ErrBadFooter) {
		t.Fatalf("Expected a single footer error, got %v", errs)
	}
	if d.Statistics().FramingErrors != 1 {
		t.Errorf("Expected 1 framing error, got %d", d.Statistics().FramingErrors)
	}
}

// The second footer byte mismatch abandons the frame without counting a
// failure, while a checksum mismatch at the same point does count one.
func TestDecoder_BadFooter1_NotCounted(t *testing.T) {
	d := NewDecoder()
	frame := MustEncodeFrame([]byte{0x10, 0x20})
	frame[len(frame)-1] = 0x00

	frames, errs := feed(d, frame)
	if len(frames) != 0 || len(errs) != 0 {
		t.Fatalf("Expected silent abandonment, got %d frames, errors %v", len(frames), errs)
	}
	if d.Statistics().Failed() != 0 {
		t.Errorf("Footer-1 mismatch must not count as failure, got %d", d.Statistics().Failed())
	}
	if d.Statistics().Abandoned != 1 {
		t.Errorf("Expected 1 abandoned frame, got %d", d.Statistics().Abandoned)
	}
	if d.InProgress() {
		t.Error("Decoder should be back to awaiting a header")
	}
}

func TestDecoder_RepeatedHeader0(t *testing.T) {
	d := NewDecoder()
	data := append([]byte{Header0, Header0, Header0}, MustEncodeFrame([]byte{0x33})[1:]...)

	frames, errs := feed(d, data)
	if len(errs) != 0 {
		t.Fatalf("Repeated header bytes must not count failures: %v", errs)
	}
	if len(frames) != 1 || frames[0].Payload()[0] != 0x33 {
		t.Fatalf("Expected frame after repeated header bytes, got %d frames", len(frames))
	}
}

func TestDecoder_BadHeader1(t *testing.T) {
	d := NewDecoder()
	frames, errs := feed(d, []byte{Header0, 0x00})
	if len(frames) != 0 || len(errs) != 1 || !errors.Is(errs[0], ErrBadHeader) {
		t.Fatalf("Expected one header error, got %d frames, errors %v", len(frames), errs)
	}
	if d.InProgress() {
		t.Error("Decoder should reset after a bad second header byte")
	}
}

func TestDecoder_FailureCountedOncePerRun(t *testing.T) {
	d := NewDecoder()
	_, errs := feed(d, []byte{0x00, 0x01, 0x02, Header0, 0x03, 0x04})
	if len(errs) != 1 {
		t.Fatalf("Expected exactly one counted failure, got %d", len(errs))
	}

	// A delivered frame re-arms counting
	feed(d, MustEncodeFrame([]byte{0x01}))
	_, errs = feed(d, []byte{0x00, 0x00})
	if len(errs) != 1 {
		t.Errorf("Expected one failure after a success, got %d", len(errs))
	}
	if d.Statistics().Failed() != 2 {
		t.Errorf("Expected 2 failures total, got %d", d.Statistics().Failed())
	}
}

func TestDecoder_ChecksumFailureAlwaysCounted(t *testing.T) {
	d := NewDecoder()
	bad := MustEncodeFrame([]byte{0x01, 0x02})
	bad[len(bad)-3] ^= 0xFF

	feed(d, bad)
	feed(d, bad)
	if d.Statistics().ChecksumErrors != 2 {
		t.Errorf("Each checksum mismatch must be counted, got %d", d.Statistics().ChecksumErrors)
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	feed(d, []byte{Header0, Header1, 0x04, 0x01})
	if !d.InProgress() {
		t.Fatal("Expected frame in progress")
	}

	d.Reset()
	if d.InProgress() {
		t.Error("Expected idle decoder after Reset")
	}
	if d.Statistics().Failed() != 0 {
		t.Error("Reset must not count failures")
	}
}

func TestDecoder_ExpireIdle(t *testing.T) {
	d := NewDecoder()
	if d.ExpireIdle() {
		t.Error("Idle decoder should not report an expired frame")
	}

	feed(d, []byte{Header0, Header1, 0x04, 0x01})
	if !d.ExpireIdle() {
		t.Fatal("Expected in-progress frame to expire")
	}
	if d.Statistics().IdleResets != 1 || d.Statistics().Failed() != 0 {
		t.Errorf("Expected 1 idle reset and no failures, got %+v", d.Statistics())
	}

	frames, _ := feed(d, MustEncodeFrame([]byte{0x09}))
	if len(frames) != 1 {
		t.Error("Expected decoder to accept a frame after idle expiry")
	}
}

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder()
	var stream []byte
	stream = append(stream, MustEncodeFrame([]byte{0x01})...)
	stream = append(stream, MustEncodeFrame([]byte{0x02, 0x03})...)

	frames := d.Decode(stream)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if frames[1].Length() != 2 {
		t.Errorf("Expected second frame length 2, got %d", frames[1].Length())
	}
}

// ============================================================
// Wrapper Tests
// ============================================================

func TestWrapper_Template(t *testing.T) {
	w := NewWrapper()
	got := w.Bytes()
	if len(got) != WrapperSize {
		t.Fatalf("Expected %d byte wrapper, got %d", WrapperSize, len(got))
	}
	expected := []byte{Header0, Header1, WrapperPayloadSize}
	if !bytes.Equal(got[:3], expected) {
		t.Errorf("Wrapper header mismatch: % X", got[:3])
	}
	if got[WrapperSize-2] != Footer0 || got[WrapperSize-1] != Footer1 {
		t.Errorf("Wrapper footer mismatch: % X", got[WrapperSize-2:])
	}
}

func TestWrapper_UpdatedOnDelivery(t *testing.T) {
	payload := make([]byte, 22)
	payload[20] = 0x12
	payload[21] = 0x34

	d := NewDecoder()
	feed(d, MustEncodeFrame(payload))

	if !d.TakeNewData() {
		t.Fatal("Expected new data flag after delivery")
	}
	if d.TakeNewData() {
		t.Error("New data flag should clear once taken")
	}

	wrapper := d.Wrapper().Bytes()
	if wrapper[payloadIndex+DefaultWrapperDestOffset] != 0x12 || wrapper[payloadIndex+DefaultWrapperDestOffset+1] != 0x34 {
		t.Errorf("Wrapper field not copied: % X", wrapper)
	}
	if wrapper[payloadIndex+WrapperPayloadSize] != 0x12^0x34 {
		t.Errorf("Wrapper checksum byte mismatch: 0x%02X", wrapper[payloadIndex+WrapperPayloadSize])
	}

	// The wrapper is a valid frame in its own right
	frames, errs := feed(NewDecoderWithWrapper(nil), wrapper)
	if len(frames) != 1 || len(errs) != 0 {
		t.Fatalf("Wrapper should decode as a frame, got %d frames, errors %v", len(frames), errs)
	}
}

func TestWrapper_ShortPayloadNotCopied(t *testing.T) {
	d := NewDecoder()
	frames, _ := feed(d, MustEncodeFrame([]byte{0x01, 0x02}))
	if len(frames) != 1 {
		t.Fatal("Short payload should still decode")
	}
	if d.TakeNewData() {
		t.Error("Short payload must not raise new data")
	}
	if d.Wrapper().Updates() != 0 {
		t.Errorf("Expected no wrapper updates, got %d", d.Wrapper().Updates())
	}
}

func TestNewWrapperWithOffsets_Invalid(t *testing.T) {
	if _, err := NewWrapperWithOffsets(MaxPayloadSize, 0); err == nil {
		t.Error("Expected error for out of range source offset")
	}
	if _, err := NewWrapperWithOffsets(0, WrapperPayloadSize-1); err == nil {
		t.Error("Expected error for out of range destination offset")
	}
	if _, err := NewWrapperWithOffsets(-1, 0); err == nil {
		t.Error("Expected error for negative offset")
	}
}

// ============================================================
// Formatter / Statistics Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(NewFrame([]byte{0xAA, 0xBB}))
	if !strings.Contains(out, "len=2") || !strings.Contains(out, "checksum=0x11") {
		t.Errorf("Unexpected frame format: %q", out)
	}
	if !strings.Contains(out, "AA BB") {
		t.Errorf("Expected hex dump in output: %q", out)
	}
}

func TestStatistics_String(t *testing.T) {
	d := NewDecoder()
	feed(d, []byte{0x00})
	feed(d, MustEncodeFrame([]byte{0x01}))

	out := d.Statistics().String()
	if !strings.Contains(out, "Valid Frames:") || !strings.Contains(out, "Framing Errors:") {
		t.Errorf("Unexpected statistics summary: %q", out)
	}
}
