// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/hilbridge/pkg/capture"
	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// ============================================================
// Replay
// ============================================================

func TestReplay_MAVLink(t *testing.T) {
	now := time.Now()
	records := []capture.Record{
		{Time: now, Direction: capture.UDPIn, Data: make([]byte, 113)},
		{Time: now, Direction: capture.SerialOut, Data: []byte{0xFE}},
		{Time: now, Direction: capture.UDPIn, Data: make([]byte, 40)},
		{Time: now, Direction: capture.SerialIn, Data: servoChunk(t, 77, 1100)},
	}

	var buf bytes.Buffer
	w := capture.NewWriter(&buf)
	s, err := Replay(records, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t), Capture: w})
	if err != nil {
		t.Fatal(err)
	}

	if s.Link.DatagramsIn != 2 {
		t.Errorf("Expected 2 datagrams in, got %d", s.Link.DatagramsIn)
	}
	if s.Bridge.Translations != 1 || s.Bridge.Undersized != 1 {
		t.Errorf("Expected 1 translation and 1 undersized, got %+v", s.Bridge)
	}
	if s.Link.DatagramsOut != 1 || s.LastPwm == nil || s.LastPwm.Channels[0] != 1100 {
		t.Errorf("Expected one PWM datagram for the servo message, got %+v / %+v", s.Link, s.LastPwm)
	}

	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	out, err := capture.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := []capture.Direction{capture.UDPIn, capture.SerialOut, capture.UDPIn, capture.SerialIn, capture.UDPOut}
	if len(out) != len(want) {
		t.Fatalf("Expected %d regenerated records, got %d", len(want), len(out))
	}
	for i, dir := range want {
		if out[i].Direction != dir {
			t.Errorf("Record %d: expected %s, got %s", i, dir, out[i].Direction)
		}
	}
	if pwm, err := telemetry.UnpackPwm(out[4].Data); err != nil || pwm.TimeUsec != 77 {
		t.Errorf("Unexpected PWM record %+v (%v)", pwm, err)
	}
}

func TestReplay_HIL(t *testing.T) {
	payload := make([]byte, 24)
	payload[hil.DefaultWrapperSourceOffset] = 0x12
	stream := append([]byte{0x00, 0x01}, hil.MustEncodeFrame(payload)...)

	records := []capture.Record{
		{Direction: capture.SerialIn, Data: stream[:10]},
		{Direction: capture.SerialIn, Data: stream[10:]},
		{Direction: capture.UDPIn, Data: []byte{9, 9}},
	}
	s, err := Replay(records, Options{Mode: config.ModeHIL, Decoder: hil.NewDecoder()})
	if err != nil {
		t.Fatal(err)
	}
	if s.HIL.ValidFrames != 1 {
		t.Errorf("Expected 1 frame, got %d", s.HIL.ValidFrames)
	}
	if s.Link.DatagramsOut != 1 {
		t.Errorf("Expected 1 wrapper datagram, got %d", s.Link.DatagramsOut)
	}
	if s.Link.SerialBytesOut != 2 {
		t.Errorf("Expected sensor datagram forwarded raw, got %d bytes", s.Link.SerialBytesOut)
	}
}

func TestReplay_InvalidOptions(t *testing.T) {
	if _, err := Replay(nil, Options{Mode: config.ModeMAVLink}); err == nil {
		t.Error("Expected error without a translator")
	}
}

// ============================================================
// Configuration
// ============================================================

func TestOptionsFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		translator bool
		decoder    bool
	}{
		{"mavlink", config.ModeMAVLink, true, false},
		{"hil", config.ModeHIL, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.NewDefaultConfig()
			c.Bridge.Mode = tt.mode
			c.UDP.RemoteRxAddress = "127.0.0.1"

			opts, err := OptionsFromConfig(c, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if (opts.Translator != nil) != tt.translator || (opts.Decoder != nil) != tt.decoder {
				t.Errorf("Unexpected components: translator=%v decoder=%v", opts.Translator != nil, opts.Decoder != nil)
			}
			if opts.Mode != tt.mode || opts.DatagramSize != config.DefaultDatagramSize {
				t.Errorf("Unexpected options %+v", opts)
			}
			if !opts.RemoteRx.Equal(net.IPv4(127, 0, 0, 1)) {
				t.Errorf("Expected rx filter 127.0.0.1, got %v", opts.RemoteRx)
			}
		})
	}
}

func TestOptionsFromConfig_BadLayout(t *testing.T) {
	c := config.NewDefaultConfig()
	c.Bridge.Layout = "nope"
	if _, err := OptionsFromConfig(c, Options{}); err == nil {
		t.Error("Expected unknown layout error")
	}
}
