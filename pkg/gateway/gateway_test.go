// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"

	"github.com/Thermoquad/hilbridge/pkg/bridge"
	"github.com/Thermoquad/hilbridge/pkg/capture"
	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

const testTimeout = 2 * time.Second

// pipeLink stands in for the flight controller: the test writes serial
// input to w and reads everything the gateway wrote from written.
type pipeLink struct {
	r       *io.PipeReader
	w       *io.PipeWriter
	written chan []byte
}

func newPipeLink() *pipeLink {
	r, w := io.Pipe()
	return &pipeLink{r: r, w: w, written: make(chan []byte, 64)}
}

func (l *pipeLink) Read(p []byte) (int, error) { return l.r.Read(p) }

func (l *pipeLink) Write(p []byte) (int, error) {
	l.written <- append([]byte(nil), p...)
	return len(p), nil
}

func (l *pipeLink) Close() error { return l.r.Close() }

type harness struct {
	g    *Gateway
	link *pipeLink
	sim  *net.UDPConn
	stop func() error
	// wait blocks until Run returns on its own
	wait func() error
}

func newTranslator(t *testing.T) *bridge.Translator {
	t.Helper()
	layout, err := telemetry.BuiltinLayout(telemetry.LayoutSlugs)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := bridge.NewTranslator(bridge.Config{
		Layout:           layout,
		Codec:            mavcodec.DefaultConfig(),
		ForwardUndecoded: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func startGateway(t *testing.T, opts Options) *harness {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	sim, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}

	link := newPipeLink()
	g, err := New(link, conn, sim.LocalAddr(), opts)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	var once sync.Once
	var runErr error
	wait := func() error {
		once.Do(func() {
			select {
			case runErr = <-done:
			case <-time.After(testTimeout):
				t.Error("Run did not return")
			}
		})
		return runErr
	}
	stop := func() error {
		cancel()
		return wait()
	}
	t.Cleanup(func() {
		stop()
		sim.Close()
	})
	return &harness{g: g, link: link, sim: sim, stop: stop, wait: wait}
}

func (h *harness) sendSensor(t *testing.T, data []byte) {
	t.Helper()
	if _, err := h.sim.WriteTo(data, h.g.LocalAddr()); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) recvUDP(t *testing.T) []byte {
	t.Helper()
	h.sim.SetReadDeadline(time.Now().Add(testTimeout))
	buf := make([]byte, 2048)
	n, _, err := h.sim.ReadFrom(buf)
	if err != nil {
		t.Fatalf("No datagram from gateway: %v", err)
	}
	return buf[:n]
}

func (h *harness) serialOut(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-h.link.written:
		return data
	case <-time.After(testTimeout):
		t.Fatal("Nothing written to the serial link")
	}
	return nil
}

func (h *harness) waitFor(t *testing.T, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for {
		s := h.g.Snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s: %+v", what, s.Link)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func messageIDs(t *testing.T, data []byte) []uint32 {
	t.Helper()
	p, err := mavcodec.NewParser()
	if err != nil {
		t.Fatal(err)
	}
	var ids []uint32
	for _, f := range p.Feed(data) {
		ids = append(ids, f.GetMessage().GetID())
	}
	return ids
}

func servoChunk(t *testing.T, timeUsec uint32, ch1 uint16) []byte {
	t.Helper()
	enc, err := mavcodec.NewEncoder(mavcodec.Config{SystemID: 1, ComponentID: 1, Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	data, err := enc.Encode(&common.MessageServoOutputRaw{TimeUsec: timeUsec, Servo1Raw: ch1, Servo8Raw: 2000})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// ============================================================
// Construction
// ============================================================

func TestNew_Invalid(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	link := newPipeLink()

	tests := []struct {
		name string
		opts Options
	}{
		{"no mode", Options{}},
		{"unknown mode", Options{Mode: "xplane"}},
		{"mavlink without translator", Options{Mode: config.ModeMAVLink}},
		{"hil without decoder", Options{Mode: config.ModeHIL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(link, conn, conn.LocalAddr(), tt.opts); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := New(nil, conn, conn.LocalAddr(), Options{Mode: config.ModeHIL, Decoder: hil.NewDecoder()}); err == nil {
		t.Error("Expected error without a link")
	}
}

func TestResolveRemote(t *testing.T) {
	if _, err := ResolveRemote("255.255.255.255", 5678, false); err == nil {
		t.Error("Broadcast remote should need broadcast enabled")
	}
	addr, err := ResolveRemote("255.255.255.255", 5678, true)
	if err != nil {
		t.Fatal(err)
	}
	if addr.Port != 5678 || !addr.IP.Equal(net.IPv4bcast) {
		t.Errorf("Unexpected remote %v", addr)
	}
}

func TestParseRemoteRx(t *testing.T) {
	for _, addr := range []string{"", config.AnyAddress} {
		ip, err := ParseRemoteRx(addr)
		if err != nil || ip != nil {
			t.Errorf("%q should accept every sender, got %v %v", addr, ip, err)
		}
	}
	ip, err := ParseRemoteRx("192.168.1.20")
	if err != nil || !ip.Equal(net.IPv4(192, 168, 1, 20)) {
		t.Errorf("Unexpected rx filter %v %v", ip, err)
	}
}

// ============================================================
// MAVLink Mode
// ============================================================

func TestGateway_SensorToSerial(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t)})

	h.sendSensor(t, make([]byte, 113))
	out := h.serialOut(t)

	ids := messageIDs(t, out)
	if len(ids) != 2 || ids[0] != 24 || ids[1] != 30 {
		t.Errorf("Expected GPS_RAW_INT then ATTITUDE, got %v", ids)
	}

	s := h.waitFor(t, "translation", func(s Snapshot) bool { return s.Bridge.Translations == 1 })
	if s.Link.DatagramsIn != 1 || s.Link.SerialBytesOut != uint64(len(out)) {
		t.Errorf("Unexpected link counters %+v", s.Link)
	}
	if s.Layout != telemetry.LayoutSlugs || s.HIL != nil {
		t.Errorf("Unexpected snapshot %+v", s)
	}
}

func TestGateway_UndersizedSkipped(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t)})

	h.sendSensor(t, make([]byte, 50))
	h.waitFor(t, "undersized datagram", func(s Snapshot) bool { return s.Bridge.Undersized == 1 })

	h.sendSensor(t, make([]byte, 113))
	ids := messageIDs(t, h.serialOut(t))
	// The skipped datagram still consumed the first slot of the schedule
	if len(ids) != 2 || ids[0] != mavcodec.MessageIDGpsDateTime || ids[1] != 32 {
		t.Errorf("Expected GPS_DATE_TIME then LOCAL_POSITION_NED, got %v", ids)
	}
}

func TestGateway_OversizedTruncated(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t)})

	h.sendSensor(t, make([]byte, 150))
	h.serialOut(t)
	s := h.g.Snapshot()
	if s.Link.Oversized != 1 || s.Bridge.Translations != 1 {
		t.Errorf("Oversized datagram should be truncated and translated: %+v", s.Link)
	}
}

func TestGateway_ServoToPwm(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t)})

	if _, err := h.link.w.Write(servoChunk(t, 4242, 1500)); err != nil {
		t.Fatal(err)
	}
	dg := h.recvUDP(t)
	if len(dg) != telemetry.PwmDatagramSize {
		t.Fatalf("Expected %d byte PWM datagram, got %d", telemetry.PwmDatagramSize, len(dg))
	}
	cmd, err := telemetry.UnpackPwm(dg)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Channels[0] != 1500 || cmd.Channels[7] != 2000 || cmd.TimeUsec != 4242 {
		t.Errorf("Unexpected PWM command %+v", cmd)
	}

	s := h.waitFor(t, "PWM counters", func(s Snapshot) bool { return s.Link.DatagramsOut == 1 })
	if s.LastPwm == nil || s.LastPwm.TimeUsec != 4242 {
		t.Errorf("Snapshot should carry the last command, got %+v", s.LastPwm)
	}
}

func TestGateway_SerialPassThrough(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t)})

	if _, err := h.link.w.Write([]byte("boot ok\n")); err != nil {
		t.Fatal(err)
	}
	if dg := h.recvUDP(t); string(dg) != "boot ok\n" {
		t.Errorf("Expected chunk forwarded unchanged, got %q", dg)
	}
}

func TestGateway_RemoteRxFilter(t *testing.T) {
	h := startGateway(t, Options{
		Mode:       config.ModeMAVLink,
		Translator: newTranslator(t),
		RemoteRx:   net.IPv4(10, 0, 0, 1),
	})

	h.sendSensor(t, make([]byte, 113))
	s := h.waitFor(t, "filtered datagram", func(s Snapshot) bool { return s.Link.Filtered == 1 })
	if s.Link.DatagramsIn != 0 || s.Bridge.DatagramsIn != 0 {
		t.Errorf("Filtered datagram reached the translator: %+v", s.Link)
	}
	select {
	case data := <-h.link.written:
		t.Errorf("Nothing should reach the serial link, got % X", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGateway_Events(t *testing.T) {
	events := make(chan Event, 8)
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t), Events: events})

	h.sendSensor(t, make([]byte, 113))
	h.serialOut(t)

	select {
	case ev := <-events:
		if ev.Kind != EventTelemetry || ev.Detail != "gps+attitude" {
			t.Errorf("Unexpected event %+v", ev)
		}
	case <-time.After(testTimeout):
		t.Fatal("No event emitted")
	}
}

// ============================================================
// HIL Mode
// ============================================================

func TestGateway_HILFrameToWrapper(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeHIL, Decoder: hil.NewDecoder()})

	payload := make([]byte, 24)
	payload[hil.DefaultWrapperSourceOffset] = 0xAB
	payload[hil.DefaultWrapperSourceOffset+1] = 0xCD

	if _, err := h.link.w.Write(hil.MustEncodeFrame(payload)); err != nil {
		t.Fatal(err)
	}

	want := hil.NewWrapper()
	want.Update(payload)
	if dg := h.recvUDP(t); !bytes.Equal(dg, want.Bytes()) {
		t.Errorf("Wrapper mismatch:\n  got  % X\n  want % X", dg, want.Bytes())
	}

	s := h.waitFor(t, "decoded frame", func(s Snapshot) bool { return s.HIL.ValidFrames == 1 })
	if s.Bridge != nil {
		t.Errorf("hil mode should not report translator statistics")
	}
}

func TestGateway_HILSensorForwardedRaw(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeHIL, Decoder: hil.NewDecoder()})

	h.sendSensor(t, []byte{1, 2, 3, 4})
	if out := h.serialOut(t); !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Errorf("Expected datagram forwarded unchanged, got % X", out)
	}
}

func TestGateway_HILGarbageNoDatagram(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeHIL, Decoder: hil.NewDecoder()})

	if _, err := h.link.w.Write([]byte{0x00, 0x11, 0x22}); err != nil {
		t.Fatal(err)
	}
	s := h.waitFor(t, "framing error", func(s Snapshot) bool { return s.HIL.Failed() == 1 })
	if s.Link.DatagramsOut != 0 {
		t.Errorf("Garbage should not produce a wrapper datagram")
	}
}

func TestGateway_IdleReset(t *testing.T) {
	h := startGateway(t, Options{
		Mode:        config.ModeHIL,
		Decoder:     hil.NewDecoder(),
		IdleTimeout: 20 * time.Millisecond,
	})

	if _, err := h.link.w.Write([]byte{hil.Header0, hil.Header1, 24, 0x01}); err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "idle reset", func(s Snapshot) bool { return s.HIL.IdleResets == 1 })

	if _, err := h.link.w.Write(hil.MustEncodeFrame(make([]byte, 24))); err != nil {
		t.Fatal(err)
	}
	h.recvUDP(t)
	s := h.g.Snapshot()
	if s.HIL.ValidFrames != 1 || s.HIL.Failed() != 0 {
		t.Errorf("Frame after idle reset should decode cleanly: %+v", s.HIL)
	}
}

// ============================================================
// Lifecycle
// ============================================================

func TestGateway_SerialFailureStopsRun(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeHIL, Decoder: hil.NewDecoder()})

	h.link.w.CloseWithError(io.ErrUnexpectedEOF)

	if err := h.wait(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected serial read error, got %v", err)
	}
}

func TestGateway_Capture(t *testing.T) {
	var buf bytes.Buffer
	w := capture.NewWriter(&buf)
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t), Capture: w})

	h.sendSensor(t, make([]byte, 113))
	h.serialOut(t)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	records, err := capture.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Direction != capture.UDPIn || records[1].Direction != capture.SerialOut {
		t.Errorf("Expected udp_in then serial_out, got %+v", records)
	}
}

func TestSnapshot_String(t *testing.T) {
	h := startGateway(t, Options{Mode: config.ModeMAVLink, Translator: newTranslator(t)})
	out := h.g.Snapshot().String()
	for _, want := range []string{"Gateway mavlink", "Datagrams In", "Translations"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}
