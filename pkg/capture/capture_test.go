// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ============================================================
// CBOR Record Tests
// ============================================================

func TestRecord_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{"sensor datagram", Record{Time: time.Unix(1700000000, 123456789), Direction: UDPIn, Data: []byte{1, 2, 3}}},
		{"pwm datagram", Record{Time: time.Unix(1700000001, 0), Direction: UDPOut, Data: make([]byte, 20)}},
		{"empty chunk", Record{Time: time.Unix(1700000002, 5), Direction: SerialIn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalRecord(tt.record)
			if err != nil {
				t.Fatalf("MarshalRecord failed: %v", err)
			}
			back, err := ParseRecord(data)
			if err != nil {
				t.Fatalf("ParseRecord failed: %v", err)
			}
			if !back.Time.Equal(tt.record.Time) || back.Direction != tt.record.Direction {
				t.Errorf("Header mismatch: expected %+v, got %+v", tt.record, back)
			}
			if !bytes.Equal(back.Data, tt.record.Data) {
				t.Errorf("Data mismatch: expected %X, got %X", tt.record.Data, back.Data)
			}
		})
	}
}

func TestParseRecord_Invalid(t *testing.T) {
	encode := func(v interface{}) []byte {
		data, err := cbor.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not cbor", []byte{0xFF, 0xFF}},
		{"one element", encode([]interface{}{uint8(0)})},
		{"direction out of range", encode([]interface{}{uint8(9), map[int]interface{}{0: 1, 1: []byte{}}})},
		{"direction not uint", encode([]interface{}{"udp", map[int]interface{}{0: 1, 1: []byte{}}})},
		{"payload not map", encode([]interface{}{uint8(0), "x"})},
		{"missing time", encode([]interface{}{uint8(0), map[int]interface{}{1: []byte{}}})},
		{"missing data", encode([]interface{}{uint8(0), map[int]interface{}{0: 1}})},
		{"string key", encode([]interface{}{uint8(0), map[string]interface{}{"t": 1}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRecord(tt.data); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestDirection_String(t *testing.T) {
	names := map[Direction]string{
		UDPIn:         "udp_in",
		SerialOut:     "serial_out",
		SerialIn:      "serial_in",
		UDPOut:        "udp_out",
		Direction(42): "unknown(42)",
	}
	for d, want := range names {
		if d.String() != want {
			t.Errorf("Expected %s, got %s", want, d.String())
		}
	}
}

// ============================================================
// Capture File Tests
// ============================================================

func TestFile_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []struct {
		dir  Direction
		data []byte
	}{
		{UDPIn, bytes.Repeat([]byte{0xAB}, 113)},
		{SerialOut, []byte{0xFE, 0x01}},
		{SerialIn, []byte("hello")},
		{UDPOut, make([]byte, 20)},
	}
	for _, in := range inputs {
		if err := w.Write(in.dir, in.data); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.Count() != uint64(len(inputs)) {
		t.Errorf("Expected %d records, got %d", len(inputs), w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != len(inputs) {
		t.Fatalf("Expected %d records, got %d", len(inputs), len(records))
	}
	for i, rec := range records {
		if rec.Direction != inputs[i].dir || !bytes.Equal(rec.Data, inputs[i].data) {
			t.Errorf("Record %d mismatch: %+v", i, rec)
		}
		if i > 0 && rec.Time.Before(records[i-1].Time) {
			t.Errorf("Record %d is older than its predecessor", i)
		}
	}
}

func TestReader_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(UDPIn, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	r := NewReader(bytes.NewReader(data[:len(data)-2]))
	if _, err := r.Next(); err == nil {
		t.Error("Expected error for truncated record")
	}
}

// ============================================================
// Pcap Tests
// ============================================================

func udpPacket(t *testing.T, dstPort uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(255, 255, 255, 255),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("SerializeLayers failed: %v", err)
	}
	return buf.Bytes()
}

func TestReadPcap(t *testing.T) {
	var file bytes.Buffer
	pw := pcapgo.NewWriter(&file)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}

	start := time.Unix(1700000000, 0)
	packets := []struct {
		port    uint16
		payload []byte
	}{
		{5679, bytes.Repeat([]byte{0x01}, 113)},
		{53, []byte("dns")},
		{5679, bytes.Repeat([]byte{0x02}, 113)},
	}
	for i, p := range packets {
		data := udpPacket(t, p.port, p.payload)
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * 10 * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			t.Fatal(err)
		}
	}

	records, err := ReadPcap(bytes.NewReader(file.Bytes()), 5679)
	if err != nil {
		t.Fatalf("ReadPcap failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 sensor datagrams, got %d", len(records))
	}
	if records[1].Data[0] != 0x02 || len(records[1].Data) != 113 {
		t.Errorf("Unexpected second payload % X", records[1].Data[:4])
	}
	if records[0].Direction != UDPIn {
		t.Errorf("Expected UDPIn, got %s", records[0].Direction)
	}
	if !records[1].Time.Equal(start.Add(20 * time.Millisecond)) {
		t.Errorf("Unexpected timestamp %v", records[1].Time)
	}

	all, err := ReadPcap(bytes.NewReader(file.Bytes()), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Port 0 should keep every datagram, got %d", len(all))
	}
}

func TestReadPcap_NotPcap(t *testing.T) {
	if _, err := ReadPcap(bytes.NewReader([]byte("not a pcap file at all")), 0); err == nil {
		t.Error("Expected error for a non-pcap stream")
	}
}
