// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReadPcap extracts the UDP payloads sent to port from a pcap stream, as
// UDPIn records. Port 0 keeps every UDP datagram.
func ReadPcap(r io.Reader, port int) ([]Record, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}

	var out []Record
	source := gopacket.NewPacketSource(pr, pr.LinkType())
	for packet := range source.Packets() {
		layer := packet.Layer(layers.LayerTypeUDP)
		if layer == nil {
			continue
		}
		udp, ok := layer.(*layers.UDP)
		if !ok {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}
		out = append(out, Record{
			Time:      packet.Metadata().Timestamp,
			Direction: UDPIn,
			Data:      append([]byte(nil), udp.Payload...),
		})
	}
	return out, nil
}

// OpenPcap reads the UDP datagrams for port from a pcap file
func OpenPcap(path string, port int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file: %w", err)
	}
	defer f.Close()
	return ReadPcap(f, port)
}
