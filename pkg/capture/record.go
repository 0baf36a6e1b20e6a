// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records the bridge's traffic to CBOR capture files and
// reads it back, together with UDP sensor datagrams from pcap files.
package capture

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction says where a captured buffer came from or went to
type Direction uint8

const (
	UDPIn     Direction = iota // sensor datagram from the simulator
	SerialOut                  // bytes written to the flight controller
	SerialIn                   // chunk read from the flight controller
	UDPOut                     // datagram sent to the simulator
)

func (d Direction) String() string {
	switch d {
	case UDPIn:
		return "udp_in"
	case SerialOut:
		return "serial_out"
	case SerialIn:
		return "serial_in"
	case UDPOut:
		return "udp_out"
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// Record payload map keys
const (
	keyTime = 0
	keyData = 1
)

// Record is one captured buffer
type Record struct {
	Time      time.Time
	Direction Direction
	Data      []byte
}

// items returns the CBOR form of r: [direction, {0: unix_ns, 1: data}]
func (r Record) items() []interface{} {
	data := r.Data
	if data == nil {
		data = []byte{}
	}
	return []interface{}{
		uint8(r.Direction),
		map[int]interface{}{
			keyTime: r.Time.UnixNano(),
			keyData: data,
		},
	}
}

// MarshalRecord encodes r as a single CBOR item
func MarshalRecord(r Record) ([]byte, error) {
	return cbor.Marshal(r.items())
}

// ParseRecord decodes a single CBOR capture item
func ParseRecord(data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, fmt.Errorf("empty CBOR record")
	}
	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return Record{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return recordFromItems(msg)
}

func recordFromItems(msg []interface{}) (Record, error) {
	var r Record

	if len(msg) != 2 {
		return r, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	switch v := msg[0].(type) {
	case uint64:
		if v > uint64(UDPOut) {
			return r, fmt.Errorf("direction out of range: %d", v)
		}
		r.Direction = Direction(v)
	default:
		return r, fmt.Errorf("expected uint for direction, got %T", msg[0])
	}

	payload, err := intKeyedMap(msg[1])
	if err != nil {
		return r, err
	}

	ns, ok := getMapInt(payload, keyTime)
	if !ok {
		return r, fmt.Errorf("record has no timestamp")
	}
	r.Time = time.Unix(0, ns)

	r.Data, ok = getMapBytes(payload, keyData)
	if !ok {
		return r, fmt.Errorf("record has no data")
	}
	return r, nil
}

func intKeyedMap(v interface{}) (map[int]interface{}, error) {
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("expected map for record payload, got %T", v)
	}
	out := make(map[int]interface{}, len(m))
	for key, val := range m {
		switch k := key.(type) {
		case uint64:
			out[int(k)] = val
		case int64:
			out[int(k)] = val
		default:
			return nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return out, nil
}

func getMapInt(m map[int]interface{}, key int) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case uint64:
		return int64(val), true
	}
	return 0, false
}

func getMapBytes(m map[int]interface{}, key int) ([]byte, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	if val, ok := v.([]byte); ok {
		return val, true
	}
	return nil, false
}
