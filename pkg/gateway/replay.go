// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"io"
	"net"
	"time"

	"github.com/Thermoquad/hilbridge/pkg/capture"
)

// replayAddr is reported as the sender of every replayed datagram
var replayAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

// replayLink swallows writes toward the flight controller
type replayLink struct{}

func (replayLink) Read([]byte) (int, error) { return 0, io.EOF }
func (replayLink) Write(p []byte) (int, error) { return len(p), nil }

// replayConn swallows datagrams toward the simulator
type replayConn struct{}

func (replayConn) ReadFrom([]byte) (int, net.Addr, error) { return 0, nil, net.ErrClosed }
func (replayConn) WriteTo(p []byte, _ net.Addr) (int, error) { return len(p), nil }
func (replayConn) Close() error { return nil }
func (replayConn) LocalAddr() net.Addr { return replayAddr }
func (replayConn) SetDeadline(time.Time) error { return nil }
func (replayConn) SetReadDeadline(time.Time) error { return nil }
func (replayConn) SetWriteDeadline(time.Time) error { return nil }

// Replay runs captured inputs through the mode's translation state without
// any I/O. UDPIn records are handled as sensor datagrams and SerialIn records
// as serial chunks; recorded outputs are skipped. The regenerated outputs go
// to opts.Capture when set. RemoteRx is ignored, and events are never
// dropped, so opts.Events must be drained concurrently.
func Replay(records []capture.Record, opts Options) (Snapshot, error) {
	opts.RemoteRx = nil
	g, err := New(replayLink{}, replayConn{}, replayAddr, opts)
	if err != nil {
		return Snapshot{}, err
	}
	g.replay = true
	for _, r := range records {
		switch r.Direction {
		case capture.UDPIn:
			g.handleDatagram(r.Data, replayAddr)
		case capture.SerialIn:
			g.handleSerial(r.Data)
		}
	}
	return g.Snapshot(), nil
}
