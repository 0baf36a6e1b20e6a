// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway runs the bridge I/O loop between the flight controller
// link and the simulator's UDP socket.
//
// Reads from both sides happen on their own goroutines but every buffer is
// handed to a single reactor goroutine, which is the only owner of the
// translator and frame decoder state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Thermoquad/hilbridge/pkg/bridge"
	"github.com/Thermoquad/hilbridge/pkg/capture"
	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/log"
)

// Options configures a Gateway
type Options struct {
	// Mode is config.ModeMAVLink or config.ModeHIL
	Mode string

	// Translator drives the mavlink mode
	Translator *bridge.Translator
	// Decoder drives the hil mode
	Decoder *hil.Decoder

	ReadChunk    int
	DatagramSize int

	// RemoteRx restricts sensor datagrams to one sender, nil accepts all
	RemoteRx net.IP

	// IdleTimeout resets a half-received HIL frame after that much serial
	// silence. Zero disables it.
	IdleTimeout time.Duration

	Capture *capture.Writer
	Events  chan<- Event
}

// Gateway moves data between a flight controller link and a UDP socket
type Gateway struct {
	link   io.ReadWriter
	conn   net.PacketConn
	remote net.Addr
	opts   Options

	// mu guards the translator, the decoder and the counters so Snapshot
	// may be called while Run is active
	mu        sync.Mutex
	counters  LinkCounters
	startTime time.Time

	closeOnce sync.Once

	// replay blocks on a full event channel instead of dropping
	replay bool
}

type datagram struct {
	data []byte
	from net.Addr
}

// New creates a gateway that reads sensor datagrams from conn, sends
// outgoing datagrams to remote and exchanges bytes with link.
func New(link io.ReadWriter, conn net.PacketConn, remote net.Addr, opts Options) (*Gateway, error) {
	if link == nil || conn == nil || remote == nil {
		return nil, fmt.Errorf("gateway needs a link, a UDP socket and a remote address")
	}
	switch opts.Mode {
	case config.ModeMAVLink:
		if opts.Translator == nil {
			return nil, fmt.Errorf("%s mode needs a translator", opts.Mode)
		}
	case config.ModeHIL:
		if opts.Decoder == nil {
			return nil, fmt.Errorf("%s mode needs a frame decoder", opts.Mode)
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if opts.ReadChunk <= 0 {
		opts.ReadChunk = config.DefaultReadChunk
	}
	if opts.DatagramSize <= 0 {
		opts.DatagramSize = config.DefaultDatagramSize
	}

	return &Gateway{
		link:      link,
		conn:      conn,
		remote:    remote,
		opts:      opts,
		startTime: time.Now(),
	}, nil
}

// NewFromConfig opens the UDP socket described by c and builds the mode's
// translation state. Capture and Events are taken from opts; everything
// else comes from c.
func NewFromConfig(c *config.Config, link io.ReadWriter, opts Options) (*Gateway, error) {
	remote, err := ResolveRemote(c.UDP.RemoteTxAddress, c.UDP.RemotePort, c.UDP.Broadcast)
	if err != nil {
		return nil, err
	}
	if opts, err = OptionsFromConfig(c, opts); err != nil {
		return nil, err
	}

	conn, err := ListenUDP(c.UDP.LocalPort)
	if err != nil {
		return nil, err
	}
	g, err := New(link, conn, remote, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return g, nil
}

// OptionsFromConfig fills opts from c and creates a fresh translator or
// frame decoder for the configured mode
func OptionsFromConfig(c *config.Config, opts Options) (Options, error) {
	rx, err := ParseRemoteRx(c.UDP.RemoteRxAddress)
	if err != nil {
		return opts, err
	}

	opts.Mode = c.Bridge.Mode
	opts.ReadChunk = c.Link.ReadChunk
	opts.DatagramSize = c.UDP.DatagramSize
	opts.RemoteRx = rx
	opts.IdleTimeout = c.IdleTimeout()

	switch c.Bridge.Mode {
	case config.ModeMAVLink:
		tc, err := c.TranslatorConfig()
		if err != nil {
			return opts, err
		}
		if opts.Translator, err = bridge.NewTranslator(tc); err != nil {
			return opts, err
		}
	case config.ModeHIL:
		w, err := hil.NewWrapperWithOffsets(c.Bridge.WrapperSourceOffset, c.Bridge.WrapperDestOffset)
		if err != nil {
			return opts, err
		}
		opts.Decoder = hil.NewDecoderWithWrapper(w)
	}
	return opts, nil
}

// LocalAddr returns the address sensor datagrams are received on
func (g *Gateway) LocalAddr() net.Addr {
	return g.conn.LocalAddr()
}

// Mode returns the protocol mode
func (g *Gateway) Mode() string {
	return g.opts.Mode
}

// Run bridges until ctx is cancelled or either side fails. The link and
// the UDP socket are closed when Run returns. Cancellation is not an error.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 16)
	datagrams := make(chan datagram, 16)
	errs := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go g.readSerial(ctx, &wg, chunks, errs)
	go g.readUDP(ctx, &wg, datagrams, errs)
	defer func() {
		cancel()
		g.close()
		wg.Wait()
	}()

	var idle *time.Timer
	var idleC <-chan time.Time
	if g.opts.Mode == config.ModeHIL && g.opts.IdleTimeout > 0 {
		idle = time.NewTimer(g.opts.IdleTimeout)
		idle.Stop()
		idleC = idle.C
		defer idle.Stop()
	}

	log.Info("Bridging %s mode, sending to %s", g.opts.Mode, g.remote)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case chunk := <-chunks:
			g.handleSerial(chunk)
			if idle != nil {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(g.opts.IdleTimeout)
			}
		case dg := <-datagrams:
			g.handleDatagram(dg.data, dg.from)
		case <-idleC:
			g.expireIdle()
		}
	}
}

func (g *Gateway) close() {
	g.closeOnce.Do(func() {
		g.conn.Close()
		if c, ok := g.link.(io.Closer); ok {
			c.Close()
		}
	})
}

func (g *Gateway) readSerial(ctx context.Context, wg *sync.WaitGroup, out chan<- []byte, errs chan<- error) {
	defer wg.Done()
	buf := make([]byte, g.opts.ReadChunk)
	for {
		n, err := g.link.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				errs <- fmt.Errorf("serial read: %w", err)
			}
			return
		}
	}
}

func (g *Gateway) readUDP(ctx context.Context, wg *sync.WaitGroup, out chan<- datagram, errs chan<- error) {
	defer wg.Done()
	// One spare byte tells oversized datagrams apart from full-size ones
	buf := make([]byte, g.opts.DatagramSize+1)
	for {
		n, from, err := g.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				errs <- fmt.Errorf("udp read: %w", err)
				return
			}
			log.Warning("UDP receive failed: %v", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case out <- datagram{data: data, from: from}:
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) accept(from net.Addr) bool {
	if g.opts.RemoteRx == nil {
		return true
	}
	ua, ok := from.(*net.UDPAddr)
	return ok && ua.IP.Equal(g.opts.RemoteRx)
}

func (g *Gateway) handleDatagram(data []byte, from net.Addr) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.accept(from) {
		g.counters.Filtered++
		g.emit(EventFiltered, len(data), from.String())
		return
	}
	if len(data) > g.opts.DatagramSize {
		g.counters.Oversized++
		data = data[:g.opts.DatagramSize]
	}
	g.counters.DatagramsIn++
	g.record(capture.UDPIn, data)

	switch g.opts.Mode {
	case config.ModeMAVLink:
		sel := g.opts.Translator.NextSelection()
		out, err := g.opts.Translator.OnUDPDatagram(data)
		if err != nil {
			log.Debug("Datagram from %s dropped: %v", from, err)
			g.emit(EventError, len(data), err.Error())
			return
		}
		if g.writeSerial(out) {
			g.emit(EventTelemetry, len(out), sel.String())
		}
	case config.ModeHIL:
		if g.writeSerial(data) {
			g.emit(EventRawToSerial, len(data), "")
		}
	}
}

func (g *Gateway) handleSerial(chunk []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters.SerialChunks++
	g.counters.SerialBytesIn += uint64(len(chunk))
	g.record(capture.SerialIn, chunk)

	switch g.opts.Mode {
	case config.ModeMAVLink:
		before := g.opts.Translator.PassThrough()
		out := g.opts.Translator.OnSerialChunk(chunk)
		kind := EventPwm
		if g.opts.Translator.PassThrough() != before {
			kind = EventPassThrough
		}
		for _, dg := range out {
			if g.sendUDP(dg) {
				g.emit(kind, len(dg), "")
			}
		}
	case config.ModeHIL:
		d := g.opts.Decoder
		for _, b := range chunk {
			frame, err := d.DecodeByte(b)
			if err != nil {
				log.Debug("HIL frame rejected: %v", err)
				g.emit(EventError, 0, err.Error())
			}
			if frame != nil {
				g.emit(EventFrame, int(frame.Length()), fmt.Sprintf("% X", frame.Payload()))
			}
		}
		if d.TakeNewData() && d.Wrapper() != nil {
			g.sendUDP(d.Wrapper().Bytes())
		}
	}
}

func (g *Gateway) expireIdle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.opts.Decoder.ExpireIdle() {
		log.Debug("Serial link idle for %v, dropped partial frame", g.opts.IdleTimeout)
		g.emit(EventError, 0, "idle reset")
	}
}

func (g *Gateway) writeSerial(data []byte) bool {
	if _, err := g.link.Write(data); err != nil {
		g.counters.WriteErrors++
		log.Error("Serial write failed: %v", err)
		return false
	}
	g.counters.SerialBytesOut += uint64(len(data))
	g.record(capture.SerialOut, data)
	return true
}

func (g *Gateway) sendUDP(data []byte) bool {
	if _, err := g.conn.WriteTo(data, g.remote); err != nil {
		g.counters.WriteErrors++
		log.Error("UDP send to %s failed: %v", g.remote, err)
		return false
	}
	g.counters.DatagramsOut++
	g.record(capture.UDPOut, data)
	return true
}

func (g *Gateway) record(dir capture.Direction, data []byte) {
	if g.opts.Capture == nil {
		return
	}
	if err := g.opts.Capture.Write(dir, data); err != nil {
		log.Warning("Capture disabled: %v", err)
		g.opts.Capture = nil
	}
}

func (g *Gateway) emit(kind EventKind, size int, detail string) {
	if g.opts.Events == nil {
		return
	}
	ev := Event{Time: time.Now(), Kind: kind, Size: size, Detail: detail}
	if g.replay {
		g.opts.Events <- ev
		return
	}
	select {
	case g.opts.Events <- ev:
	default:
		g.counters.EventsDropped++
	}
}
