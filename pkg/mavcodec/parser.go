// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mavcodec

import (
	"bytes"
	"fmt"

	"github.com/bluenviron/gomavlib/v2/pkg/dialect"
	"github.com/bluenviron/gomavlib/v2/pkg/frame"
)

// Envelope constants
const (
	magicV1 = 0xFE
	magicV2 = 0xFD

	overheadV1    = 8  // magic, len, seq, sys, comp, id, crc16
	overheadV2    = 12 // magic, len, incompat, compat, seq, sys, comp, id24, crc16
	signatureSize = 13

	incompatSigned = 0x01

	// Largest envelope: v2 with 255 payload bytes and a signature
	maxEnvelope = 255 + overheadV2 + signatureSize
)

// ParserStats counts what the parser saw
type ParserStats struct {
	Frames       uint64 // envelopes decoded
	SkippedBytes uint64 // bytes outside any envelope
	BadFrames    uint64 // complete envelopes the codec rejected
}

// Parser decodes MAVLink envelopes from a byte stream delivered in chunks of
// any size. Bytes of an incomplete envelope are kept until the next call.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	rw    *dialect.ReadWriter
	buf   []byte
	stats ParserStats
}

// NewParser creates a parser for Dialect
func NewParser() (*Parser, error) {
	rw, err := dialect.NewReadWriter(Dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to build dialect: %w", err)
	}
	return &Parser{rw: rw, buf: make([]byte, 0, maxEnvelope)}, nil
}

// Stats returns a copy of the parser counters
func (p *Parser) Stats() ParserStats {
	return p.stats
}

// Buffered returns the number of bytes held for an incomplete envelope
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset drops any buffered partial envelope
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Feed consumes data one byte at a time and returns every envelope completed
// by it, in stream order.
func (p *Parser) Feed(data []byte) []frame.Frame {
	var frames []frame.Frame
	for _, b := range data {
		if len(p.buf) == 0 && !isMagic(b) {
			p.stats.SkippedBytes++
			continue
		}
		p.buf = append(p.buf, b)
		frames = p.drain(frames)
	}
	return frames
}

// drain decodes every complete envelope at the front of the buffer
func (p *Parser) drain(frames []frame.Frame) []frame.Frame {
	for len(p.buf) > 0 {
		if !isMagic(p.buf[0]) {
			p.stats.SkippedBytes++
			p.resync(1)
			continue
		}
		need := envelopeLength(p.buf)
		if need == 0 || len(p.buf) < need {
			return frames
		}

		f, err := p.decode(p.buf[:need])
		if err != nil {
			// Not an envelope after all. Resume at the next magic byte.
			p.stats.BadFrames++
			p.stats.SkippedBytes++
			p.resync(1)
			continue
		}

		p.stats.Frames++
		frames = append(frames, f)
		p.resync(need)
	}
	return frames
}

// resync drops n bytes and everything up to the next magic byte
func (p *Parser) resync(n int) {
	rest := p.buf[n:]
	i := nextMagic(rest)
	if i < 0 {
		p.stats.SkippedBytes += uint64(len(rest))
		p.buf = p.buf[:0]
		return
	}
	p.stats.SkippedBytes += uint64(i)
	p.buf = append(p.buf[:0], rest[i:]...)
}

func isMagic(b byte) bool {
	return b == magicV1 || b == magicV2
}

// nextMagic returns the index of the first magic byte in buf, or -1
func nextMagic(buf []byte) int {
	for i, b := range buf {
		if isMagic(b) {
			return i
		}
	}
	return -1
}

func (p *Parser) decode(raw []byte) (frame.Frame, error) {
	r, err := frame.NewReader(frame.ReaderConf{
		Reader:    bytes.NewReader(raw),
		DialectRW: p.rw,
	})
	if err != nil {
		return nil, err
	}
	return r.Read()
}

// envelopeLength returns the total length of the envelope starting at
// buf[0], or 0 when not enough header bytes arrived yet
func envelopeLength(buf []byte) int {
	switch buf[0] {
	case magicV1:
		if len(buf) < 2 {
			return 0
		}
		return int(buf[1]) + overheadV1
	case magicV2:
		if len(buf) < 3 {
			return 0
		}
		n := int(buf[1]) + overheadV2
		if buf[2]&incompatSigned != 0 {
			n += signatureSize
		}
		return n
	}
	return 0
}
