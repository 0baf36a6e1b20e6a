// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import (
	"errors"
	"fmt"
	"time"
)

// Decode errors. Every error returned by DecodeByte wraps one of these and
// corresponds to exactly one increment of the failure counter.
var (
	ErrBadHeader = errors.New("bad header magic")
	ErrBadFooter = errors.New("bad footer magic")
	ErrOverflow  = errors.New("frame exceeds scratch buffer")
	ErrChecksum  = errors.New("checksum mismatch")
)

// Decoder implements the HIL frame decoder state machine.
//
// A Decoder is not safe for concurrent use. Feed it from a single goroutine.
type Decoder struct {
	state       int
	buffer      [ScratchSize]byte
	bufferIndex int

	// sameFailure suppresses counting more than one failure per contiguous
	// run of rejected bytes until a frame is delivered.
	sameFailure bool

	newData bool
	wrapper *Wrapper
	stats   *Statistics
}

// NewDecoder creates a decoder with a default wrapper frame
func NewDecoder() *Decoder {
	return NewDecoderWithWrapper(NewWrapper())
}

// NewDecoderWithWrapper creates a decoder that updates w on every delivered
// frame. w may be nil.
func NewDecoderWithWrapper(w *Wrapper) *Decoder {
	return &Decoder{
		state:   stateAwaitHeader0,
		wrapper: w,
		stats:   NewStatistics(),
	}
}

// Reset drops any partially built frame. Counters are not touched.
func (d *Decoder) Reset() {
	d.state = stateAwaitHeader0
	d.bufferIndex = 0
	d.buffer = [ScratchSize]byte{}
}

// ExpireIdle drops a partially built frame after the link went quiet.
// It reports whether a frame was in progress.
func (d *Decoder) ExpireIdle() bool {
	if !d.InProgress() {
		return false
	}
	d.Reset()
	d.stats.IdleResets++
	return true
}

// InProgress reports whether the decoder is in the middle of a frame
func (d *Decoder) InProgress() bool {
	return d.state != stateAwaitHeader0
}

// Statistics returns the decoder's counters
func (d *Decoder) Statistics() *Statistics {
	return d.stats
}

// Wrapper returns the wrapper frame updated by this decoder, or nil
func (d *Decoder) Wrapper() *Wrapper {
	return d.wrapper
}

// TakeNewData reports whether the wrapper changed since the last call and
// clears the flag.
func (d *Decoder) TakeNewData() bool {
	n := d.newData
	d.newData = false
	return n
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns the verified frame when b completes one, nil otherwise.
// A non-nil error means a failure was counted for this byte.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateAwaitHeader0:
		if b == Header0 {
			d.bufferIndex = 0
			d.append(b)
			d.state = stateAwaitHeader1
			return nil, nil
		}
		d.bufferIndex = 0
		return nil, d.failOnce(ErrBadHeader)

	case stateAwaitHeader1:
		switch b {
		case Header1:
			d.append(b)
			d.state = stateAccumulating
			return nil, nil
		case Header0:
			// A repeated header byte may still start a frame
			return nil, nil
		default:
			d.Reset()
			return nil, d.failOnce(ErrBadHeader)
		}

	case stateAccumulating:
		d.append(b)
		if d.bufferIndex > payloadIndex && d.bufferIndex == int(d.buffer[lengthIndex])+FrameOverhead {
			if b == Footer0 {
				d.state = stateAwaitFooter1
				return nil, nil
			}
			d.Reset()
			return nil, d.fail(fmt.Errorf("%w: got 0x%02X", ErrBadFooter, b))
		}
		if d.bufferIndex >= overflowIndex {
			d.Reset()
			return nil, d.fail(fmt.Errorf("%w: length byte %d (max %d)", ErrOverflow, d.lengthOrZero(), MaxPayloadSize))
		}
		return nil, nil

	case stateAwaitFooter1:
		d.append(b)
		if b != Footer1 {
			// The source protocol abandons the frame here without counting
			// a failure, unlike the checksum path below.
			d.Reset()
			d.stats.Abandoned++
			return nil, nil
		}

		length := int(d.buffer[lengthIndex])
		payload := d.buffer[payloadIndex : payloadIndex+length]
		embedded := d.buffer[payloadIndex+length]
		calculated := Checksum(payload)
		if calculated != embedded {
			d.Reset()
			return nil, d.fail(fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, calculated, embedded))
		}

		frame := &Frame{
			length:    uint8(length),
			payload:   append([]byte(nil), payload...),
			checksum:  embedded,
			timestamp: time.Now(),
		}
		d.deliver(frame)
		d.Reset()
		return frame, nil

	default:
		d.Reset()
		return nil, d.fail(fmt.Errorf("%w: invalid state %d", ErrBadHeader, d.state))
	}
}

// Decode feeds every byte of data through the decoder and returns the
// frames delivered along the way.
func (d *Decoder) Decode(data []byte) []*Frame {
	var frames []*Frame
	for _, b := range data {
		if frame, _ := d.DecodeByte(b); frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

func (d *Decoder) append(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}

func (d *Decoder) lengthOrZero() int {
	if d.bufferIndex > lengthIndex {
		return int(d.buffer[lengthIndex])
	}
	return 0
}

func (d *Decoder) deliver(frame *Frame) {
	d.stats.recordFrame(frame)
	d.sameFailure = false
	if d.wrapper != nil && d.wrapper.Update(frame.payload) {
		d.newData = true
	}
}

// fail counts a failure unconditionally and arms the same-failure flag
func (d *Decoder) fail(err error) error {
	d.stats.recordFailure(err)
	d.sameFailure = true
	return err
}

// failOnce counts a failure only for the first rejected byte of a run
func (d *Decoder) failOnce(err error) error {
	if d.sameFailure {
		return nil
	}
	return d.fail(err)
}
