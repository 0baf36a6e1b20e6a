// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import "fmt"

// Wrapper is the outgoing wrapper frame template. It is itself a valid HIL
// frame carrying WrapperPayloadSize bytes, patched in place with fields of
// every delivered frame.
//
// A Wrapper is owned by a single decoder and is not safe for concurrent use.
type Wrapper struct {
	buf          [WrapperSize]byte
	sourceOffset int
	destOffset   int
	updates      uint64
}

// NewWrapper creates a wrapper with the default copy offsets
func NewWrapper() *Wrapper {
	w, _ := NewWrapperWithOffsets(DefaultWrapperSourceOffset, DefaultWrapperDestOffset)
	return w
}

// NewWrapperWithOffsets creates a wrapper that copies two bytes from
// sourceOffset of each decoded payload to destOffset of the wrapper payload.
func NewWrapperWithOffsets(sourceOffset, destOffset int) (*Wrapper, error) {
	if sourceOffset < 0 || sourceOffset+wrapperCopyWidth > MaxPayloadSize {
		return nil, fmt.Errorf("wrapper source offset %d out of range (max %d)", sourceOffset, MaxPayloadSize-wrapperCopyWidth)
	}
	if destOffset < 0 || destOffset+wrapperCopyWidth > WrapperPayloadSize {
		return nil, fmt.Errorf("wrapper destination offset %d out of range (max %d)", destOffset, WrapperPayloadSize-wrapperCopyWidth)
	}
	w := &Wrapper{sourceOffset: sourceOffset, destOffset: destOffset}
	w.buf[0] = Header0
	w.buf[1] = Header1
	w.buf[lengthIndex] = WrapperPayloadSize
	w.buf[WrapperSize-2] = Footer0
	w.buf[WrapperSize-1] = Footer1
	return w, nil
}

// Update copies the configured field of payload into the wrapper and
// recomputes the derived checksum byte. It reports false, leaving the
// wrapper untouched, when payload is too short to hold the field.
func (w *Wrapper) Update(payload []byte) bool {
	if len(payload) < w.sourceOffset+wrapperCopyWidth {
		return false
	}
	dst := payloadIndex + w.destOffset
	copy(w.buf[dst:dst+wrapperCopyWidth], payload[w.sourceOffset:w.sourceOffset+wrapperCopyWidth])
	// The rest of the template payload is zero, so the XOR of the two
	// copied bytes is the checksum of the whole wrapper payload.
	w.buf[payloadIndex+WrapperPayloadSize] = w.buf[dst] ^ w.buf[dst+1]
	w.updates++
	return true
}

// Bytes returns a copy of the current wrapper frame
func (w *Wrapper) Bytes() []byte {
	out := make([]byte, WrapperSize)
	copy(out, w.buf[:])
	return out
}

// Field returns the two bytes most recently copied into the wrapper
func (w *Wrapper) Field() [2]byte {
	dst := payloadIndex + w.destOffset
	return [2]byte{w.buf[dst], w.buf[dst+1]}
}

// Updates returns how many times the wrapper was patched
func (w *Wrapper) Updates() uint64 {
	return w.updates
}
