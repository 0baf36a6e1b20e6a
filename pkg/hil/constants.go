// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hil implements the compact HIL serial framing protocol used between
// the simulation bridge and the flight-control board.
//
// A frame is delimited by two magic bytes on each side, carries a one byte
// payload length and a one byte XOR checksum of the payload:
//
//	0x25 0x26 <len> <payload: len bytes> <checksum> 0x5E 0x26
//
// This package provides frame encoding, the incremental byte-at-a-time
// decoder, the outgoing wrapper frame template and decode statistics.
package hil

// Protocol framing bytes
const (
	Header0 = 0x25 // '%'
	Header1 = 0x26 // '&'
	Footer0 = 0x5E // '^'
	Footer1 = 0x26 // '&'
)

// Frame size limits
const (
	// ScratchSize is the capacity of the decoder's frame buffer.
	ScratchSize = 64

	// FrameOverhead is the number of bytes up to and including the first
	// footer byte that are not payload: two header bytes, the length byte,
	// the checksum byte and the first footer byte.
	FrameOverhead = 5

	// overflowIndex is the running length at which an unfinished frame is
	// abandoned. Three bytes of the scratch buffer stay in reserve for the
	// final footer byte.
	overflowIndex = ScratchSize - 3

	// MaxPayloadSize is the largest payload whose first footer byte still
	// lands before overflowIndex.
	MaxPayloadSize = overflowIndex - FrameOverhead

	// MaxFrameSize is the encoded size of a frame carrying MaxPayloadSize bytes.
	MaxFrameSize = MaxPayloadSize + FrameOverhead + 1
)

// Byte offsets inside an encoded frame
const (
	lengthIndex  = 2
	payloadIndex = 3
)

// Decoder states (internal)
const (
	stateAwaitHeader0 = iota
	stateAwaitHeader1
	stateAccumulating
	stateAwaitFooter1
)

// Wrapper frame layout
const (
	// WrapperSize is the encoded size of the outgoing wrapper frame.
	WrapperSize = WrapperPayloadSize + FrameOverhead + 1

	// WrapperPayloadSize is the payload length carried by the wrapper frame.
	WrapperPayloadSize = 16

	// DefaultWrapperSourceOffset is the payload offset of the decoded frame
	// that is copied into the wrapper.
	DefaultWrapperSourceOffset = 20

	// DefaultWrapperDestOffset is the wrapper payload offset receiving the copy.
	DefaultWrapperDestOffset = 14

	// wrapperCopyWidth is the number of bytes copied per decode.
	wrapperCopyWidth = 2
)
