// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"sort"
)

// Built-in layout names
const (
	LayoutSlugs   = "slugs"
	LayoutCompact = "compact"
)

// ErrUnknownLayout is returned when a layout name is not registered
var ErrUnknownLayout = errors.New("unknown layout")

// Layout is a versioned offset table: the byte offset of every record
// inside the simulator's UDP datagram. Layouts are immutable once built.
type Layout struct {
	name         string
	datagramSize int
	offsets      [messageTypeCount]int
}

// NewLayout builds a layout. Every message type must have an offset, and
// every record must fit inside datagramSize.
func NewLayout(name string, datagramSize int, offsets map[MessageType]int) (*Layout, error) {
	if name == "" {
		return nil, fmt.Errorf("layout name is empty")
	}
	l := &Layout{name: name, datagramSize: datagramSize}
	for _, t := range AllTypes() {
		off, ok := offsets[t]
		if !ok {
			return nil, fmt.Errorf("layout %s: missing offset for %s", name, t)
		}
		if off < 0 {
			return nil, fmt.Errorf("layout %s: negative offset %d for %s", name, off, t)
		}
		if off+t.Width() > datagramSize {
			return nil, fmt.Errorf("layout %s: %s at offset %d (width %d) exceeds datagram size %d",
				name, t, off, t.Width(), datagramSize)
		}
		l.offsets[t] = off
	}
	for t := range offsets {
		if !t.Valid() {
			return nil, fmt.Errorf("layout %s: %w: %d", name, ErrUnknownMessageType, int(t))
		}
	}
	return l, nil
}

// Name returns the layout's name
func (l *Layout) Name() string {
	return l.name
}

// DatagramSize returns the size of a complete sensor datagram
func (l *Layout) DatagramSize() int {
	return l.datagramSize
}

// Offset returns the record base offset of t
func (l *Layout) Offset(t MessageType) int {
	return l.offsets[t]
}

// MinSize returns the shortest datagram that holds the record of type t
func (l *Layout) MinSize(t MessageType) int {
	return l.offsets[t] + t.Width()
}

// Offsets returns a copy of the offset table keyed by type name
func (l *Layout) Offsets() map[string]int {
	out := make(map[string]int, messageTypeCount)
	for _, t := range AllTypes() {
		out[t.String()] = l.offsets[t]
	}
	return out
}

func mustLayout(name string, size int, offsets map[MessageType]int) *Layout {
	l, err := NewLayout(name, size, offsets)
	if err != nil {
		panic(err)
	}
	return l
}

var builtinLayouts = map[string]*Layout{
	// SLUGS simulator datagram. Date/time comes first and its visible
	// satellite count sits right after the GPS block.
	LayoutSlugs: mustLayout(LayoutSlugs, 113, map[MessageType]int{
		MsgGPSDateTime:   0,
		MsgGPS:           6,
		MsgAirData:       27,
		MsgRawIMU:        37,
		MsgRawPressure:   55,
		MsgAttitude:      61,
		MsgLocalPosition: 89,
	}),
	// Same records without the two pad bytes after the GPS block
	LayoutCompact: mustLayout(LayoutCompact, 111, map[MessageType]int{
		MsgGPSDateTime:   0,
		MsgGPS:           6,
		MsgAirData:       25,
		MsgRawIMU:        35,
		MsgRawPressure:   53,
		MsgAttitude:      59,
		MsgLocalPosition: 87,
	}),
}

// Registry resolves layouts by name. It starts with the built-in layouts
// and accepts additional ones loaded from configuration.
type Registry struct {
	layouts map[string]*Layout
}

// NewRegistry creates a registry holding the built-in layouts
func NewRegistry() *Registry {
	r := &Registry{layouts: make(map[string]*Layout, len(builtinLayouts))}
	for name, l := range builtinLayouts {
		r.layouts[name] = l
	}
	return r
}

// Register adds l, replacing any layout with the same name
func (r *Registry) Register(l *Layout) {
	r.layouts[l.name] = l
}

// Lookup returns the named layout
func (r *Registry) Lookup(name string) (*Layout, error) {
	l, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	return l, nil
}

// Names returns the registered layout names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinLayout returns one of the compiled-in layouts
func BuiltinLayout(name string) (*Layout, error) {
	return NewRegistry().Lookup(name)
}
