// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mavcodec

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/bluenviron/gomavlib/v2/pkg/dialect"
	"github.com/bluenviron/gomavlib/v2/pkg/frame"
	"github.com/bluenviron/gomavlib/v2/pkg/message"
)

// Default source ids of the autopilot the bridge impersonates
const (
	DefaultSystemID    = 100
	DefaultComponentID = 1
)

// ErrEncode wraps every failure reported by the envelope codec
var ErrEncode = errors.New("mavlink encode failed")

// Config selects the envelope the encoder produces
type Config struct {
	SystemID    byte
	ComponentID byte
	// Version is the MAVLink protocol version, 1 or 2
	Version int
}

// DefaultConfig returns the SLUGS autopilot identity on MAVLink 1
func DefaultConfig() Config {
	return Config{SystemID: DefaultSystemID, ComponentID: DefaultComponentID, Version: 1}
}

// Encoder turns MAVLink messages into wire bytes. It owns the outgoing
// sequence number, so one encoder must serve one link.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	writer *frame.Writer
	out    bytes.Buffer
	sent   uint64
}

// NewEncoder creates an encoder for conf
func NewEncoder(conf Config) (*Encoder, error) {
	var version frame.WriterOutVersion
	switch conf.Version {
	case 1:
		version = frame.V1
	case 2:
		version = frame.V2
	default:
		return nil, fmt.Errorf("unsupported MAVLink version %d", conf.Version)
	}

	rw, err := dialect.NewReadWriter(Dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to build dialect: %w", err)
	}

	e := &Encoder{}
	e.writer, err = frame.NewWriter(frame.WriterConf{
		Writer:         &e.out,
		DialectRW:      rw,
		OutVersion:     version,
		OutSystemID:    conf.SystemID,
		OutComponentID: conf.ComponentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create frame writer: %w", err)
	}
	return e, nil
}

// Encode returns the complete envelope for msg. The returned slice is owned
// by the caller.
func (e *Encoder) Encode(msg message.Message) ([]byte, error) {
	e.out.Reset()
	if err := e.writer.WriteMessage(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncode, MessageName(msg), err)
	}
	e.sent++
	return bytes.Clone(e.out.Bytes()), nil
}

// Sent returns the number of messages encoded
func (e *Encoder) Sent() uint64 {
	return e.sent
}

// MessageName returns the Go type name of msg without the package and
// "Message" prefix, e.g. "Attitude"
func MessageName(msg message.Message) string {
	if msg == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(msg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if len(name) > len("Message") && name[:len("Message")] == "Message" {
		return name[len("Message"):]
	}
	return name
}
