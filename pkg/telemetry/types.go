// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry maps the simulator's fixed-layout UDP sensor datagrams to
// typed telemetry records, schedules which records are sent to the autopilot,
// and packs actuator PWM datagrams going back to the simulator.
package telemetry

import (
	"errors"
	"fmt"
)

// MessageType identifies one telemetry record kind. The set is closed:
// every value below AllTypes' length has a record, a width and an offset in
// every Layout.
type MessageType int

// Telemetry message types
const (
	MsgGPS MessageType = iota
	MsgGPSDateTime
	MsgAirData
	MsgRawIMU
	MsgRawPressure
	MsgAttitude
	MsgLocalPosition

	messageTypeCount
)

// Record widths in bytes, measured from the record base offset
const (
	GPSWidth           = 18
	GPSDateTimeWidth   = 25
	AirDataWidth       = 10
	RawIMUWidth        = 18
	RawPressureWidth   = 6
	AttitudeWidth      = 28
	LocalPositionWidth = 24
)

// ErrUnknownMessageType is returned for names or values outside the closed set
var ErrUnknownMessageType = errors.New("unknown message type")

var messageTypeNames = [messageTypeCount]string{
	MsgGPS:           "gps",
	MsgGPSDateTime:   "gps_date_time",
	MsgAirData:       "air_data",
	MsgRawIMU:        "raw_imu",
	MsgRawPressure:   "raw_pressure",
	MsgAttitude:      "attitude",
	MsgLocalPosition: "local_position",
}

var messageTypeWidths = [messageTypeCount]int{
	MsgGPS:           GPSWidth,
	MsgGPSDateTime:   GPSDateTimeWidth,
	MsgAirData:       AirDataWidth,
	MsgRawIMU:        RawIMUWidth,
	MsgRawPressure:   RawPressureWidth,
	MsgAttitude:      AttitudeWidth,
	MsgLocalPosition: LocalPositionWidth,
}

// AllTypes returns every message type in declaration order
func AllTypes() []MessageType {
	types := make([]MessageType, messageTypeCount)
	for i := range types {
		types[i] = MessageType(i)
	}
	return types
}

// Valid reports whether t is a member of the closed set
func (t MessageType) Valid() bool {
	return t >= 0 && t < messageTypeCount
}

func (t MessageType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return messageTypeNames[t]
}

// Width returns the record width in bytes, or 0 for an invalid type
func (t MessageType) Width() int {
	if !t.Valid() {
		return 0
	}
	return messageTypeWidths[t]
}

// ParseMessageType resolves a configuration name such as "raw_imu"
func ParseMessageType(name string) (MessageType, error) {
	for i, n := range messageTypeNames {
		if n == name {
			return MessageType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMessageType, name)
}
