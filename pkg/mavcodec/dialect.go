// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mavcodec wraps the MAVLink envelope codec used on the autopilot
// side of the bridge: a dialect with the SLUGS GPS date/time message, an
// encoder producing wire bytes, and an incremental parser for serial chunks.
package mavcodec

import (
	"github.com/bluenviron/gomavlib/v2/pkg/dialect"
	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v2/pkg/message"
)

// MessageIDGpsDateTime is the SLUGS GPS_DATE_TIME message id
const MessageIDGpsDateTime = 179

// MessageGpsDateTime is the GPS receiver's UTC date and time as sent by the
// SLUGS autopilot. Only the first seven fields are filled by the bridge.
type MessageGpsDateTime struct {
	Year        uint8
	Month       uint8
	Day         uint8
	Hour        uint8
	Min         uint8
	Sec         uint8
	ClockStat   uint8 `mavname:"clockStat"`
	VisSat      uint8 `mavname:"visSat"`
	UseSat      uint8 `mavname:"useSat"`
	GppGl       uint8 `mavname:"GppGl"`
	SigUsedMask uint8 `mavname:"sigUsedMask"`
	PercentUsed uint8 `mavname:"percentUsed"`
}

// GetID implements message.Message
func (*MessageGpsDateTime) GetID() uint32 {
	return MessageIDGpsDateTime
}

// Dialect is the common dialect extended with GPS_DATE_TIME
var Dialect = &dialect.Dialect{
	Version:  common.Dialect.Version,
	Messages: dialectMessages(),
}

func dialectMessages() []message.Message {
	msgs := make([]message.Message, 0, len(common.Dialect.Messages)+1)
	for _, m := range common.Dialect.Messages {
		if m.GetID() == MessageIDGpsDateTime {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, &MessageGpsDateTime{})
}
