// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

const (
	ConfigDir  = ".hilbridge"
	ConfigFile = "config.yaml"

	DefaultSerialPortUnix    = "/dev/ttyUSB0"
	DefaultSerialPortWindows = "COM1"
	DefaultBaudRate          = 115200
	DefaultReadChunk         = 100

	DefaultLocalPort       = 5679
	DefaultRemotePort      = 5678
	DefaultRemoteTxAddress = "255.255.255.255"
	DefaultRemoteRxAddress = AnyAddress
	DefaultDatagramSize    = 113

	DefaultSystemID       = 100
	DefaultComponentID    = 1
	DefaultMAVLinkVersion = 1

	DefaultMode         = ModeMAVLink
	DefaultLayout       = "slugs"
	DefaultPwmTimestamp = "servo"
	DefaultLogLevel     = "info"

	// AnyAddress accepts sensor datagrams from every source
	AnyAddress = "any"

	// Largest UDP payload over IPv4
	MaxDatagramSize = 65507
)

// Protocol modes
const (
	// ModeMAVLink translates sensor datagrams into MAVLink telemetry and
	// servo outputs into PWM datagrams
	ModeMAVLink = "mavlink"
	// ModeHIL decodes HIL frames from the serial link and forwards sensor
	// datagrams to it unchanged
	ModeHIL = "hil"
)
