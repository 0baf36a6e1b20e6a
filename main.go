// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// hilbridge - Hardware-in-the-loop bridge
//
// Connects a flight controller on a serial port to a flight simulator over
// UDP, translating sensor datagrams into MAVLink telemetry and servo outputs
// into PWM datagrams.

package main

import (
	"os"

	"github.com/Thermoquad/hilbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
