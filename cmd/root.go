// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/log"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// cfg is the effective configuration: defaults, the config file, then flags
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hilbridge",
	Short: "Hardware-in-the-loop bridge between a flight controller and a simulator",
	Long: `hilbridge - Bridges a serial-attached flight controller and a UDP simulator.

Sensor datagrams from the simulator are translated into MAVLink telemetry for
the autopilot, and the autopilot's servo outputs are sent back as PWM
datagrams. The hil mode decodes the compact HIL framing instead.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from ~/.hilbridge/config.yaml when present; flags override
the file. For WebSocket authentication, the password is read from the
HILBRIDGE_PASSWORD environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: error, warning, info, debug")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig reads the config file and applies the persistent flags on top.
// A missing file is fine unless --config was given explicitly.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Link.Port = portName
	}
	if flags.Changed("baud") {
		c.Link.Baud = baudRate
	}
	if flags.Changed("url") {
		c.Link.URL = wsURL
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if err := log.SetLevel(c.LogLevel); err != nil {
		return err
	}

	cfg = c
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
