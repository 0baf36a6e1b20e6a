// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsUSBOnly bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports a flight controller could be attached to",
	Long: `List the serial ports found on this machine.

USB adapters are shown with their vendor and product ids, which helps telling
the flight controller apart from other devices.

Exit codes:
  0 - At least one port found
  1 - No ports found`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsUSBOnly, "usb", false, "Only list USB serial adapters")
}

// describePort formats one enumerated port
func describePort(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		return p.Name
	}
	line := fmt.Sprintf("%s  USB %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		line += "  " + p.Product
	}
	if p.SerialNumber != "" {
		line += fmt.Sprintf("  (serial %s)", p.SerialNumber)
	}
	return line
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %v", err)
	}

	found := 0
	for _, p := range ports {
		if portsUSBOnly && !p.IsUSB {
			continue
		}
		fmt.Println(describePort(p))
		found++
	}

	if found == 0 {
		fmt.Fprintf(os.Stderr, "No serial ports found\n")
		os.Exit(1)
	}
	return nil
}
