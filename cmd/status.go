// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/api"
)

var (
	statusAPI    string
	statusJSON   bool
	statusLayout bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the counters of a running bridge",
	Long: `Query the status API of a bridge started with --api and print its counters.

Exit codes:
  0 - Bridge reachable
  2 - Bridge not reachable`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusAPI, "api", "", "Status API address (default: the configured api.listen, or "+api.DefaultAddress+")")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw JSON counters")
	statusCmd.Flags().BoolVar(&statusLayout, "layout", false, "Print the active offset layout instead")
}

func runStatus(cmd *cobra.Command, args []string) error {
	address := statusAPI
	if address == "" {
		address = cfg.API.Listen
	}
	client := api.NewClient(address)

	health, err := client.Health()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bridge not reachable at %s: %v\n", client.ApiPrefix, err)
		os.Exit(2)
	}

	var v interface{}
	if statusLayout {
		if v, err = client.Layout(); err != nil {
			return fmt.Errorf("failed to read layout: %v", err)
		}
	} else {
		snap, err := client.Stats()
		if err != nil {
			return fmt.Errorf("failed to read stats: %v", err)
		}
		if !statusJSON {
			fmt.Printf("Bridge %s (%s mode, up %s)\n\n", health.Status, health.Mode, formatUptime(uint64(health.Uptime)))
			fmt.Print(snap.String())
			return nil
		}
		v = snap
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
