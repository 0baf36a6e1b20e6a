// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/capture"
	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/gateway"
	"github.com/Thermoquad/hilbridge/pkg/log"
)

var (
	replayPcap    bool
	replayPort    int
	replayMode    string
	replayLayout  string
	replayOut     string
	replayVerbose bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Run recorded traffic through the translator offline",
	Long: `Replay a capture through the bridge without a flight controller or simulator.

The input is a capture written by "bridge --capture", or with --pcap a packet
capture of the simulator's sensor datagrams (only UDP packets sent to --port
are used). Sensor datagrams and serial chunks are translated exactly as the
bridge would, and the resulting counters are printed.

With --out the regenerated traffic is written to a new capture file, which
can be compared against the original with raw_log or another replay.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	flags := replayCmd.Flags()
	flags.BoolVar(&replayPcap, "pcap", false, "Input is a pcap file of sensor datagrams")
	flags.IntVar(&replayPort, "udp-port", 0, "Destination UDP port to take from the pcap (default: the configured local port)")
	flags.StringVar(&replayMode, "mode", config.DefaultMode, "Protocol mode: mavlink or hil")
	flags.StringVar(&replayLayout, "layout", config.DefaultLayout, "Sensor datagram offset layout")
	flags.StringVar(&replayOut, "out", "", "Write the regenerated traffic to this capture file")
	flags.BoolVarP(&replayVerbose, "verbose", "v", false, "Print every translation")
}

func loadReplayRecords(path string) ([]capture.Record, error) {
	if replayPcap {
		port := replayPort
		if port == 0 {
			port = cfg.UDP.LocalPort
		}
		return capture.OpenPcap(path, port)
	}

	r, err := capture.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}

func runReplay(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("mode") {
		cfg.Bridge.Mode = replayMode
	}
	if cmd.Flags().Changed("layout") {
		cfg.Bridge.Layout = replayLayout
	}

	records, err := loadReplayRecords(args[0])
	if err != nil {
		return err
	}
	log.Info("Loaded %d records from %s", len(records), args[0])

	opts, err := gateway.OptionsFromConfig(cfg, gateway.Options{})
	if err != nil {
		return err
	}

	if replayOut != "" {
		w, err := capture.Create(replayOut)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Error("Failed to close capture file: %v", err)
			}
			log.Info("Wrote %d records to %s", w.Count(), replayOut)
		}()
		opts.Capture = w
	}

	var events chan gateway.Event
	done := make(chan struct{})
	if replayVerbose {
		events = make(chan gateway.Event, 64)
		opts.Events = events
		go func() {
			defer close(done)
			for ev := range events {
				fmt.Printf("%-9s %4d bytes  %s\n", ev.Kind, ev.Size, ev.Detail)
			}
		}()
	}

	snap, err := gateway.Replay(records, opts)
	if events != nil {
		close(events)
		<-done
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nReplayed %d records (%s mode)\n", len(records), snap.Mode)
	fmt.Print(snap.String())
	return nil
}
