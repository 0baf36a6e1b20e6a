// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v2/pkg/frame"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
)

var (
	heartbeatTimeout int
	heartbeatCount   int
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Test the MAVLink link by exchanging HEARTBEAT messages",
	Long: `Send HEARTBEAT messages to the flight controller and wait for its HEARTBEAT.

The heartbeats are sent with the configured MAVLink system and component ids.
Any HEARTBEAT from the autopilot counts as a response; other traffic (servo
outputs, status text) is ignored.

This is useful for verifying:
  - The serial port or WebSocket bridge is open
  - The baud rate matches the autopilot
  - MAVLink flows in both directions

Exit codes:
  0 - All heartbeats answered
  1 - One or more heartbeats timed out
  2 - Connection error`,
	RunE: runHeartbeat,
}

func init() {
	rootCmd.AddCommand(heartbeatCmd)
	heartbeatCmd.Flags().IntVar(&heartbeatTimeout, "timeout", 5, "Timeout in seconds for each heartbeat")
	heartbeatCmd.Flags().IntVar(&heartbeatCount, "count", 3, "Number of heartbeats to send")
}

// newHeartbeat returns the HEARTBEAT the bridge announces itself with
func newHeartbeat() *common.MessageHeartbeat {
	return &common.MessageHeartbeat{
		Type:           common.MAV_TYPE_GCS,
		Autopilot:      common.MAV_AUTOPILOT_INVALID,
		SystemStatus:   common.MAV_STATE_ACTIVE,
		MavlinkVersion: 3,
	}
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	encoder, err := mavcodec.NewEncoder(mavcodec.Config{
		SystemID:    byte(cfg.MAVLink.SystemID),
		ComponentID: byte(cfg.MAVLink.ComponentID),
		Version:     cfg.MAVLink.Version,
	})
	if err != nil {
		return err
	}
	parser, err := mavcodec.NewParser()
	if err != nil {
		return err
	}

	fmt.Printf("hilbridge - Heartbeat Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Identity: sys=%d comp=%d (MAVLink %d)\n", cfg.MAVLink.SystemID, cfg.MAVLink.ComponentID, cfg.MAVLink.Version)
	fmt.Printf("Timeout: %d seconds per heartbeat\n", heartbeatTimeout)
	fmt.Printf("Count: %d heartbeats\n\n", heartbeatCount)

	responseChan := make(chan frame.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, cfg.Link.ReadChunk)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for _, f := range parser.Feed(buf[:n]) {
				if _, ok := f.GetMessage().(*common.MessageHeartbeat); !ok {
					continue
				}
				// Keep only the latest response
				select {
				case responseChan <- f:
				default:
				}
			}
		}
	}()

	successCount := 0
	failCount := 0

	for i := 1; i <= heartbeatCount; i++ {
		fmt.Printf("Heartbeat %d/%d: ", i, heartbeatCount)

		// Discard a response left over from an earlier round
		select {
		case <-responseChan:
		default:
		}

		wireBytes, err := encoder.Encode(newHeartbeat())
		if err != nil {
			return err
		}

		startTime := time.Now()
		if _, err := conn.Write(wireBytes); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case f := <-responseChan:
			hb := f.GetMessage().(*common.MessageHeartbeat)
			rtt := time.Since(startTime)
			fmt.Printf("HEARTBEAT from sys=%d comp=%d, type=%v, state=%v, rtt=%v\n",
				f.GetSystemID(), f.GetComponentID(), hb.Type, hb.SystemStatus, rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)

		case <-time.After(time.Duration(heartbeatTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", heartbeatTimeout)
			failCount++
		}

		// Autopilots expect heartbeats at 1 Hz
		if i < heartbeatCount {
			time.Sleep(time.Second)
		}
	}

	// Summary
	fmt.Printf("\n--- Heartbeat statistics ---\n")
	fmt.Printf("%d heartbeats sent, %d responses received, %.0f%% loss\n",
		heartbeatCount, successCount, float64(failCount)/float64(heartbeatCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
