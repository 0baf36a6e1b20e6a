// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
)

var (
	packetTestTimeout int
	packetTestMAVLink bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a complete
HIL frame that passes its checksum (or, with --mavlink, a complete MAVLink
message). Invalid bytes before the first frame are skipped and counted.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestMAVLink, "mavlink", false, "Wait for a MAVLink message instead of a HIL frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	protocol := "HIL frame"
	if packetTestMAVLink {
		protocol = "MAVLink message"
	}

	fmt.Printf("hilbridge - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid %s...\n\n", protocol)

	parser, err := mavcodec.NewParser()
	if err != nil {
		return err
	}
	decoder := hil.NewDecoder()
	buf := make([]byte, cfg.Link.ReadChunk)

	resultChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		framingErrors := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			if packetTestMAVLink {
				frames := parser.Feed(buf[:n])
				if len(frames) == 0 {
					continue
				}
				if skipped := parser.Stats().SkippedBytes; skipped > 0 {
					fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
				}
				resultChan <- formatMAVLink(frames[0])
				return
			}

			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					framingErrors++
					continue
				}
				if frame != nil {
					if framingErrors > 0 {
						fmt.Printf("(%d framing errors before sync)\n", framingErrors)
					}
					resultChan <- fmt.Sprintf("  Length: %d bytes\n  Checksum: 0x%02X\n", frame.Length(), frame.Checksum())
					return
				}
			}
		}
	}()

	select {
	case result := <-resultChan:
		fmt.Printf("SUCCESS: Received valid %s\n", protocol)
		fmt.Print(result)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid %s received within %d seconds\n", protocol, packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
