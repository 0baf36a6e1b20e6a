// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/hil"
)

var (
	sendFrameCount    int
	sendFrameInterval time.Duration
)

var sendFrameCmd = &cobra.Command{
	Use:   "send_frame <hex payload>",
	Short: "Wrap a payload in a HIL frame and write it to the link",
	Long: `Encode a payload as a HIL frame (header, length, payload, checksum, footer)
and write it to the serial port or WebSocket.

The payload is given in hex. Spaces, colons and a 0x prefix are ignored, so
"0102 03", "01:02:03" and "0x010203" are the same payload.

Examples:
  hilbridge send_frame --port /dev/ttyUSB0 "00 11 22 33"
  hilbridge send_frame --port /dev/ttyUSB0 --count 10 --interval 100ms 0xDEADBEEF`,
	Args: cobra.ExactArgs(1),
	RunE: runSendFrame,
}

func init() {
	rootCmd.AddCommand(sendFrameCmd)
	sendFrameCmd.Flags().IntVar(&sendFrameCount, "count", 1, "Number of frames to send")
	sendFrameCmd.Flags().DurationVar(&sendFrameInterval, "interval", time.Second, "Delay between frames")
}

// parseHexPayload accepts hex with optional separators and 0x prefix
func parseHexPayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	if s == "" {
		return nil, fmt.Errorf("empty payload")
	}
	payload, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %v", err)
	}
	return payload, nil
}

func runSendFrame(cmd *cobra.Command, args []string) error {
	payload, err := parseHexPayload(args[0])
	if err != nil {
		return err
	}
	wireBytes, err := hil.EncodeFrame(payload)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("hilbridge - Send Frame\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Print(hil.FormatHex("Frame", wireBytes))
	fmt.Println()

	for i := 1; i <= sendFrameCount; i++ {
		if _, err := conn.Write(wireBytes); err != nil {
			return fmt.Errorf("write failed: %v", err)
		}
		fmt.Printf("Sent %d/%d (%d bytes)\n", i, sendFrameCount, len(wireBytes))
		if i < sendFrameCount {
			time.Sleep(sendFrameInterval)
		}
	}
	return nil
}
