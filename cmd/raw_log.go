// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bluenviron/gomavlib/v2/pkg/frame"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/log"
	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
)

var rawLogMAVLink bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display frames from the flight controller in human-readable format",
	Long: `Continuously decode and display frames as they arrive on the link.

By default HIL frames are decoded and each is shown with its timestamp,
length, checksum and payload. With --mavlink the stream is parsed as MAVLink
and every message is printed with its source ids and fields.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogMAVLink, "mavlink", false, "Decode MAVLink instead of HIL frames")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("hilbridge - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	feed := hilFeed()
	if rawLogMAVLink {
		if feed, err = mavlinkFeed(); err != nil {
			return err
		}
	}

	buf := make([]byte, cfg.Link.ReadChunk)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				log.Info("Connection closed")
				return nil
			}
			log.Warning("Read error: %v", err)
		}
	}
}

func hilFeed() func([]byte) {
	decoder := hil.NewDecoder()
	return func(data []byte) {
		for _, b := range data {
			frame, err := decoder.DecodeByte(b)
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(hil.FormatFrame(frame))
			}
		}
	}
}

func mavlinkFeed() (func([]byte), error) {
	parser, err := mavcodec.NewParser()
	if err != nil {
		return nil, err
	}
	return func(data []byte) {
		for _, f := range parser.Feed(data) {
			fmt.Print(formatMAVLink(f))
		}
	}, nil
}

func formatMAVLink(f frame.Frame) string {
	msg := f.GetMessage()
	return fmt.Sprintf("[%s] %s (id %d) sys=%d comp=%d\n  %+v\n",
		time.Now().Format("15:04:05.000"), mavcodec.MessageName(msg), msg.GetID(),
		f.GetSystemID(), f.GetComponentID(), msg)
}
