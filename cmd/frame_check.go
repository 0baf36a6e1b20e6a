// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/log"
)

var (
	frameCheckShowAll       bool
	frameCheckStatsInterval int
)

var frameCheckCmd = &cobra.Command{
	Use:   "frame_check",
	Short: "Detect and count malformed HIL frames",
	Long: `Track HIL frame errors on the link with statistics.

Every byte is run through the frame decoder and these failures are reported:
  - Checksum mismatches
  - Bad header or footer magic
  - Frames longer than the decoder buffer

By default, only errors are displayed. Use --show-all to display valid frames too.

Errors before the first valid frame are counted but not printed, since the
decoder starts in the middle of the stream. Statistics summaries are printed
at the configured interval.`,
	RunE: runFrameCheck,
}

func init() {
	rootCmd.AddCommand(frameCheckCmd)
	frameCheckCmd.Flags().BoolVar(&frameCheckShowAll, "show-all", false, "Show all frames (not just errors)")
	frameCheckCmd.Flags().IntVar(&frameCheckStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	label := "FRAMING ERROR"
	switch {
	case errors.Is(err, hil.ErrChecksum):
		label = "CHECKSUM ERROR"
	case errors.Is(err, hil.ErrOverflow):
		label = "OVERFLOW"
	}
	fmt.Printf("[%s] \033[1;31m%s:\033[0m %v\n", timestamp, label, err)
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// frameChecker tracks sync state on top of a decoder
type frameChecker struct {
	decoder                *hil.Decoder
	synchronized           bool
	invalidBytesBeforeSync int
}

func newFrameChecker() *frameChecker {
	return &frameChecker{decoder: hil.NewDecoder()}
}

// feed decodes data and returns the frames and the errors seen after sync
func (c *frameChecker) feed(data []byte) ([]*hil.Frame, []error) {
	var frames []*hil.Frame
	var errs []error
	for _, b := range data {
		frame, err := c.decoder.DecodeByte(b)
		if err != nil {
			if c.synchronized {
				errs = append(errs, err)
			} else {
				c.invalidBytesBeforeSync++
			}
			continue
		}
		if frame != nil {
			if !c.synchronized {
				c.synchronized = true
				if c.invalidBytesBeforeSync > 0 {
					fmt.Printf("[SYNC] Synchronized after %d framing errors\n\n", c.invalidBytesBeforeSync)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

func runFrameCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("hilbridge - Frame Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", frameCheckStatsInterval)
	if frameCheckShowAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	checker := newFrameChecker()

	var tick <-chan time.Time
	if frameCheckStatsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(frameCheckStatsInterval) * time.Second)
		defer statsTicker.Stop()
		tick = statsTicker.C
	}

	// Channel for non-blocking serial reads
	serialBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, cfg.Link.ReadChunk)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				serialBuf <- data
			}
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
					readErr <- err
					return
				}
				log.Warning("Read error: %v", err)
			}
		}
	}()

	for {
		select {
		case data := <-serialBuf:
			frames, errs := checker.feed(data)
			for _, err := range errs {
				printDecodeError(err)
			}
			if frameCheckShowAll {
				for _, f := range frames {
					fmt.Print(hil.FormatFrame(f))
				}
			}

		case <-tick:
			fmt.Println()
			fmt.Print(checker.decoder.Statistics().String())
			fmt.Println()

		case <-readErr:
			log.Info("Connection closed")
			fmt.Print(checker.decoder.Statistics().String())
			return nil
		}
	}
}
