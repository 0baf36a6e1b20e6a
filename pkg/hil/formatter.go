// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hil

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] FRAME len=%d checksum=0x%02X\n", timestamp, f.length, f.checksum)
	if len(f.payload) == 0 {
		return result + "  (no payload)\n"
	}
	return result + FormatHex("Payload", f.payload)
}

// FormatWrapper formats the wrapper frame and its patched field
func FormatWrapper(w *Wrapper) string {
	field := w.Field()
	result := fmt.Sprintf("  Wrapper field: 0x%02X 0x%02X (updates=%d)\n", field[0], field[1], w.updates)
	return result + FormatHex("Wrapper", w.buf[:])
}

// FormatHex renders data as a labelled hex dump, 16 bytes per line
func FormatHex(label string, data []byte) string {
	var sb strings.Builder
	prefix := fmt.Sprintf("  %s: ", label)
	sb.WriteString(prefix)
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n")
			sb.WriteString(strings.Repeat(" ", len(prefix)))
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	sb.WriteString("\n")
	return sb.String()
}
