// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

var layoutYAML bool

var layoutCmd = &cobra.Command{
	Use:   "layout [name]",
	Short: "List the sensor datagram layouts or show one",
	Long: `Without a name, list every known offset layout: the built-in ones and those
declared under "layouts" in the config file. With a name, show where each
record starts in the sensor datagram.

With --yaml the layout is printed as a config file entry, ready to be copied
and edited into a new layout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().BoolVar(&layoutYAML, "yaml", false, "Print the layout as a config entry")
}

// formatLayout renders the offset table ordered by offset
func formatLayout(l *telemetry.Layout) string {
	types := telemetry.AllTypes()
	sort.SliceStable(types, func(i, j int) bool {
		return l.Offset(types[i]) < l.Offset(types[j])
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Layout %s (%d byte datagrams)\n", l.Name(), l.DatagramSize())
	fmt.Fprintf(&sb, "  %-16s %6s %6s %6s\n", "Record", "Offset", "Width", "End")
	for _, t := range types {
		off := l.Offset(t)
		fmt.Fprintf(&sb, "  %-16s %6d %6d %6d\n", t, off, t.Width(), off+t.Width())
	}
	return sb.String()
}

func runLayout(cmd *cobra.Command, args []string) error {
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, name := range registry.Names() {
			marker := " "
			if name == cfg.Bridge.Layout {
				marker = "*"
			}
			l, _ := registry.Lookup(name)
			fmt.Printf("%s %-12s %4d bytes\n", marker, name, l.DatagramSize())
		}
		return nil
	}

	l, err := registry.Lookup(args[0])
	if err != nil {
		return err
	}
	if layoutYAML {
		data, err := yaml.Marshal([]config.LayoutConfig{config.LayoutConfigFor(l)})
		if err != nil {
			return err
		}
		fmt.Printf("layouts:\n%s", indent(string(data), "  "))
		return nil
	}
	fmt.Print(formatLayout(l))
	return nil
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "")
}
