// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/Thermoquad/hilbridge/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long: `Write the default settings, with any connection flags applied, to the config
file (~/.hilbridge/config.yaml unless --config is given). An existing file is
only replaced with --force.`,
	Args: cobra.NoArgs,
	// Starts from the defaults without reading the file
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.NewDefaultConfig()
		cfg.SetPath(configPath)
		return nil
	},
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration the other commands would use: the defaults, overlaid
with the config file, overlaid with the global flags. Problems reported by
validation are listed after it.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Link.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Link.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Link.URL = wsURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Persist(configForce); err != nil {
		var exists config.ErrConfigFileExists
		if errors.As(err, &exists) {
			return fmt.Errorf("%v (use --force to overwrite)", err)
		}
		return err
	}
	fmt.Printf("Wrote %s\n", cfg.Path())
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", cfg.Path(), data)

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\n# Invalid:\n# %s\n", strings.ReplaceAll(err.Error(), "\n", "\n# "))
	}
	return nil
}
