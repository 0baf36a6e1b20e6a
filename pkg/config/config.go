// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config holds the bridge configuration: defaults, the optional YAML
// file and validation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/Thermoquad/hilbridge/pkg/bridge"
	"github.com/Thermoquad/hilbridge/pkg/hil"
	"github.com/Thermoquad/hilbridge/pkg/log"
	"github.com/Thermoquad/hilbridge/pkg/mavcodec"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// ErrConfigFileExists is returned by Persist when it would overwrite a file
type ErrConfigFileExists struct {
	Path string
}

func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("config file %s already exists", e.Path)
}

// Duration is a time.Duration written as a string such as "250ms"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are nanoseconds
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LinkConfig is the flight controller side
type LinkConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
	// URL of a websocket serial bridge, used instead of Port when set
	URL       string `json:"url,omitempty"`
	ReadChunk int    `json:"read_chunk"`
}

// UDPConfig is the simulator side
type UDPConfig struct {
	LocalPort       int    `json:"local_port"`
	RemotePort      int    `json:"remote_port"`
	RemoteTxAddress string `json:"remote_tx_address"`
	RemoteRxAddress string `json:"remote_rx_address"`
	Broadcast       bool   `json:"broadcast"`
	DatagramSize    int    `json:"datagram_size"`
}

// MAVLinkConfig is the identity the bridge uses toward the autopilot
type MAVLinkConfig struct {
	SystemID    int `json:"system_id"`
	ComponentID int `json:"component_id"`
	Version     int `json:"version"`
}

// BridgeConfig selects the translation behavior
type BridgeConfig struct {
	Mode             string   `json:"mode"`
	Layout           string   `json:"layout"`
	PwmTimestamp     string   `json:"pwm_timestamp"`
	ForwardUndecoded bool     `json:"forward_undecoded"`
	FrameIdleTimeout Duration `json:"frame_idle_timeout"`

	WrapperSourceOffset int `json:"wrapper_source_offset"`
	WrapperDestOffset   int `json:"wrapper_dest_offset"`

	// Capture file written while bridging, empty to disable
	Capture string `json:"capture,omitempty"`
}

// APIConfig enables the status API when Listen is set
type APIConfig struct {
	Listen string `json:"listen,omitempty"`
}

// LayoutConfig declares an additional offset layout
type LayoutConfig struct {
	Name         string         `json:"name"`
	DatagramSize int            `json:"datagram_size"`
	Offsets      map[string]int `json:"offsets"`
}

type Config struct {
	Link     LinkConfig     `json:"link"`
	UDP      UDPConfig      `json:"udp"`
	MAVLink  MAVLinkConfig  `json:"mavlink"`
	Bridge   BridgeConfig   `json:"bridge"`
	API      APIConfig      `json:"api"`
	LogLevel string         `json:"log_level"`
	Layouts  []LayoutConfig `json:"layouts,omitempty"`

	filepath string
}

func DefaultSerialPort() string {
	if runtime.GOOS == "windows" {
		return DefaultSerialPortWindows
	}
	return DefaultSerialPortUnix
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Port:      DefaultSerialPort(),
			Baud:      DefaultBaudRate,
			ReadChunk: DefaultReadChunk,
		},
		UDP: UDPConfig{
			LocalPort:       DefaultLocalPort,
			RemotePort:      DefaultRemotePort,
			RemoteTxAddress: DefaultRemoteTxAddress,
			RemoteRxAddress: DefaultRemoteRxAddress,
			Broadcast:       true,
			DatagramSize:    DefaultDatagramSize,
		},
		MAVLink: MAVLinkConfig{
			SystemID:    DefaultSystemID,
			ComponentID: DefaultComponentID,
			Version:     DefaultMAVLinkVersion,
		},
		Bridge: BridgeConfig{
			Mode:                DefaultMode,
			Layout:              DefaultLayout,
			PwmTimestamp:        DefaultPwmTimestamp,
			ForwardUndecoded:    true,
			WrapperSourceOffset: hil.DefaultWrapperSourceOffset,
			WrapperDestOffset:   hil.DefaultWrapperDestOffset,
		},
		LogLevel: DefaultLogLevel,
		filepath: DefaultConfigPath(),
	}
}

// Load returns the defaults overlaid with the file at path. A missing file
// is not an error when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	c := NewDefaultConfig()
	c.filepath = path
	if err := c.LoadConfig(); err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			log.Debug("No config file at %s, using defaults", path)
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

// Path returns the file the config is loaded from and persisted to
func (c *Config) Path() string {
	return c.filepath
}

// SetPath changes the file used by LoadConfig and Persist
func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) LoadConfig() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.filepath, err)
	}
	return nil
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.filepath), 0755); err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// Validate checks every value the bridge depends on
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Link.Port != "" || c.Link.URL != "", "link: a serial port or websocket URL is required")
	check(c.Link.Baud > 0, "link: baud rate must be positive, got %d", c.Link.Baud)
	check(c.Link.ReadChunk > 0 && c.Link.ReadChunk <= MaxDatagramSize,
		"link: read chunk must be 1..%d, got %d", MaxDatagramSize, c.Link.ReadChunk)

	check(validPort(c.UDP.LocalPort), "udp: local port must be 1..65535, got %d", c.UDP.LocalPort)
	check(validPort(c.UDP.RemotePort), "udp: remote port must be 1..65535, got %d", c.UDP.RemotePort)
	check(c.UDP.RemoteTxAddress != "", "udp: remote tx address is required")
	check(c.UDP.RemoteRxAddress != "", "udp: remote rx address is required (use %q)", AnyAddress)
	check(c.UDP.DatagramSize > 0 && c.UDP.DatagramSize <= MaxDatagramSize,
		"udp: datagram size must be 1..%d, got %d", MaxDatagramSize, c.UDP.DatagramSize)

	check(c.MAVLink.SystemID >= 0 && c.MAVLink.SystemID <= 255,
		"mavlink: system id must be 0..255, got %d", c.MAVLink.SystemID)
	check(c.MAVLink.ComponentID >= 0 && c.MAVLink.ComponentID <= 255,
		"mavlink: component id must be 0..255, got %d", c.MAVLink.ComponentID)
	check(c.MAVLink.Version == 1 || c.MAVLink.Version == 2,
		"mavlink: version must be 1 or 2, got %d", c.MAVLink.Version)

	check(c.Bridge.Mode == ModeMAVLink || c.Bridge.Mode == ModeHIL,
		"bridge: mode must be %s or %s, got %q", ModeMAVLink, ModeHIL, c.Bridge.Mode)
	check(c.Bridge.FrameIdleTimeout >= 0, "bridge: frame idle timeout must not be negative")
	if _, err := bridge.ParseTimestampSource(c.Bridge.PwmTimestamp); err != nil {
		errs = append(errs, fmt.Errorf("bridge: %w", err))
	}
	if _, err := hil.NewWrapperWithOffsets(c.Bridge.WrapperSourceOffset, c.Bridge.WrapperDestOffset); err != nil {
		errs = append(errs, fmt.Errorf("bridge: %w", err))
	}

	if layout, err := c.Layout(); err != nil {
		errs = append(errs, err)
	} else if c.Bridge.Mode == ModeMAVLink {
		check(c.UDP.DatagramSize >= layout.DatagramSize(),
			"udp: datagram size %d is smaller than layout %s (%d bytes)",
			c.UDP.DatagramSize, layout.Name(), layout.DatagramSize())
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// Registry returns the built-in layouts plus the ones declared in the file
func (c *Config) Registry() (*telemetry.Registry, error) {
	r := telemetry.NewRegistry()
	for _, lc := range c.Layouts {
		l, err := lc.Build()
		if err != nil {
			return nil, err
		}
		r.Register(l)
	}
	return r, nil
}

// Layout resolves the configured layout
func (c *Config) Layout() (*telemetry.Layout, error) {
	r, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return r.Lookup(c.Bridge.Layout)
}

// Build converts the declaration into a telemetry layout
func (lc LayoutConfig) Build() (*telemetry.Layout, error) {
	offsets := make(map[telemetry.MessageType]int, len(lc.Offsets))
	for name, off := range lc.Offsets {
		t, err := telemetry.ParseMessageType(name)
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", lc.Name, err)
		}
		offsets[t] = off
	}
	return telemetry.NewLayout(lc.Name, lc.DatagramSize, offsets)
}

// LayoutConfigFor is the inverse of Build
func LayoutConfigFor(l *telemetry.Layout) LayoutConfig {
	return LayoutConfig{Name: l.Name(), DatagramSize: l.DatagramSize(), Offsets: l.Offsets()}
}

// TranslatorConfig returns the bridge settings for the configured layout
func (c *Config) TranslatorConfig() (bridge.Config, error) {
	layout, err := c.Layout()
	if err != nil {
		return bridge.Config{}, err
	}
	source, err := bridge.ParseTimestampSource(c.Bridge.PwmTimestamp)
	if err != nil {
		return bridge.Config{}, err
	}
	return bridge.Config{
		Layout: layout,
		Codec: mavcodec.Config{
			SystemID:    byte(c.MAVLink.SystemID),
			ComponentID: byte(c.MAVLink.ComponentID),
			Version:     c.MAVLink.Version,
		},
		TimestampSource:  source,
		ForwardUndecoded: c.Bridge.ForwardUndecoded,
	}, nil
}

// IdleTimeout returns the frame idle timeout, 0 when disabled
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Bridge.FrameIdleTimeout)
}
