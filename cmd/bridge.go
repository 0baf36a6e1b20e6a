// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/hilbridge/pkg/api"
	"github.com/Thermoquad/hilbridge/pkg/capture"
	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/gateway"
	"github.com/Thermoquad/hilbridge/pkg/log"
)

var (
	bridgeTUI           bool
	bridgeStatsInterval int

	bridgeMode         string
	bridgeLayout       string
	bridgeLocalPort    int
	bridgeRemotePort   int
	bridgeRemoteTx     string
	bridgeRemoteRx     string
	bridgePwmTimestamp string
	bridgeIdleTimeout  time.Duration
	bridgeCapture      string
	bridgeAPI          string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the bridge between the flight controller and the simulator",
	Long: `Run the hardware-in-the-loop bridge.

mavlink mode (default):
  Sensor datagrams received on the local UDP port are translated into two
  MAVLink messages each (one primary type in rotation plus attitude or local
  position) and written to the flight controller. SERVO_OUTPUT_RAW messages
  from the flight controller are sent to the simulator as 20-byte PWM
  datagrams. Serial data that holds no servo output is forwarded unchanged.

hil mode:
  HIL frames from the flight controller are decoded and the wrapper frame is
  sent to the simulator after each one. Sensor datagrams are written to the
  flight controller unchanged.

Statistics are printed periodically, or shown live with --tui. With --api
the counters are also served over HTTP for the status command.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	flags := bridgeCmd.Flags()
	flags.BoolVar(&bridgeTUI, "tui", false, "Show a live terminal UI")
	flags.IntVar(&bridgeStatsInterval, "stats-interval", 10, "Statistics print interval in seconds (text mode, 0 disables)")

	flags.StringVar(&bridgeMode, "mode", config.DefaultMode, "Protocol mode: mavlink or hil")
	flags.StringVar(&bridgeLayout, "layout", config.DefaultLayout, "Sensor datagram offset layout")
	flags.IntVar(&bridgeLocalPort, "local-port", config.DefaultLocalPort, "UDP port sensor datagrams arrive on")
	flags.IntVar(&bridgeRemotePort, "remote-port", config.DefaultRemotePort, "UDP port of the simulator")
	flags.StringVar(&bridgeRemoteTx, "remote-tx", config.DefaultRemoteTxAddress, "Address outgoing datagrams are sent to")
	flags.StringVar(&bridgeRemoteRx, "remote-rx", config.DefaultRemoteRxAddress, "Only accept sensor datagrams from this address")
	flags.StringVar(&bridgePwmTimestamp, "pwm-timestamp", config.DefaultPwmTimestamp, "PWM timestamp source: servo or attitude")
	flags.DurationVar(&bridgeIdleTimeout, "idle-timeout", 0, "Drop a partial HIL frame after this much serial silence")
	flags.StringVar(&bridgeCapture, "capture", "", "Record all traffic to this CBOR capture file")
	flags.StringVar(&bridgeAPI, "api", "", "Serve the status API on this address (e.g. "+api.DefaultAddress+")")
}

// applyBridgeFlags copies the flags the user set over the loaded config
func applyBridgeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		c.Bridge.Mode = bridgeMode
	}
	if flags.Changed("layout") {
		c.Bridge.Layout = bridgeLayout
	}
	if flags.Changed("local-port") {
		c.UDP.LocalPort = bridgeLocalPort
	}
	if flags.Changed("remote-port") {
		c.UDP.RemotePort = bridgeRemotePort
	}
	if flags.Changed("remote-tx") {
		c.UDP.RemoteTxAddress = bridgeRemoteTx
	}
	if flags.Changed("remote-rx") {
		c.UDP.RemoteRxAddress = bridgeRemoteRx
	}
	if flags.Changed("pwm-timestamp") {
		c.Bridge.PwmTimestamp = bridgePwmTimestamp
	}
	if flags.Changed("idle-timeout") {
		c.Bridge.FrameIdleTimeout = config.Duration(bridgeIdleTimeout)
	}
	if flags.Changed("capture") {
		c.Bridge.Capture = bridgeCapture
	}
	if flags.Changed("api") {
		c.API.Listen = bridgeAPI
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	applyBridgeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	opts := gateway.Options{}
	if cfg.Bridge.Capture != "" {
		w, err := capture.Create(cfg.Bridge.Capture)
		if err != nil {
			conn.Close()
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Error("Failed to close capture file: %v", err)
			}
			log.Info("Wrote %d records to %s", w.Count(), cfg.Bridge.Capture)
		}()
		opts.Capture = w
	}

	var events chan gateway.Event
	if bridgeTUI {
		events = make(chan gateway.Event, 256)
		opts.Events = events
	}

	g, err := gateway.NewFromConfig(cfg, conn, opts)
	if err != nil {
		conn.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.API.Listen != "" {
		server := api.NewServer(g)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.API.Listen); err != nil {
				log.Error("Status API stopped: %v", err)
			}
		}()
	}

	if bridgeTUI {
		return runBridgeTUI(ctx, g, events, connInfo)
	}
	return runBridgeText(ctx, g, connInfo)
}

func runBridgeText(ctx context.Context, g *gateway.Gateway, connInfo string) error {
	fmt.Printf("hilbridge - Bridge\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("UDP: %s -> %s:%d\n", g.LocalAddr(), cfg.UDP.RemoteTxAddress, cfg.UDP.RemotePort)
	fmt.Printf("Mode: %s", cfg.Bridge.Mode)
	if l := g.Layout(); l != nil {
		fmt.Printf(" (layout %s, %d byte datagrams)", l.Name(), l.DatagramSize())
	}
	fmt.Printf("\nPress Ctrl+C to exit\n\n")

	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	var tick <-chan time.Time
	if bridgeStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(bridgeStatsInterval) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case err := <-done:
			fmt.Println()
			fmt.Print(g.Snapshot().String())
			return err
		case <-tick:
			fmt.Println()
			fmt.Print(g.Snapshot().String())
			fmt.Println()
		}
	}
}

// tuiLogWriter feeds log lines into the event panel
type tuiLogWriter struct {
	p *tea.Program
}

func (w tuiLogWriter) Write(b []byte) (int, error) {
	w.p.Send(logLineMsg(string(b)))
	return len(b), nil
}

func runBridgeTUI(ctx context.Context, g *gateway.Gateway, events <-chan gateway.Event, connInfo string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBridgeModel(g, connInfo), tea.WithAltScreen())

	log.SetOutput(tuiLogWriter{p: p})
	log.SetFlags(0)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.DefaultFlags)
	}()

	go func() {
		for {
			select {
			case ev := <-events:
				p.Send(gatewayEventMsg(ev))
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		err := g.Run(ctx)
		p.Send(gatewayDoneMsg{err: err})
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	cancel()
	err := <-done
	fmt.Print(g.Snapshot().String())
	return err
}
