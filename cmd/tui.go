// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/hilbridge/pkg/gateway"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// snapshotSource is the part of the gateway the monitor reads
type snapshotSource interface {
	Snapshot() gateway.Snapshot
}

// TUI model
type bridgeModel struct {
	source        snapshotSource
	connInfo      string
	snapshot      gateway.Snapshot
	messages      table.Model
	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
	err           error
}

// Messages
type tickMsg time.Time
type snapshotMsg gateway.Snapshot
type gatewayEventMsg gateway.Event
type logLineMsg string
type gatewayDoneMsg struct {
	err error
}

// formatUptime formats an uptime in seconds as a short human string
func formatUptime(seconds uint64) string {
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

func newMessageTable() table.Model {
	columns := []table.Column{
		{Title: "Message", Width: 16},
		{Title: "Sent", Width: 10},
	}
	rows := make([]table.Row, 0, len(telemetry.AllTypes()))
	for _, t := range telemetry.AllTypes() {
		rows = append(rows, table.Row{t.String(), "0"})
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.NoColor{}).Bold(false)

	return table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
		table.WithStyles(styles),
	)
}

func newBridgeModel(source snapshotSource, connInfo string) bridgeModel {
	return bridgeModel{
		source:        source,
		connInfo:      connInfo,
		snapshot:      source.Snapshot(),
		messages:      newMessageTable(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m bridgeModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshot reads the counters off the UI goroutine, since the gateway
// may be blocked logging into this program while it holds its lock
func (m bridgeModel) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(m.source.Snapshot())
	}
}

func (m bridgeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.fetchSnapshot(), tickCmd())

	case snapshotMsg:
		m.snapshot = gateway.Snapshot(msg)
		m.refreshTable()

	case gatewayEventMsg:
		ev := gateway.Event(msg)
		// Per-datagram traffic is summarized by the counters
		switch ev.Kind {
		case gateway.EventTelemetry, gateway.EventPwm, gateway.EventRawToSerial, gateway.EventFrame:
			return m, nil
		}
		text := ev.Kind.String()
		if ev.Detail != "" {
			text += ": " + ev.Detail
		}
		m.addLogEntry(ev.Time, text, ev.Kind == gateway.EventError)

	case logLineMsg:
		line := strings.TrimSpace(string(msg))
		if line != "" {
			m.addLogEntry(time.Now(), line, strings.Contains(line, "[error]"))
		}

	case gatewayDoneMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *bridgeModel) addLogEntry(ts time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: ts,
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *bridgeModel) refreshTable() {
	if m.snapshot.Bridge == nil {
		return
	}
	rows := make([]table.Row, 0, len(telemetry.AllTypes()))
	for _, t := range telemetry.AllTypes() {
		rows = append(rows, table.Row{t.String(), fmt.Sprintf("%d", m.snapshot.Bridge.MessagesSent[t.String()])})
	}
	m.messages.SetRows(rows)
}

func (m bridgeModel) View() string {
	if m.quitting {
		if m.err != nil {
			return fmt.Sprintf("Bridge stopped: %v\n", m.err)
		}
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	snap := m.snapshot
	value := func(format string, args ...interface{}) string {
		return statsValueStyle.Render(fmt.Sprintf(format, args...))
	}
	count := func(n uint64) string {
		if n > 0 {
			return errorStyle.Render(fmt.Sprintf("%d", n))
		}
		return value("%d", n)
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("HILBRIDGE - " + strings.ToUpper(snap.Mode)))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Up %s | Press 'q' to quit",
		m.connInfo, formatUptime(uint64(snap.Uptime)))))
	s.WriteString("\n\n")

	// Link counters
	link := strings.Builder{}
	link.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("UDP In:"), value("%d", snap.Link.DatagramsIn),
		statsLabelStyle.Render("UDP Out:"), value("%d", snap.Link.DatagramsOut),
		statsLabelStyle.Render("Filtered:"), count(snap.Link.Filtered),
	))
	link.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Serial In:"), value("%d B", snap.Link.SerialBytesIn),
		statsLabelStyle.Render("Serial Out:"), value("%d B", snap.Link.SerialBytesOut),
		statsLabelStyle.Render("Write Errors:"), count(snap.Link.WriteErrors),
	))
	s.WriteString(boxStyle.Render(link.String()))
	s.WriteString("\n")

	if b := snap.Bridge; b != nil {
		stats := strings.Builder{}
		stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Translations:"), value("%d (%.1f/s)", b.Translations, b.TranslationRate),
			statsLabelStyle.Render("Undersized:"), count(b.Undersized),
			statsLabelStyle.Render("Codec Failures:"), count(b.CodecFailures),
		))
		stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("PWM:"), value("%d (%.1f/s)", b.PwmDatagrams, b.PwmRate),
			statsLabelStyle.Render("Decoded:"), value("%d", b.MessagesDecoded),
			statsLabelStyle.Render("Pass-through:"), warningStyle.Render(fmt.Sprintf("%d", b.PassThrough)),
		))
		stats.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Next:"), value("%s", snap.NextSelection)))
		if pwm := snap.LastPwm; pwm != nil {
			stats.WriteString(fmt.Sprintf("   %s %s", statsLabelStyle.Render("Last PWM:"),
				value("%v @ %d us", pwm.Channels, pwm.TimeUsec)))
		}

		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			boxStyle.Render(stats.String()),
			boxStyle.Render(m.messages.View()),
		))
		s.WriteString("\n")
	}

	if h := snap.HIL; h != nil {
		frames := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s",
			statsLabelStyle.Render("Frames:"), value("%d (%.1f/s)", h.ValidFrames, h.FrameRate),
			statsLabelStyle.Render("Checksum:"), count(h.ChecksumErrors),
			statsLabelStyle.Render("Framing:"), count(h.FramingErrors),
			statsLabelStyle.Render("Overflow:"), count(h.OverflowErrors),
			statsLabelStyle.Render("Abandoned:"), warningStyle.Render(fmt.Sprintf("%d", h.Abandoned)),
			statsLabelStyle.Render("Idle Resets:"), warningStyle.Render(fmt.Sprintf("%d", h.IdleResets)),
		)
		s.WriteString(boxStyle.Render(frames))
		s.WriteString("\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
