// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/framelink/pkg/controller"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/Thermoquad/framelink/pkg/responder"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Dashboard model for the simulate command
type simModel struct {
	nodes     []*simNode
	fields    int
	runs      int
	flip      float64
	drop      float64
	flashes   <-chan flashMsg
	cancel    context.CancelFunc
	spinner   spinner.Model
	stats     controller.Statistics
	lastFlash map[string]responder.Color
	lastRound *controller.RoundResult
	eventLog  []eventLogEntry
	maxLog    int
	done      bool
	runErr    error
	width     int
	height    int
}

// Messages
type simTickMsg time.Time
type roundMsg struct {
	result controller.RoundResult
	stats  controller.Statistics
}
type flashMsg struct {
	device string
	color  responder.Color
}
type doneMsg struct {
	stats controller.Statistics
	err   error
}

func initialSimModel(nodes []*simNode, lc controller.Config, flip, drop float64, flashes <-chan flashMsg, cancel context.CancelFunc) simModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return simModel{
		nodes:     nodes,
		fields:    lc.Fields,
		runs:      lc.Runs,
		flip:      flip,
		drop:      drop,
		flashes:   flashes,
		cancel:    cancel,
		spinner:   s,
		stats:     *controller.NewStatistics(),
		lastFlash: make(map[string]responder.Color),
		maxLog:    100,
		width:     80,
		height:    24,
	}
}

func (m simModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		simTickCmd(),
		waitForFlash(m.flashes),
	)
}

func simTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return simTickMsg(t)
	})
}

func waitForFlash(ch <-chan flashMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m simModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case simTickMsg:
		m.stats.CalculateRates()
		return m, simTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case flashMsg:
		m.lastFlash[msg.device] = msg.color
		return m, waitForFlash(m.flashes)

	case roundMsg:
		m.stats = msg.stats
		result := msg.result
		m.lastRound = &result
		for _, tr := range result.Results {
			switch {
			case tr.Err != nil:
				m.addLogEntry(fmt.Sprintf("round %d: %s %v", result.Round, tr.Target.Name, tr.Err), true)
			case !tr.OK():
				m.addLogEntry(fmt.Sprintf("round %d: %s replied %s to %s", result.Round, tr.Target.Name,
					dataframe.Status(tr.Status), dataframe.FormatHex(result.Frame)), true)
			}
		}

	case doneMsg:
		m.done = true
		m.stats = msg.stats
		m.runErr = msg.err
		m.addLogEntry(fmt.Sprintf("Stopped: %s", msg.stats.Reason), false)
	}

	return m, nil
}

func (m *simModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLog {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLog:]
	}
}

func (m simModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
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

	lampStyles := map[responder.Color]lipgloss.Style{
		responder.ColorRed:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		responder.ColorGreen: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		responder.ColorBlue:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("FRAMELINK - SIMULATED BUS"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Responders: %d | Fields: %d | Flip: %.3f | Drop: %.3f | Press 'q' to quit",
		len(m.nodes), m.fields, m.flip, m.drop)))
	s.WriteString("\n\n")

	if m.done {
		if m.runErr != nil {
			s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", m.stats.Reason, m.runErr)))
		} else {
			s.WriteString(valueStyle.Render(fmt.Sprintf("✓ Finished (%s)", m.stats.Reason)))
		}
	} else {
		s.WriteString(fmt.Sprintf("%s %s", m.spinner.View(),
			warningStyle.Render(fmt.Sprintf("Sending... %d/%d positive rounds", m.stats.OKRounds, m.runs))))
	}
	s.WriteString("\n\n")

	// Statistics
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Rounds:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Rounds)),
		labelStyle.Render("Positive:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.OKRounds)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Errors())),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
		labelStyle.Render("Incomplete:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Incomplete)),
		labelStyle.Render("Faults:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.TransportFaults+m.stats.UnknownStatus)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Data Rate:"), valueStyle.Render(fmt.Sprintf("%.1f Hz", m.stats.RoundRate)),
		labelStyle.Render("Elapsed:"), valueStyle.Render(m.stats.Elapsed().Round(time.Millisecond).String()),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Responders
	s.WriteString(labelStyle.Render("Responders:"))
	s.WriteString("\n")
	nodeContent := strings.Builder{}
	for i, node := range m.nodes {
		lamp := headerStyle.Render("○")
		if c, ok := m.lastFlash[node.target.Name]; ok {
			lamp = lampStyles[c].Render("●")
		}
		rs := node.responder.Stats()
		nodeContent.WriteString(fmt.Sprintf("%s %s %s  %s %s  %s %d/%d",
			lamp,
			labelStyle.Render(node.target.Name),
			headerStyle.Render(node.target.Address.String()),
			labelStyle.Render("registers:"), valueStyle.Render(formatValues(node.regs.Snapshot())),
			labelStyle.Render("valid/invalid:"), rs.Valid, rs.Invalid,
		))
		if i < len(m.nodes)-1 {
			nodeContent.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(nodeContent.String()))
	s.WriteString("\n\n")

	if m.lastRound != nil {
		s.WriteString(headerStyle.Render(fmt.Sprintf("Last dataframe: %v  %s", m.lastRound.Values, dataframe.FormatHex(m.lastRound.Frame))))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18 - len(m.nodes)
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
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
