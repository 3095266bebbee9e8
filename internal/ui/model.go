// ABOUTME: Bubbletea model for the audiopipe TUI
// ABOUTME: Shows recording or playback progress, pool occupancy and counters
package ui

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Session
	mode  string
	file  string
	state string

	// Stream
	format audio.Format

	// Progress
	elapsed time.Duration

	// Stats
	captured    int64
	frames      int64
	decoded     int64
	written     int64
	shortWrites int64

	// Pool
	poolFree     int
	poolInFlight int
	poolTotal    int

	lastErr   string
	showDebug bool

	control *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderPool()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders mode and engine state
func (m Model) renderHeader() string {
	icon := "■"
	switch m.state {
	case "recording":
		icon = "●"
	case "playing":
		icon = "▶"
	}

	return fmt.Sprintf(`┌─ audiopipe ──────────────────────────────────────────┐
│ Mode:   %-45s │
│ State:  %s %-43s │
├──────────────────────────────────────────────────────┤
`, m.mode, icon, m.state)
}

// renderStreamInfo renders the file and its format
func (m Model) renderStreamInfo() string {
	if m.file == "" {
		return "│ No file                                              │\n"
	}

	s := fmt.Sprintf("│ File:   %-45s │\n", truncate(m.file, 45))
	if m.format.SampleRate > 0 {
		s += fmt.Sprintf("│ Format: %-45s │\n", fmt.Sprintf("%dHz %s %d-bit",
			m.format.SampleRate, channelName(m.format.Channels), m.format.BitDepth))
	}
	s += fmt.Sprintf("│ Time:   %-45s │\n", formatElapsed(m.elapsed))
	return s
}

// renderPool renders buffer occupancy
func (m Model) renderPool() string {
	if m.poolTotal == 0 {
		return ""
	}
	used := m.poolTotal - m.poolFree
	return fmt.Sprintf("│ Pool:   [%s] %d/%d in use, %d queued%-10s │\n",
		renderBar(used, m.poolTotal, 10), used, m.poolTotal, m.poolInFlight, "")
}

// renderStats renders engine counters
func (m Model) renderStats() string {
	var line string
	if m.mode == "record" {
		line = fmt.Sprintf("Captured: %s  Frames: %d", formatBytes(m.captured), m.frames)
	} else {
		line = fmt.Sprintf("Decoded: %s  Written: %s  Short: %d",
			formatBytes(m.decoded), formatBytes(m.written), m.shortWrites)
	}
	s := fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
`, truncate(line, 52))
	if m.lastErr != "" {
		s += fmt.Sprintf("│ Error:  %-45s │\n", truncate(m.lastErr, 45))
	}
	s += "│                                                      │\n"
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ s:Stop  p:Play again  d:Debug  q:Quit                │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders raw counters
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Bytes: captured=%d decoded=%d written=%d%-5s │
│   Pool: free=%d in-flight=%d total=%d%-18s │
`, m.captured, m.decoded, m.written, "", m.poolFree, m.poolInFlight, m.poolTotal, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.control.send(CommandQuit)
		return m, tea.Quit
	case "s":
		m.control.send(CommandStop)
	case "p":
		if m.mode == "play" {
			m.control.send(CommandReplay)
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Mode != "" {
		m.mode = msg.Mode
	}
	if msg.File != "" {
		m.file = msg.File
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Format != nil {
		m.format = *msg.Format
	}
	if msg.Elapsed != 0 {
		m.elapsed = msg.Elapsed
	}
	if msg.Captured != 0 {
		m.captured = msg.Captured
		m.frames = msg.Frames
	}
	if msg.Decoded != 0 {
		m.decoded = msg.Decoded
		m.written = msg.Written
		m.shortWrites = msg.ShortWrites
	}
	if msg.PoolTotal != 0 {
		m.poolFree = msg.PoolFree
		m.poolInFlight = msg.PoolInFlight
		m.poolTotal = msg.PoolTotal
	}
	if msg.Err != "" {
		m.lastErr = msg.Err
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Mode         string
	File         string
	State        string
	Format       *audio.Format
	Elapsed      time.Duration
	Captured     int64
	Frames       int64
	Decoded      int64
	Written      int64
	ShortWrites  int64
	PoolFree     int
	PoolInFlight int
	PoolTotal    int
	Err          string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(100 * time.Millisecond)
	minutes := int(d / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%02d:%04.1f", minutes, seconds)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
