// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and relays key commands to the CLI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Command is a user request from the TUI
type Command int

const (
	CommandStop Command = iota
	CommandReplay
	CommandQuit
)

// Control holds the channel carrying TUI commands
type Control struct {
	Commands chan Command
}

// NewControl creates a new command channel
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 10),
	}
}

// send never blocks the UI loop; a full channel drops the command
func (c *Control) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(mode, file string, control *Control) Model {
	return Model{
		mode:    mode,
		file:    file,
		state:   "idle",
		control: control,
	}
}

// Run creates the TUI program; the caller runs it
func Run(mode, file string, control *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(mode, file, control), tea.WithAltScreen())
	return p, nil
}
