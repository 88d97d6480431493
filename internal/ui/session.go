package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxSessionLines = 200

// Messages fed to the session model by relay hooks.
type (
	ConnectedMsg struct{ BackendURL string }
	ReceivedMsg  struct{ Data []byte }
	ClosedMsg    struct{ Err error }
)

// sentMsg reports the outcome of sending one typed line.
type sentMsg struct {
	text string
	err  error
}

type sessionState int

const (
	stateConnecting sessionState = iota
	stateConnected
	stateClosed
)

// SessionModel is an interactive relay session: each entered line is sent
// as one frame and every inbound frame is printed.
type SessionModel struct {
	title    string
	send     func([]byte) error
	input    textinput.Model
	spinner  spinner.Model
	state    sessionState
	backend  string
	lines    []string
	err      error
	quitting bool
}

// NewSessionModel creates a session model that hands typed lines to send.
func NewSessionModel(title string, send func([]byte) error) *SessionModel {
	in := textinput.New()
	in.Placeholder = "type a message and press enter"
	in.Prompt = "> "
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = SpinnerStyle

	return &SessionModel{
		title:   title,
		send:    send,
		input:   in,
		spinner: s,
	}
}

// Err is the error the session closed with, if any.
func (m *SessionModel) Err() error {
	return m.err
}

// Lines returns the session transcript.
func (m *SessionModel) Lines() []string {
	return m.lines
}

func (m *SessionModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		}

	case spinner.TickMsg:
		if m.state != stateConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConnectedMsg:
		m.state = stateConnected
		m.backend = msg.BackendURL
		return m, nil

	case ReceivedMsg:
		m.appendLine(IncomingStyle.Render(IconReceive+" ") + string(msg.Data))
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.appendLine(ErrorStyle.Render(fmt.Sprintf("%s %v", IconError, msg.err)))
		} else {
			m.appendLine(OutgoingStyle.Render(IconSend+" ") + msg.text)
		}
		return m, nil

	case ClosedMsg:
		m.state = stateClosed
		m.err = msg.Err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the typed line off the update loop; a write can take up to
// the relay's write timeout.
func (m *SessionModel) submit() tea.Cmd {
	text := m.input.Value()
	if text == "" {
		return nil
	}
	m.input.Reset()

	send := m.send
	return func() tea.Msg {
		return sentMsg{text: text, err: send([]byte(text))}
	}
}

func (m *SessionModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxSessionLines {
		m.lines = m.lines[len(m.lines)-maxSessionLines:]
	}
}

func (m *SessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconConnect+" "+m.title) + "\n")

	switch m.state {
	case stateConnecting:
		b.WriteString(fmt.Sprintf("%s Connecting to proxy...\n", m.spinner.View()))
	case stateConnected:
		b.WriteString(MutedStyle.Render("relaying to "+m.backend) + "\n")
	case stateClosed:
		if m.err != nil {
			b.WriteString(ErrorStyle.Render("connection lost: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(MutedStyle.Render("connection closed") + "\n")
		}
	}
	b.WriteString("\n")

	for _, line := range m.lines {
		b.WriteString(line + "\n")
	}

	if m.state == stateConnected {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	b.WriteString("\n" + MutedStyle.Render("Press esc to leave"))

	return b.String()
}
