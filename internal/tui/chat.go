// Package tui implements the interactive chat surface: a bubbletea
// conversation view bound to the assistant orchestrator.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ledgerlens/ledgerlens/internal/assistant"
	"github.com/ledgerlens/ledgerlens/internal/cli"
)

// Asker is the conversational backend the chat binds to.
type Asker interface {
	Ask(ctx context.Context, userID, conversationID, message string) (*assistant.Response, error)
}

// Config holds the chat dependencies.
type Config struct {
	// Asker answers each submitted message.
	Asker Asker
	// UserID scopes the conversation.
	UserID string
	// ConversationID resumes an existing conversation when set.
	ConversationID string
}

// KeyMap defines the chat keyboard shortcuts.
type KeyMap struct {
	Send key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// turnRole tags who produced a transcript entry.
type turnRole int

const (
	roleUser turnRole = iota
	roleAssistant
)

// turn is one rendered entry in the transcript.
type turn struct {
	content  string
	tools    []string
	role     turnRole
	fallback bool
}

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.InfoColor)
	toolNoteStyle       = lipgloss.NewStyle().Italic(true).Foreground(cli.SubtleColor)
	errorLineStyle      = lipgloss.NewStyle().Foreground(cli.ErrorColor)
	hintStyle           = lipgloss.NewStyle().Foreground(cli.SubtleColor)
	headerStyle         = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
)

// Messages produced by the ask command.
type responseMsg struct {
	response *assistant.Response
}

type askFailedMsg struct {
	err error
}

// chatModel holds the chat state.
type chatModel struct {
	ctx            context.Context
	asker          Asker
	lastError      error
	userID         string
	conversationID string
	turns          []turn
	viewport       viewport.Model
	textarea       textarea.Model
	spinner        spinner.Model
	keymap         KeyMap
	width          int
	height         int
	waiting        bool
	ready          bool
	quitting       bool
}

// newChatModel creates the chat model. The context carries through to each
// orchestrator call so quitting the program abandons in-flight turns.
func newChatModel(ctx context.Context, config Config) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about your money..."
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(cli.PrimaryColor)

	return chatModel{
		ctx:            ctx,
		asker:          config.Asker,
		userID:         config.UserID,
		conversationID: config.ConversationID,
		viewport:       viewport.New(0, 0),
		textarea:       ta,
		spinner:        s,
		keymap:         DefaultKeyMap(),
	}
}

// Init initializes the model.
func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages and updates the model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Send):
			cmd := m.send()
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
		m.ready = true
		return m, nil

	case responseMsg:
		m.waiting = false
		m.conversationID = msg.response.ConversationID
		m.turns = append(m.turns, turn{
			role:     roleAssistant,
			content:  msg.response.Text,
			tools:    msg.response.ToolsUsed,
			fallback: msg.response.Fallback,
		})
		m.refreshViewport()
		return m, nil

	case askFailedMsg:
		m.waiting = false
		m.lastError = msg.err
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

// View renders the UI.
func (m chatModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(cli.LensIcon+" LedgerLens"),
		m.viewport.View(),
		m.statusLine(),
		m.textarea.View(),
	)
}

// send submits the composed message as a new user turn.
func (m *chatModel) send() tea.Cmd {
	message := strings.TrimSpace(m.textarea.Value())
	if message == "" || m.waiting {
		return nil
	}

	m.turns = append(m.turns, turn{role: roleUser, content: message})
	m.textarea.Reset()
	m.waiting = true
	m.lastError = nil
	m.refreshViewport()

	return tea.Batch(m.spinner.Tick, m.ask(message))
}

// ask calls the orchestrator off the UI goroutine.
func (m *chatModel) ask(message string) tea.Cmd {
	ctx := m.ctx
	asker := m.asker
	userID := m.userID
	conversationID := m.conversationID

	return func() tea.Msg {
		response, err := asker.Ask(ctx, userID, conversationID, message)
		if err != nil {
			return askFailedMsg{err: err}
		}
		return responseMsg{response: response}
	}
}

// handleResize fits the viewport and textarea to the terminal.
func (m *chatModel) handleResize() {
	m.textarea.SetWidth(m.width)
	m.viewport.Width = m.width

	// Header, status line, and the textarea frame the transcript.
	height := m.height - m.textarea.Height() - 3
	if height < 1 {
		height = 1
	}
	m.viewport.Height = height

	m.refreshViewport()
}

// refreshViewport re-renders the transcript and keeps it scrolled to the
// latest turn.
func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// renderTranscript renders all turns, wrapped to the viewport width.
func (m *chatModel) renderTranscript() string {
	if len(m.turns) == 0 {
		return hintStyle.Render("Ask about your spending, subscriptions, goals, or recent anomalies.")
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width)

	blocks := make([]string, 0, len(m.turns))
	for _, t := range m.turns {
		var b strings.Builder
		switch t.role {
		case roleUser:
			b.WriteString(userLabelStyle.Render("You"))
		case roleAssistant:
			b.WriteString(assistantLabelStyle.Render("Lens"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(t.content))

		if len(t.tools) > 0 {
			b.WriteString("\n")
			b.WriteString(toolNoteStyle.Render("tools: " + strings.Join(t.tools, ", ")))
		}
		if t.fallback {
			b.WriteString("\n")
			b.WriteString(toolNoteStyle.Render("offline summary, the model was unavailable"))
		}

		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n")
}

// statusLine renders the line between transcript and input.
func (m *chatModel) statusLine() string {
	if m.waiting {
		return m.spinner.View() + hintStyle.Render(" thinking...")
	}
	if m.lastError != nil {
		return errorLineStyle.Render(fmt.Sprintf("%s %v", cli.ErrorIcon, m.lastError))
	}
	return hintStyle.Render("enter to send • esc to quit")
}
