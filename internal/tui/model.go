package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	Greeting = "Hi there! I'm HealixAI, your medical assistant. How can I help you today?"
	Goodbye  = "Goodbye!"
	Cleared  = "History cleared."
	Thinking = "HealixAI is thinking..."
	helpLine = "Enter to send · c clears history · q quits"
)

// Conversation is the chat session driven by the TUI.
type Conversation interface {
	Ask(ctx context.Context, q string) string
	Reset()
}

type answerMsg struct {
	answer string
}

type line struct {
	speaker string
	text    string
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	conversation Conversation
	ctx          context.Context
	input        textinput.Model
	viewport     viewport.Model
	transcript   []line
	status       string
	busy         bool
	ready        bool
	quitting     bool
}

func New(ctx context.Context, conversation Conversation) Model {
	ti := textinput.New()
	ti.Prompt = "You: "
	ti.Placeholder = "Ask a medical question"
	ti.Focus()
	ti.CharLimit = 4000
	return Model{
		conversation: conversation,
		ctx:          ctx,
		input:        ti,
		viewport:     viewport.New(0, 0),
		transcript:   []line{{speaker: "HealixAI", text: Greeting}},
		status:       helpLine,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box line
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		m.status = helpLine
		m.transcript = append(m.transcript, line{speaker: "HealixAI", text: msg.answer})
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.quitting = true
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	q := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	switch strings.ToLower(q) {
	case "":
		return m, nil
	case "q", "quit":
		m.quitting = true
		m.transcript = append(m.transcript, line{speaker: "HealixAI", text: Goodbye})
		m.refresh()
		return m, tea.Quit
	case "c":
		m.conversation.Reset()
		m.status = Cleared
		m.transcript = []line{{speaker: "HealixAI", text: Greeting}}
		m.refresh()
		return m, nil
	}
	m.transcript = append(m.transcript, line{speaker: "You", text: q})
	m.busy = true
	m.status = Thinking
	m.refresh()
	conversation, ctx := m.conversation, m.ctx
	return m, func() tea.Msg {
		return answerMsg{answer: conversation.Ask(ctx, q)}
	}
}

func (m Model) View() string {
	if m.quitting {
		return Goodbye + "\n"
	}
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("=== HealixAI Chatbot ===")
	body := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := max(20, m.viewport.Width)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, l := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		speaker := userStyle
		if l.speaker != "You" {
			speaker = botStyle
		}
		b.WriteString(wrap.Render(speaker.Render(l.speaker+":") + " " + l.text))
	}
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, conversation Conversation) error {
	_, err := tea.NewProgram(New(ctx, conversation), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
