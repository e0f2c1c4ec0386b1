// Package console is a local terminal transport: it plays one chat member
// talking to the bot, and shows reminders the scheduler sends to any group.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/classbot/internal/bot"
)

// Dispatcher handles one normalized message.
type Dispatcher interface {
	Handle(ctx context.Context, in bot.Input) (string, bool)
}

// Session is the simulated sender and chat.
type Session struct {
	Phone   string
	LID     string
	Name    string
	GroupID string
	Admin   bool
	InGroup bool
}

func (s Session) input(text string) bot.Input {
	in := bot.Input{
		SenderID:    s.Phone,
		SenderPhone: s.Phone,
		SenderLID:   s.LID,
		SenderName:  s.Name,
		Text:        text,
		IsAdmin:     s.Admin,
		IsFromGroup: s.InGroup,
	}
	if s.InGroup {
		in.GroupID = s.GroupID
	}
	return in
}

func (s Session) String() string {
	chat := "chat pribadi"
	if s.InGroup {
		chat = "grup " + s.GroupID
	}
	role := "anggota"
	if s.Admin {
		role = "admin"
	}
	return fmt.Sprintf("%s (%s, %s) • %s • %s", s.Name, s.Phone, s.LID, chat, role)
}

// Messages.
type replyMsg struct {
	text    string
	handled bool
}

type notificationMsg struct {
	destination string
	content     string
}

const sessionHelp = "Perintah sesi:\n" +
	"  :sebagai <nomor> [lid] [nama]  ganti pengirim\n" +
	"  :admin                         hak admin on/off\n" +
	"  :grup <id>                     kirim dari grup\n" +
	"  :pribadi                       kirim dari chat pribadi\n" +
	"  :status                        tampilkan sesi"

// Model holds the console state.
type Model struct {
	ctx      context.Context
	dispatch Dispatcher
	theme    Theme
	keymap   KeyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	session  Session
	lines    []string
	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel creates a console model for session.
func NewModel(ctx context.Context, dispatch Dispatcher, session Session) Model {
	ti := textinput.New()
	ti.Placeholder = "ketik perintah, mis. .menu"
	ti.Prompt = "› "
	ti.CharLimit = 1000
	ti.Focus()

	m := Model{
		ctx:      ctx,
		dispatch: dispatch,
		theme:    Default,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		input:    ti,
		viewport: viewport.New(80, 20),
		session:  session,
	}
	m.appendLine(m.theme.System.Render("Ketik :bantuan untuk perintah sesi."))
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
		m.ready = true

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Clear):
			m.lines = nil
			m.viewport.SetContent("")
			return m, nil
		case key.Matches(msg, m.keymap.Send):
			return m, m.submit()
		case key.Matches(msg, m.keymap.PageUp), key.Matches(msg, m.keymap.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		if msg.handled {
			m.appendLine(m.theme.Reply.Render(msg.text))
		} else {
			m.appendLine(m.theme.System.Render("(tidak ada balasan)"))
		}
		return m, nil

	case notificationMsg:
		header := m.theme.Notification.Render("🔔 kiriman ke " + msg.destination)
		m.appendLine(header + "\n" + m.theme.Reply.Render(msg.content))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit consumes the input line and either applies a session command or
// dispatches it to the bot.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, ":") {
		m.appendLine(m.theme.System.Render(m.applySession(text)))
		return nil
	}

	m.appendLine(m.theme.Outgoing.Render(m.session.Name + ": " + text))

	ctx, dispatch, in := m.ctx, m.dispatch, m.session.input(text)
	return func() tea.Msg {
		reply, handled := dispatch.Handle(ctx, in)
		return replyMsg{text: reply, handled: handled}
	}
}

func (m *Model) applySession(text string) string {
	fields := strings.Fields(strings.TrimPrefix(text, ":"))
	if len(fields) == 0 {
		return sessionHelp
	}

	switch strings.ToLower(fields[0]) {
	case "sebagai":
		if len(fields) < 2 {
			return "Format: :sebagai <nomor> [lid] [nama]"
		}
		m.session.Phone = fields[1]
		m.session.LID = fields[1] + "@lid"
		m.session.Name = fields[1]
		if len(fields) > 2 {
			m.session.LID = fields[2]
		}
		if len(fields) > 3 {
			m.session.Name = strings.Join(fields[3:], " ")
		}
	case "admin":
		m.session.Admin = !m.session.Admin
	case "grup":
		if len(fields) < 2 {
			return "Format: :grup <id>"
		}
		m.session.GroupID = fields[1]
		m.session.InGroup = true
	case "pribadi":
		m.session.InGroup = false
	case "status":
	default:
		return sessionHelp
	}
	return "Sesi: " + m.session.String()
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
	m.viewport.GotoBottom()
}

// handleResize gives the transcript everything but the header, input and
// help rows.
func (m *Model) handleResize() {
	m.viewport.Width = max(m.width-2, 10)
	m.viewport.Height = max(m.height-7, 3)
	m.input.Width = max(m.width-4, 10)
	m.help.Width = m.width
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.theme.System.Render("Memuat konsol...")
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("Bot Kelas • konsol"),
		m.theme.Status.Render(m.session.String()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.theme.Frame.Render(m.viewport.View()),
		m.input.View(),
		m.theme.Help.Render(m.help.View(m.keymap)),
	)
}
