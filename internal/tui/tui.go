package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/Shanky048/WisePal/internal/auth"
	"github.com/Shanky048/WisePal/internal/chat"
	"github.com/Shanky048/WisePal/internal/session"
)

// Backend is the remote API as seen by the views
type Backend interface {
	auth.Authenticator
	chat.Backend
}

// Options wires the views to the rest of the application
type Options struct {
	Backend        Backend
	Session        *session.Store
	Recorder       chat.Recorder
	Logger         *zap.Logger
	RenderMarkdown bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	loginBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
)

type model struct {
	ctx    context.Context
	logger *zap.Logger

	session *session.Store
	gate    *auth.Gate
	router  *auth.Router
	login   *auth.LoginController
	chat    *chat.Controller

	changes     <-chan session.Change
	unsubscribe func()

	view     auth.View
	email    textinput.Model
	password textinput.Model
	input    textinput.Model
	viewport viewport.Model
	renderer *messageRenderer

	spin    spinner.Model
	formErr string

	renderedRevision uint64
	ready            bool
	width            int
	height           int
}

func initialModel(ctx context.Context, opts Options) model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gate := auth.NewGate(opts.Session)
	view := auth.ViewLogin
	if gate.Check() == auth.Proceed {
		view = auth.ViewChat
	}
	router := auth.NewRouter(view, nil)

	chatOpts := []chat.Option{chat.WithLogger(logger)}
	if opts.Recorder != nil {
		chatOpts = append(chatOpts, chat.WithRecorder(opts.Recorder))
	}

	changes, unsubscribe := opts.Session.Subscribe()

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	input := textinput.New()
	input.Placeholder = "Ask WisePal anything..."
	input.Prompt = "> "

	m := model{
		ctx:         ctx,
		logger:      logger,
		session:     opts.Session,
		gate:        gate,
		router:      router,
		login:       auth.NewLoginController(opts.Backend, opts.Session, router, logger),
		chat:        chat.NewController(opts.Backend, opts.Session, opts.Session, router, chatOpts...),
		changes:     changes,
		unsubscribe: unsubscribe,
		view:        view,
		email:       email,
		password:    password,
		input:       input,
		renderer:    newMessageRenderer(opts.RenderMarkdown),
		spin:        newSpinner(),
	}
	if view == auth.ViewLogin {
		m.email.Focus()
	} else {
		m.input.Focus()
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spin.Tick, waitForChange(m.changes)}
	if m.view == auth.ViewChat {
		cmds = append(cmds, m.startHistory())
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.unsubscribe()
			return m, tea.Quit
		}
		if m.view == auth.ViewLogin {
			cmds = append(cmds, m.updateLogin(msg))
		} else {
			cmds = append(cmds, m.updateChat(msg))
		}

	case LoginResultMsg:
		if msg.Error == nil {
			m.email.Reset()
			m.password.Reset()
		} else {
			cmds = append(cmds, m.focusLoginField())
		}

	case HistoryLoadedMsg:
		if err := m.chat.FinishHistory(m.ctx, msg.Request, msg.Conversations, msg.Error); errors.Is(err, chat.ErrStale) {
			m.logger.Debug("ignoring history for a discarded view")
		}

	case ReplyMsg:
		if err := m.chat.FinishSend(m.ctx, msg.Request, msg.Reply, msg.Error); errors.Is(err, chat.ErrStale) {
			m.logger.Debug("ignoring reply for a discarded view")
		}
		if m.view == auth.ViewChat {
			cmds = append(cmds, m.input.Focus())
		}

	case SessionChangedMsg:
		if m.gate.Evaluate(msg.Change) == auth.Redirect {
			if msg.Change.Reason == session.ReasonExpired {
				m.login.SetNotice(auth.MsgSessionExpired)
			}
			m.redirectToLogin()
		}
		cmds = append(cmds, waitForChange(m.changes))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	default:
		cmds = append(cmds, m.updateInputs(msg))
	}

	cmds = append(cmds, m.syncView())
	m.refreshViewport()

	return m, tea.Batch(cmds...)
}

func (m *model) updateLogin(msg tea.KeyMsg) tea.Cmd {
	// Inputs are disabled while a login is in flight
	if m.login.Submitting() {
		return nil
	}

	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		if m.email.Focused() {
			m.email.Blur()
			return m.password.Focus()
		}
		m.password.Blur()
		return m.email.Focus()

	case "enter":
		email, password := m.email.Value(), m.password.Value()
		if err := m.login.TryBegin(email, password); err != nil {
			if errors.Is(err, auth.ErrMissingCredentials) {
				m.formErr = "Email and password are required."
			}
			return nil
		}
		m.formErr = ""
		m.email.Blur()
		m.password.Blur()
		return loginCmd(m.ctx, m.login, email, password)
	}

	var cmd tea.Cmd
	if m.email.Focused() {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *model) updateChat(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+l":
		if err := m.chat.Logout(m.ctx); err != nil {
			m.logger.Warn("logout did not remove the stored token", zap.Error(err))
		}
		return nil

	case "enter":
		req, err := m.chat.BeginSend(m.ctx, m.input.Value())
		if err != nil {
			return nil
		}
		m.input.Reset()
		m.input.Blur()
		return sendCmd(m.ctx, m.chat, req)

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	// The input is disabled while sending
	if m.chat.State() == chat.StateSending {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// updateInputs forwards non-key messages such as cursor blinks
func (m *model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.view == auth.ViewChat:
		m.input, cmd = m.input.Update(msg)
	case m.email.Focused():
		m.email, cmd = m.email.Update(msg)
	case m.password.Focused():
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *model) focusLoginField() tea.Cmd {
	if m.email.Value() == "" {
		return m.email.Focus()
	}
	return m.password.Focus()
}

// redirectToLogin leaves the chat view if it is showing
func (m *model) redirectToLogin() {
	if m.router.Current() == auth.ViewChat {
		m.chat.Discard()
		m.router.Navigate(auth.ViewLogin)
	}
}

// syncView follows the router and enters the new view
func (m *model) syncView() tea.Cmd {
	if m.view == auth.ViewChat && m.gate.Check() == auth.Redirect {
		m.redirectToLogin()
	}

	current := m.router.Current()
	if current == m.view {
		return nil
	}
	m.view = current
	m.logger.Debug("view changed", zap.Stringer("view", current))

	if current == auth.ViewChat {
		m.formErr = ""
		m.email.Blur()
		m.password.Blur()
		return tea.Batch(m.input.Focus(), m.startHistory())
	}

	m.input.Reset()
	m.input.Blur()
	m.password.Reset()
	return m.focusLoginField()
}

func (m model) startHistory() tea.Cmd {
	req, err := m.chat.BeginHistory()
	if err != nil {
		return nil
	}
	return loadHistoryCmd(m.ctx, m.chat, req)
}

// layout sizes the viewport to the window: header, status, input and footer
// take one line each
func (m *model) layout() {
	vpHeight := m.height - 4
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.Width = m.width - 4
	m.renderer.SetWidth(m.width)

	m.viewport.SetContent(m.renderer.Render(m.chat.Messages()))
	m.viewport.GotoBottom()
	m.renderedRevision = m.chat.Revision()
}

// refreshViewport re-renders and scrolls to the newest message whenever the
// display list changed
func (m *model) refreshViewport() {
	if !m.ready {
		return
	}
	revision := m.chat.Revision()
	if revision == m.renderedRevision {
		return
	}
	m.viewport.SetContent(m.renderer.Render(m.chat.Messages()))
	m.viewport.GotoBottom()
	m.renderedRevision = revision
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	if m.view == auth.ViewLogin {
		return m.loginView()
	}

	// A protected view renders nothing without a session
	if m.gate.Check() == auth.Redirect {
		return ""
	}
	return m.chatView()
}

func (m model) loginView() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("141")).
		Render("Welcome Back to WisePal")

	lines := []string{title, ""}
	if notice := m.login.Notice(); notice != "" {
		lines = append(lines, noticeStyle.Render(notice), "")
	}
	lines = append(lines,
		labelStyle.Render("Email"),
		m.email.View(),
		"",
		labelStyle.Render("Password"),
		m.password.View(),
		"",
	)

	switch {
	case m.login.Submitting():
		lines = append(lines, busyView(m.spin, labelSigningIn))
	case m.login.Err() != "":
		lines = append(lines, errorStyle.Render(m.login.Err()))
	case m.formErr != "":
		lines = append(lines, errorStyle.Render(m.formErr))
	default:
		lines = append(lines, "")
	}
	lines = append(lines,
		"",
		hintStyle.Render("tab: switch field • enter: sign in • ctrl+c: quit"),
		hintStyle.Render("No account? Run: wisepal register --email you@example.com"),
	)

	box := loginBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m model) chatView() string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("WisePal AI"),
		" ",
		hintStyle.Render("ctrl+l: logout"),
	)

	var status string
	switch {
	case m.chat.State() == chat.StateSending:
		status = busyView(m.spin, labelThinking)
	case m.chat.State() == chat.StateLoadingHistory:
		status = hintStyle.Render("Loading history...")
	case m.chat.Err() != "":
		status = errorStyle.Render(m.chat.Err())
	}

	footer := hintStyle.Render("enter: send • ↑/↓ pgup/pgdn: scroll • ctrl+l: logout • ctrl+c: quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, m.viewport.View(), status, m.input.View(), footer)
}

// Run starts the terminal UI and blocks until the user quits
func Run(ctx context.Context, opts Options) error {
	m := initialModel(ctx, opts)
	defer m.unsubscribe()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}
