package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/auth"
	"github.com/Shanky048/WisePal/internal/chat"
	"github.com/Shanky048/WisePal/internal/session"
	"github.com/Shanky048/WisePal/pkg/models"
)

type memStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStorage) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type fakeBackend struct {
	mu         sync.Mutex
	loginCalls int
	chatCalls  int
	chatErr    error
}

func (b *fakeBackend) Login(ctx context.Context, email, password string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginCalls++
	if password != "secret" {
		return "", &api.StatusError{Op: "login", Status: 400, Detail: "LOGIN_BAD_CREDENTIALS"}
	}
	return "tok", nil
}

func (b *fakeBackend) Conversations(ctx context.Context, token string) ([]models.Conversation, error) {
	return []models.Conversation{{Messages: []models.Message{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}}}, nil
}

func (b *fakeBackend) Chat(ctx context.Context, token, message string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatCalls++
	if b.chatErr != nil {
		return "", b.chatErr
	}
	return "echo: " + message, nil
}

func (b *fakeBackend) calls() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginCalls, b.chatCalls
}

func newTestModel(t *testing.T, backend *fakeBackend, token string) (model, *session.Store) {
	t.Helper()
	store := session.NewStore(&memStorage{values: map[string]string{}}, nil)
	if token != "" {
		if err := store.SetToken(context.Background(), token); err != nil {
			t.Fatalf("SetToken: %v", err)
		}
	}
	m := initialModel(context.Background(), Options{Backend: backend, Session: store})
	t.Cleanup(m.unsubscribe)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, store
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

// drain runs cmd and any batched commands, collecting the messages that
// arrive within a short deadline. Blocking commands are abandoned.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	select {
	case msg := <-done:
		batch, ok := msg.(tea.BatchMsg)
		if !ok {
			if msg == nil {
				return nil
			}
			return []tea.Msg{msg}
		}
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			msgs []tea.Msg
		)
		for _, c := range batch {
			wg.Add(1)
			go func(c tea.Cmd) {
				defer wg.Done()
				out := drain(c)
				mu.Lock()
				msgs = append(msgs, out...)
				mu.Unlock()
			}(c)
		}
		wg.Wait()
		return msgs
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

// pump feeds the results of cmd back into the model until no async work
// is left
func pump(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	for i := 0; i < 5 && cmd != nil; i++ {
		var next []tea.Cmd
		for _, msg := range drain(cmd) {
			switch msg.(type) {
			case LoginResultMsg, HistoryLoadedMsg, ReplyMsg:
				updated, c := m.Update(msg)
				m = updated.(model)
				next = append(next, c)
			}
		}
		cmd = tea.Batch(next...)
	}
	return m
}

func TestModelStartsOnLoginWithoutSession(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, "")

	if m.view != auth.ViewLogin {
		t.Errorf("Expected login view, got %v", m.view)
	}
	if !m.email.Focused() {
		t.Error("Email field should be focused")
	}
	if !strings.Contains(m.View(), "Welcome Back to WisePal") {
		t.Error("Login view should render the form title")
	}
}

func TestModelStartsOnChatWithSession(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend, "tok")

	if m.view != auth.ViewChat {
		t.Fatalf("Expected chat view, got %v", m.view)
	}

	m = pump(t, m, m.Init())
	if m.chat.State() != chat.StateReady {
		t.Errorf("Expected ready after history load, got %v", m.chat.State())
	}
	view := m.View()
	if !strings.Contains(view, "WisePal AI") {
		t.Error("Chat view should render the header")
	}
	if !strings.Contains(view, "earlier answer") {
		t.Error("History should be rendered in the viewport")
	}
}

func TestLoginFlow(t *testing.T) {
	backend := &fakeBackend{}
	m, store := newTestModel(t, backend, "")

	m.email.SetValue("a@b.com")
	m.password.SetValue("secret")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if !m.login.Submitting() {
		t.Fatal("Login should be in flight after enter")
	}
	if !strings.Contains(m.View(), "Signing in...") {
		t.Error("Login view should show the spinner while submitting")
	}

	// A second enter while in flight is ignored
	next, second := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	for _, msg := range drain(second) {
		if _, ok := msg.(LoginResultMsg); ok {
			t.Error("Second submission should not issue a login")
		}
	}

	m = pump(t, m, cmd)

	if logins, _ := backend.calls(); logins != 1 {
		t.Errorf("Expected exactly 1 login request, got %d", logins)
	}
	if token, ok := store.Token(); !ok || token != "tok" {
		t.Errorf("Expected token %q, got %q (%v)", "tok", token, ok)
	}
	if m.view != auth.ViewChat {
		t.Fatalf("Expected chat view after login, got %v", m.view)
	}
	if got := len(m.chat.Messages()); got != 2 {
		t.Errorf("Expected 2 history messages, got %d", got)
	}
	if m.password.Value() != "" {
		t.Error("Password should be cleared after login")
	}
}

func TestLoginFailureShowsDetail(t *testing.T) {
	backend := &fakeBackend{}
	m, store := newTestModel(t, backend, "")

	m.email.SetValue("a@b.com")
	m.password.SetValue("wrong")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = pump(t, next.(model), cmd)

	if m.view != auth.ViewLogin {
		t.Error("Failed login should stay on the login view")
	}
	if _, ok := store.Token(); ok {
		t.Error("Failed login should not set a token")
	}
	if !strings.Contains(m.View(), "LOGIN_BAD_CREDENTIALS") {
		t.Error("Login view should show the server detail")
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend, "")

	m.email.SetValue("a@b.com")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = pump(t, next.(model), cmd)

	if logins, _ := backend.calls(); logins != 0 {
		t.Errorf("Expected no login request, got %d", logins)
	}
	if !strings.Contains(m.View(), "Email and password are required.") {
		t.Error("Login view should explain the missing field")
	}
}

func TestTabSwitchesFields(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, "")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.email.Focused() || !m.password.Focused() {
		t.Error("Tab should move focus to the password field")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !m.email.Focused() {
		t.Error("Tab should move focus back to the email field")
	}
}

func readyChat(t *testing.T, backend *fakeBackend) (model, *session.Store) {
	t.Helper()
	m, store := newTestModel(t, backend, "tok")
	m = pump(t, m, m.Init())
	if m.chat.State() != chat.StateReady {
		t.Fatalf("Expected ready chat, got %v", m.chat.State())
	}
	return m, store
}

func TestSendMessage(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := readyChat(t, backend)

	m.input.SetValue("hello there")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	if m.input.Value() != "" {
		t.Error("Input should be cleared when a message is sent")
	}
	if m.chat.State() != chat.StateSending {
		t.Errorf("Expected sending, got %v", m.chat.State())
	}
	if !strings.Contains(m.View(), "Thinking...") {
		t.Error("Chat view should show the thinking spinner")
	}

	m = pump(t, m, cmd)

	messages := m.chat.Messages()
	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(messages))
	}
	if messages[3].Content != "echo: hello there" {
		t.Errorf("Unexpected reply %q", messages[3].Content)
	}
	if !strings.Contains(m.viewport.View(), "echo: hello there") {
		t.Error("Viewport should scroll to show the newest reply")
	}
}

func TestWhitespaceInputIsIgnored(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := readyChat(t, backend)

	m.input.SetValue("   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = pump(t, next.(model), cmd)

	if _, chats := backend.calls(); chats != 0 {
		t.Errorf("Expected no chat request, got %d", chats)
	}
	if len(m.chat.Messages()) != 2 {
		t.Error("Whitespace input should not append a message")
	}
}

func TestSendFailureShowsBanner(t *testing.T) {
	backend := &fakeBackend{chatErr: &api.StatusError{Op: "chat", Status: 500}}
	m, _ := readyChat(t, backend)

	m.input.SetValue("hello")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = pump(t, next.(model), cmd)

	if !strings.Contains(m.View(), chat.MsgSendFailed) {
		t.Error("Chat view should show the error banner")
	}
	if len(m.chat.Messages()) != 3 {
		t.Error("User message should stay after a failed send")
	}
}

func TestLogoutReturnsToLogin(t *testing.T) {
	m, store := readyChat(t, &fakeBackend{})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})

	if m.view != auth.ViewLogin {
		t.Errorf("Expected login view after logout, got %v", m.view)
	}
	if _, ok := store.Token(); ok {
		t.Error("Logout should clear the token")
	}
	if len(m.chat.Messages()) != 0 {
		t.Error("Logout should discard chat state")
	}
}

func TestClearedSessionRedirectsOnNextUpdate(t *testing.T) {
	m, store := readyChat(t, &fakeBackend{})

	if err := store.ClearToken(context.Background()); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if m.View() != "" {
		t.Error("Protected view should render nothing without a session")
	}

	m = update(t, m, m.spin.Tick())
	if m.view != auth.ViewLogin {
		t.Errorf("Expected redirect to login, got %v", m.view)
	}
}

func TestExpiredSessionShowsNotice(t *testing.T) {
	backend := &fakeBackend{chatErr: &api.StatusError{Op: "chat", Status: 401}}
	m, store := readyChat(t, backend)

	m.input.SetValue("hello")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = pump(t, next.(model), cmd)

	if m.view != auth.ViewLogin {
		t.Fatalf("Expected login view after 401, got %v", m.view)
	}
	if _, ok := store.Token(); ok {
		t.Error("401 should clear the token")
	}

	m = update(t, m, SessionChangedMsg{Change: session.Change{Reason: session.ReasonExpired}})
	if !strings.Contains(m.View(), auth.MsgSessionExpired) {
		t.Error("Login view should explain that the session expired")
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"short", 20, []string{"short"}},
		{"one two three four", 9, []string{"one two", "three", "four"}},
		{"line one\nline two", 20, []string{"line one", "line two"}},
		{"anything", 0, []string{"anything"}},
	}

	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestRendererAlignsByRole(t *testing.T) {
	r := newMessageRenderer(false)
	r.SetWidth(60)

	out := r.Render([]models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	})
	lines := strings.Split(out, "\n")
	indent := func(s string) int { return len(s) - len(strings.TrimLeft(s, " ")) }
	if indent(lines[0]) < 20 {
		t.Errorf("User messages should be right-aligned, got %q", lines[0])
	}
	if indent(lines[len(lines)-1]) > 1 {
		t.Errorf("Assistant messages should be left-aligned, got %q", lines[len(lines)-1])
	}

	if !strings.Contains(r.Render(nil), "No messages yet") {
		t.Error("Empty list should render a placeholder")
	}
}

func TestRendererMarkdown(t *testing.T) {
	r := newMessageRenderer(true)
	r.SetWidth(80)
	if r.glam == nil {
		t.Fatal("Markdown renderer should be created")
	}

	out := r.Render([]models.Message{{Role: models.RoleAssistant, Content: "some **bold** text"}})
	if !strings.Contains(out, "bold") {
		t.Errorf("Rendered markdown should keep the text, got %q", out)
	}
}

func TestSpinnerAdvancesOnTick(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, "")

	before := m.spin.View()
	m = update(t, m, m.spin.Tick())
	if m.spin.View() == before {
		t.Error("Spinner frame should advance on tick")
	}
}

func TestLoginViewShowsRegisterHint(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, "")

	if !strings.Contains(m.View(), "wisepal register") {
		t.Error("Login view should point new users at the register command")
	}
}
