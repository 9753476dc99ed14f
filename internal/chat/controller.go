// Package chat implements the chat view's state machine: it loads history,
// sends messages, and reacts to an expired session.
//
// Each network step comes in two halves so the terminal UI can run the
// request in a goroutine: BeginX changes state and returns a request, the
// caller performs it with Fetch, and FinishX applies the result. Results
// from a discarded view (an older generation) are ignored. LoadHistory and
// Send do all three synchronously.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/auth"
	"github.com/Shanky048/WisePal/internal/session"
	"github.com/Shanky048/WisePal/pkg/models"
)

const (
	MsgHistoryFailed = "Could not load chat history."
	MsgSendFailed    = "Sorry, I'm having trouble connecting. Please try again later."
)

var (
	ErrNotReady        = errors.New("chat is not ready")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrUnauthenticated = errors.New("not signed in")
	ErrStale           = errors.New("result belongs to a discarded view")
)

// State of the chat view
type State int

const (
	StateUnauthenticated State = iota
	StateLoadingHistory
	StateReady
	StateSending
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoadingHistory:
		return "loading-history"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Backend is the remote chat API
type Backend interface {
	Conversations(ctx context.Context, token string) ([]models.Conversation, error)
	Chat(ctx context.Context, token, message string) (string, error)
}

// Recorder keeps a local copy of live messages
type Recorder interface {
	Record(ctx context.Context, msg models.Message) error
}

// HistoryRequest is an in-flight history load
type HistoryRequest struct {
	Token      string
	generation uint64
}

// SendRequest is an in-flight chat message
type SendRequest struct {
	Token      string
	Message    string
	generation uint64
}

// Controller owns the chat view's state
type Controller struct {
	backend    Backend
	session    session.Reader
	terminator session.Terminator
	nav        auth.Navigator
	recorder   Recorder
	logger     *zap.Logger

	mu         sync.Mutex
	state      State
	messages   []models.Message
	errMsg     string
	revision   uint64
	generation uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder records every live message
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller in the unauthenticated state
func NewController(backend Backend, reader session.Reader, terminator session.Terminator, nav auth.Navigator, opts ...Option) *Controller {
	c := &Controller{
		backend:    backend,
		session:    reader,
		terminator: terminator,
		nav:        nav,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginHistory clears the view and starts loading history. Without a
// session it redirects to login and returns ErrUnauthenticated.
func (c *Controller) BeginHistory() (HistoryRequest, error) {
	token, ok := c.session.Token()
	if !ok {
		c.Discard()
		c.nav.Navigate(auth.ViewLogin)
		return HistoryRequest{}, ErrUnauthenticated
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.state = StateLoadingHistory
	c.messages = nil
	c.errMsg = ""
	c.revision++
	return HistoryRequest{Token: token, generation: c.generation}, nil
}

// FetchHistory performs the request. It touches no controller state.
func (c *Controller) FetchHistory(ctx context.Context, req HistoryRequest) ([]models.Conversation, error) {
	return c.backend.Conversations(ctx, req.Token)
}

// FinishHistory applies a history result
func (c *Controller) FinishHistory(ctx context.Context, req HistoryRequest, convs []models.Conversation, err error) error {
	c.mu.Lock()
	if req.generation != c.generation {
		c.mu.Unlock()
		return ErrStale
	}
	if errors.Is(err, api.ErrUnauthorized) {
		c.discardLocked()
		c.mu.Unlock()
		c.expire(ctx)
		return err
	}
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("failed to load chat history", zap.Error(err))
		c.messages = nil
		c.errMsg = MsgHistoryFailed
	} else {
		c.messages = models.Flatten(convs)
		c.logger.Debug("chat history loaded",
			zap.Int("conversations", len(convs)),
			zap.Int("messages", len(c.messages)))
	}
	c.state = StateReady
	c.revision++
	return err
}

// LoadHistory loads history synchronously
func (c *Controller) LoadHistory(ctx context.Context) error {
	req, err := c.BeginHistory()
	if err != nil {
		return err
	}
	convs, err := c.FetchHistory(ctx, req)
	return c.FinishHistory(ctx, req, convs, err)
}

// BeginSend appends the user's message and moves to sending. Blank input,
// or any state but ready, is rejected without side effects.
func (c *Controller) BeginSend(ctx context.Context, input string) (SendRequest, error) {
	if strings.TrimSpace(input) == "" {
		return SendRequest{}, ErrEmptyMessage
	}
	token, ok := c.session.Token()
	if !ok {
		return SendRequest{}, ErrUnauthenticated
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return SendRequest{}, ErrNotReady
	}
	msg := models.Message{Role: models.RoleUser, Content: input}
	c.messages = append(c.messages, msg)
	c.errMsg = ""
	c.state = StateSending
	c.revision++
	req := SendRequest{Token: token, Message: input, generation: c.generation}
	c.mu.Unlock()

	c.record(ctx, msg)
	return req, nil
}

// FetchReply performs the request. It touches no controller state.
func (c *Controller) FetchReply(ctx context.Context, req SendRequest) (string, error) {
	return c.backend.Chat(ctx, req.Token, req.Message)
}

// FinishSend applies a chat result. The user's message stays on failure.
func (c *Controller) FinishSend(ctx context.Context, req SendRequest, reply string, err error) error {
	c.mu.Lock()
	if req.generation != c.generation {
		c.mu.Unlock()
		return ErrStale
	}
	if errors.Is(err, api.ErrUnauthorized) {
		c.discardLocked()
		c.mu.Unlock()
		c.expire(ctx)
		return err
	}

	var msg models.Message
	if err != nil {
		c.logger.Warn("failed to send chat message", zap.String("kind", api.Kind(err)), zap.Error(err))
		c.errMsg = MsgSendFailed
	} else {
		msg = models.Message{Role: models.RoleAssistant, Content: reply}
		c.messages = append(c.messages, msg)
	}
	c.state = StateReady
	c.revision++
	c.mu.Unlock()

	if err == nil {
		c.record(ctx, msg)
	}
	return err
}

// Send sends one message synchronously and returns the reply
func (c *Controller) Send(ctx context.Context, input string) (string, error) {
	req, err := c.BeginSend(ctx, input)
	if err != nil {
		return "", err
	}
	reply, err := c.FetchReply(ctx, req)
	if err := c.FinishSend(ctx, req, reply, err); err != nil {
		return "", err
	}
	return reply, nil
}

// Logout ends the session and returns to the login view
func (c *Controller) Logout(ctx context.Context) error {
	c.Discard()
	err := c.terminator.ClearToken(ctx)
	c.nav.Navigate(auth.ViewLogin)
	c.logger.Info("logged out")
	return err
}

// Discard drops all view state. In-flight results become stale.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked()
}

func (c *Controller) discardLocked() {
	c.generation++
	c.state = StateUnauthenticated
	c.messages = nil
	c.errMsg = ""
	c.revision++
}

// expire signs out after the server rejected the token. View state must
// already be discarded.
func (c *Controller) expire(ctx context.Context) {
	c.logger.Info("session rejected by server, signing out")
	if err := c.terminator.Expire(ctx); err != nil {
		c.logger.Warn("failed to clear expired session", zap.Error(err))
	}
	c.nav.Navigate(auth.ViewLogin)
}

func (c *Controller) record(ctx context.Context, msg models.Message) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, msg); err != nil {
		c.logger.Warn("failed to record transcript entry", zap.Error(err))
	}
}

// Messages returns a copy of the display list
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the inline error banner, or ""
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Revision increases on every change to the display list
func (c *Controller) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}
