package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/session"
)

const (
	MsgLoginFailed    = "Login failed. Please check your credentials."
	MsgUnreachable    = "Could not reach the server. Please try again."
	MsgSessionExpired = "Your session has expired. Please log in again."
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrSubmitInFlight     = errors.New("login already in progress")
)

// Authenticator exchanges credentials for a token
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// LoginController owns the login form state
type LoginController struct {
	auth    Authenticator
	session session.Writer
	nav     Navigator
	logger  *zap.Logger

	mu         sync.Mutex
	submitting bool
	errMsg     string
	notice     string
}

// NewLoginController creates a login controller. It is the only holder of
// the session Writer.
func NewLoginController(auth Authenticator, w session.Writer, nav Navigator, logger *zap.Logger) *LoginController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginController{auth: auth, session: w, nav: nav, logger: logger}
}

// TryBegin validates input and marks a submission in flight. It must return
// nil before Authenticate is called.
func (c *LoginController) TryBegin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrMissingCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return ErrSubmitInFlight
	}
	c.submitting = true
	c.errMsg = ""
	return nil
}

// Authenticate issues the login request for a submission started with
// TryBegin and ends it. On success the token is stored and the chat view
// is opened.
func (c *LoginController) Authenticate(ctx context.Context, email, password string) error {
	token, err := c.auth.Login(ctx, email, password)
	if err != nil {
		c.finish(loginErrorMessage(err), c.Notice())
		c.logger.Info("login failed", zap.String("kind", api.Kind(err)))
		return err
	}

	if err := c.session.SetToken(ctx, token); err != nil {
		// The in-memory session is set, only the durable copy is missing
		c.logger.Warn("login succeeded but token was not persisted", zap.Error(err))
	}
	c.finish("", "")
	c.logger.Info("login succeeded")
	c.nav.Navigate(ViewChat)
	return nil
}

// Submit runs TryBegin and Authenticate in sequence
func (c *LoginController) Submit(ctx context.Context, email, password string) error {
	if err := c.TryBegin(email, password); err != nil {
		return err
	}
	return c.Authenticate(ctx, email, password)
}

func (c *LoginController) finish(errMsg, notice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	c.errMsg = errMsg
	c.notice = notice
}

// Submitting reports whether a request is in flight
func (c *LoginController) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Err returns the message to show under the form, or ""
func (c *LoginController) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Notice returns the informational line shown above the form
func (c *LoginController) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

func (c *LoginController) SetNotice(notice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = notice
}

func loginErrorMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Detail != "" {
			return statusErr.Detail
		}
		return MsgLoginFailed
	}
	var transportErr *api.TransportError
	if errors.As(err, &transportErr) {
		return MsgUnreachable
	}
	return MsgLoginFailed
}
