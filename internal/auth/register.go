package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/Shanky048/WisePal/internal/api"
)

const MsgRegisterFailed = "Registration failed. Please try again."

// Registrar creates accounts
type Registrar interface {
	Register(ctx context.Context, email, password string) (string, error)
}

// RegisterError carries the message to show for a failed registration
type RegisterError struct {
	Message string
	Err     error
}

func (e *RegisterError) Error() string { return e.Message }

func (e *RegisterError) Unwrap() error { return e.Err }

// Register creates an account. It does not touch the session; the new user
// still signs in through the login flow.
func Register(ctx context.Context, r Registrar, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", ErrMissingCredentials
	}
	created, err := r.Register(ctx, email, password)
	if err != nil {
		return "", &RegisterError{Message: registerErrorMessage(err), Err: err}
	}
	return created, nil
}

func registerErrorMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Detail != "" {
		return statusErr.Detail
	}
	var transportErr *api.TransportError
	if errors.As(err, &transportErr) {
		return MsgUnreachable
	}
	return MsgRegisterFailed
}
