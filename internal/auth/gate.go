// Package auth decides which view a session may see and drives the login form.
package auth

import (
	"sync"

	"github.com/Shanky048/WisePal/internal/session"
)

// View identifies a top-level screen
type View int

const (
	ViewLogin View = iota
	ViewChat
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Navigator switches the active view
type Navigator interface {
	Navigate(View)
}

// Decision is the gate's verdict for a protected view
type Decision int

const (
	Redirect Decision = iota
	Proceed
)

func (d Decision) String() string {
	if d == Proceed {
		return "proceed"
	}
	return "redirect"
}

// Gate guards protected views
type Gate struct {
	session session.Reader
}

// NewGate creates a gate over the session
func NewGate(r session.Reader) *Gate {
	return &Gate{session: r}
}

// Check evaluates the current session
func (g *Gate) Check() Decision {
	if _, ok := g.session.Token(); ok {
		return Proceed
	}
	return Redirect
}

// Evaluate decides from a session change notification
func (g *Gate) Evaluate(change session.Change) Decision {
	if change.Authenticated {
		return Proceed
	}
	return Redirect
}

// Router is a Navigator that remembers the active view and reports switches.
// Navigating to the active view does nothing.
type Router struct {
	mu       sync.Mutex
	current  View
	onChange func(View)
}

// NewRouter starts on initial. onChange, if set, runs after each switch.
func NewRouter(initial View, onChange func(View)) *Router {
	return &Router{current: initial, onChange: onChange}
}

func (r *Router) Navigate(v View) {
	r.mu.Lock()
	if r.current == v {
		r.mu.Unlock()
		return
	}
	r.current = v
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange(v)
	}
}

// Current returns the active view
func (r *Router) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
