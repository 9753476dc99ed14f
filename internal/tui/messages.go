package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Shanky048/WisePal/internal/auth"
	"github.com/Shanky048/WisePal/internal/chat"
	"github.com/Shanky048/WisePal/internal/session"
	"github.com/Shanky048/WisePal/pkg/models"
)

// Message types for async operations
type (
	// LoginResultMsg reports a finished login attempt
	LoginResultMsg struct {
		Error error
	}

	// HistoryLoadedMsg contains loaded conversation history
	HistoryLoadedMsg struct {
		Request       chat.HistoryRequest
		Conversations []models.Conversation
		Error         error
	}

	// ReplyMsg contains the assistant's reply to a sent message
	ReplyMsg struct {
		Request chat.SendRequest
		Reply   string
		Error   error
	}

	// SessionChangedMsg forwards a session store notification
	SessionChangedMsg struct {
		Change session.Change
	}
)

// loginCmd authenticates a submission already accepted by TryBegin
func loginCmd(ctx context.Context, lc *auth.LoginController, email, password string) tea.Cmd {
	return func() tea.Msg {
		err := lc.Authenticate(ctx, email, password)
		return LoginResultMsg{Error: err}
	}
}

// loadHistoryCmd fetches conversation history asynchronously
func loadHistoryCmd(ctx context.Context, ctrl *chat.Controller, req chat.HistoryRequest) tea.Cmd {
	return func() tea.Msg {
		convs, err := ctrl.FetchHistory(ctx, req)
		return HistoryLoadedMsg{
			Request:       req,
			Conversations: convs,
			Error:         err,
		}
	}
}

// sendCmd sends a chat message asynchronously
func sendCmd(ctx context.Context, ctrl *chat.Controller, req chat.SendRequest) tea.Cmd {
	return func() tea.Msg {
		reply, err := ctrl.FetchReply(ctx, req)
		return ReplyMsg{
			Request: req,
			Reply:   reply,
			Error:   err,
		}
	}
}

// waitForChange blocks until the session changes. It returns nil once the
// subscription is cancelled.
func waitForChange(changes <-chan session.Change) tea.Cmd {
	return func() tea.Msg {
		change, ok := <-changes
		if !ok {
			return nil
		}
		return SessionChangedMsg{Change: change}
	}
}
