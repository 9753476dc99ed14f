package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/auth"
	"github.com/Shanky048/WisePal/pkg/models"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print your conversation history from the server",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctrl, err := newChatController()
	if err != nil {
		return err
	}

	if err := ctrl.LoadHistory(cmd.Context()); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return errors.New(auth.MsgSessionExpired)
		}
		return errors.New(ctrl.Err())
	}

	messages := ctrl.Messages()
	if len(messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages yet")
		return nil
	}
	printMessages(cmd.OutOrStdout(), messages)
	return nil
}

func printMessages(w io.Writer, messages []models.Message) {
	for i, msg := range messages {
		fmt.Fprintf(w, "%s: %s\n", speaker(msg.Role), msg.Content)
		if i < len(messages)-1 {
			fmt.Fprintln(w)
		}
	}
}

func speaker(role models.Role) string {
	if role == models.RoleUser {
		return "You"
	}
	return "WisePal"
}
