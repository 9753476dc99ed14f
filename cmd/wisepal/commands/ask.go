package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/auth"
	"github.com/Shanky048/WisePal/internal/chat"
)

var errNotSignedIn = errors.New("not signed in, run `wisepal login` first")

// NewAskCommand creates the ask command
func NewAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctrl, err := newChatController()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := ctrl.LoadHistory(ctx); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return errors.New(auth.MsgSessionExpired)
		}
		// History is only context here; the message can still be sent
		app.logger.Debug("history unavailable before ask")
	}

	reply, err := ctrl.Send(ctx, strings.Join(args, " "))
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return err
	case errors.Is(err, api.ErrUnauthorized):
		return errors.New(auth.MsgSessionExpired)
	case err != nil:
		return errors.New(ctrl.Err())
	}

	fmt.Fprintln(cmd.OutOrStdout(), displayReply(reply))
	return nil
}

// newChatController returns a controller over the stored session
func newChatController() (*chat.Controller, error) {
	if _, ok := app.session.Token(); !ok {
		return nil, errNotSignedIn
	}
	router := auth.NewRouter(auth.ViewChat, nil)
	return chat.NewController(app.client, app.session, app.session, router,
		chat.WithRecorder(app.transcript),
		chat.WithLogger(app.logger),
	), nil
}

// displayReply renders Markdown only when stdout is a terminal so piped
// output stays plain
func displayReply(reply string) string {
	if !app.cfg.UI.RenderMarkdown || !term.IsTerminal(int(os.Stdout.Fd())) {
		return reply
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return reply
	}
	rendered, err := renderer.Render(reply)
	if err != nil {
		return reply
	}
	return strings.TrimRight(rendered, "\n")
}
