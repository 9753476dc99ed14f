package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "API:       %s\n", app.cfg.APIURL)
	fmt.Fprintf(out, "State dir: %s\n", app.cfg.StateDir)

	token, ok := app.session.Token()
	if !ok {
		fmt.Fprintln(out, "Session:   not signed in")
		return nil
	}
	fmt.Fprintf(out, "Session:   signed in (token %s)\n", maskToken(token))
	return nil
}

// maskToken keeps the first and last four characters of long tokens
func maskToken(token string) string {
	r := []rune(token)
	if len(r) <= 12 {
		return "****"
	}
	return string(r[:4]) + "…" + string(r[len(r)-4:])
}
