package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	var clearTranscript bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.session.ClearToken(cmd.Context()); err != nil {
				return err
			}
			if clearTranscript {
				if err := app.transcript.Clear(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearTranscript, "clear-transcript", false, "also delete the local transcript")

	return cmd
}
