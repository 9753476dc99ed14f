package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shanky048/WisePal/internal/auth"
)

// NewRegisterCommand creates the register command
func NewRegisterCommand() *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a WisePal account",
		Long: `Create an account with an email and password. Registration does not
sign you in; run "wisepal login" afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, email, passwordStdin)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(cmd *cobra.Command, email string, passwordStdin bool) error {
	password, err := readPassword(cmd, passwordStdin)
	if err != nil {
		return err
	}

	created, err := auth.Register(cmd.Context(), app.client, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\nRun \"wisepal login --email %s\" to sign in.\n", created, created)
	return nil
}
