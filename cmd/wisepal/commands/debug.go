package commands

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// NewDebugCommand creates the debug-config command
func NewDebugCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "debug-config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after the config file, environment
variables and flags have been applied, in config file format.`,
		Args: cobra.NoArgs,
		RunE: runDebugConfig,
	}
}

func runDebugConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# database: %s\n", app.cfg.DatabasePath())
	if err := toml.NewEncoder(out).Encode(app.cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
