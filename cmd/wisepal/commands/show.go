package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Shanky048/WisePal/pkg/models"
)

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the local transcript without the TUI",
		Long: `Show messages recorded locally during chat sessions.
Long transcripts are shortened to the first and last --limit entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "entries to show from each end of the transcript")

	return cmd
}

func runShow(cmd *cobra.Command, limit int) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}

	entries, omitted, err := app.transcript.Recent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to fetch transcript: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No messages recorded yet")
		return nil
	}

	fmt.Fprintln(out, "Transcript:")
	fmt.Fprintln(out, "===========")
	printTranscript(out, entries, limit, omitted)
	return nil
}

// printTranscript prints entries, marking where omitted entries were skipped
// after the first window
func printTranscript(w io.Writer, entries []models.TranscriptEntry, window, omitted int) {
	for i, entry := range entries {
		if omitted > 0 && i == window {
			fmt.Fprintf(w, "\n... %d more messages ...\n", omitted)
		}
		fmt.Fprintf(w, "\n%s  %s\n", entry.CreatedAt.Format("2006-01-02 15:04"), speaker(entry.Role))
		fmt.Fprintf(w, "   %s\n", truncateString(entry.Content, 200))
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
