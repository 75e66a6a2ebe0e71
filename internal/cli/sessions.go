package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raglab/docchat/internal/history"
)

var sessionsHistoryLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List sessions or show a session's history",
	Long: `Without arguments, lists all conversation sessions, newest first.
With a session id, prints that session's recent turns in order.

Examples:
  docchat sessions
  docchat sessions research --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsHistoryLimit, "limit", history.DefaultHistoryLimit, "maximum turns to show")
}

func runSessions(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		ids, err := pipeline.Chat.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	msgs, err := pipeline.Chat.History(cmd.Context(), args[0], sessionsHistoryLimit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Printf("No history for session %q.\n", args[0])
		return nil
	}
	for _, msg := range msgs {
		role := defaultTheme.statusStyle().Render(string(msg.Role))
		fmt.Printf("%s  %s\n%s\n\n", role, msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Text)
	}
	return nil
}
