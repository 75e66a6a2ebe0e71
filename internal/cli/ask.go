package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raglab/docchat/internal/models"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question against the session's documents",
	Long: `Ask answers one question from the documents ingested into the
session. The answer is generated strictly from retrieved passages and
prints the citations that back it. When nothing relevant is indexed
the answer is marked as ungrounded.

Examples:
  docchat ask "What were Q3 revenues?"
  docchat ask -s research "Which studies mention dropout rates?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	answer, err := pipeline.Chat.HandleQuery(cmd.Context(), sessionID, args[0])
	if err != nil {
		return err
	}
	printAnswer(answer)
	return nil
}

func printAnswer(answer models.AnswerEnvelope) {
	fmt.Println(answer.Answer)

	if !answer.Grounded {
		fmt.Println()
		fmt.Println(defaultTheme.hintStyle().Render("(not grounded in indexed documents)"))
		return
	}

	if len(answer.Citations) > 0 {
		fmt.Println()
		fmt.Println(defaultTheme.statusStyle().Render("Sources:"))
		for i, c := range answer.Citations {
			snippet := strings.TrimSpace(c.Snippet)
			fmt.Printf("  [%d] %s (score %.2f)\n", i+1, c.ChunkID, c.Score)
			if snippet != "" {
				fmt.Printf("      %s\n", defaultTheme.hintStyle().Render(snippet))
			}
		}
	}
}
