package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raglab/docchat/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Chat opens an interactive prompt against the session's documents.
Every turn is appended to the session's history, so follow-up
questions can refer to earlier answers. Exit with "exit", "quit",
or Ctrl+D.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	fmt.Printf("Session %q. Type a question, or \"exit\" to leave.\n", sessionID)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		query := strings.TrimSpace(line)
		switch query {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := pipeline.Chat.HandleQuery(cmd.Context(), sessionID, query)
		if err != nil {
			// Generation failures end the turn, not the conversation.
			if errors.Is(err, agent.ErrGenerationFailed) {
				fmt.Println(defaultTheme.errorStyle().Render("generation failed, try again"))
				continue
			}
			return err
		}

		fmt.Println()
		printAnswer(answer)
		fmt.Println()
	}
}
