package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raglab/docchat/internal/agent"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document's vectors from the session",
	Long: `Delete removes all indexed chunks of one document from the
session's namespace. Conversation history is untouched. The document
id is printed by ingest and by the upload API.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	removed, err := pipeline.Retrieval.DeleteDocument(cmd.Context(), agent.SessionNamespace(sessionID), args[0])
	if err != nil {
		return err
	}
	if removed == 0 {
		fmt.Printf("No chunks found for document %s.\n", args[0])
		return nil
	}
	fmt.Printf("Removed %d chunks of document %s.\n", removed, args[0])
	return nil
}
