package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raglab/docchat/internal/agent"
	"github.com/raglab/docchat/internal/models"
)

var ingestPlain bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Upload documents into a session",
	Long: `Ingest one or more documents into the session's index.

Each file is parsed, split into overlapping chunks, embedded, and
stored in the session's namespace. A failing file never aborts its
siblings; failures are reported per file.

Supported formats: pdf, docx, pptx, csv, xlsx, txt, md.

Examples:
  docchat ingest report.pdf
  docchat ingest -s research notes.md data.csv slides.pptx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestPlain, "plain", false, "disable the interactive progress display")
}

func runIngest(cmd *cobra.Command, args []string) error {
	uploads := make([]agent.UploadInput, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		uploads = append(uploads, agent.UploadInput{
			Filename:  filepath.Base(path),
			Data:      data,
			SessionID: sessionID,
		})
	}

	var reports []models.IngestionReport
	if ingestPlain {
		reports = pipeline.Ingestion.IngestBatch(cmd.Context(), uploads)
	} else {
		var err error
		reports, err = RunIngestProgress(cmd.Context(), pipeline.Ingestion, uploads)
		if err != nil {
			return err
		}
	}

	failed := 0
	for _, report := range reports {
		fmt.Println(report)
		if report.Failed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(reports))
	}
	return nil
}
