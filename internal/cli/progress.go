package cli

import (
	"context"
	"fmt"
	"sync"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raglab/docchat/internal/agent"
	"github.com/raglab/docchat/internal/models"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// fileDoneMsg carries one finished document.
type fileDoneMsg struct {
	index  int
	report models.IngestionReport
}

// ingestModel is the bubbletea model for batch ingestion progress.
type ingestModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	ing     *agent.Ingestion
	uploads []agent.UploadInput
	results chan fileDoneMsg

	reports  []models.IngestionReport
	done     int
	failed   int
	progress progress.Model
	theme    Theme
	aborted  bool
}

func newIngestModel(ctx context.Context, ing *agent.Ingestion, uploads []agent.UploadInput) ingestModel {
	ctx, cancel := context.WithCancel(ctx)
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return ingestModel{
		ctx:      ctx,
		cancel:   cancel,
		ing:      ing,
		uploads:  uploads,
		results:  make(chan fileDoneMsg, len(uploads)),
		reports:  make([]models.IngestionReport, len(uploads)),
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init starts the ingestion workers and listens for completions.
func (m ingestModel) Init() tea.Cmd {
	return tea.Batch(
		m.startWorkers(),
		m.waitForFile(),
		m.progress.Init(),
	)
}

// startWorkers fans the uploads out over a bounded pool. Each
// completion is delivered to Update as a fileDoneMsg.
func (m ingestModel) startWorkers() tea.Cmd {
	return func() tea.Msg {
		sem := make(chan struct{}, agent.DefaultIngestWorkers)
		var wg sync.WaitGroup
		for i, upload := range m.uploads {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, upload agent.UploadInput) {
				defer wg.Done()
				defer func() { <-sem }()
				m.results <- fileDoneMsg{index: i, report: m.ing.Ingest(m.ctx, upload)}
			}(i, upload)
		}
		wg.Wait()
		return nil
	}
}

func (m ingestModel) waitForFile() tea.Cmd {
	return func() tea.Msg {
		return <-m.results
	}
}

// Update handles messages and returns the updated model.
func (m ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			m.cancel()
			return m, tea.Quit
		}

	case fileDoneMsg:
		m.reports[msg.index] = msg.report
		m.done++
		if msg.report.Failed {
			m.failed++
		}
		if m.done == len(m.uploads) {
			return m, tea.Quit
		}
		return m, m.waitForFile()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m ingestModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m ingestModel) renderContent() string {
	if m.done == len(m.uploads) || m.aborted {
		return m.finalView()
	}

	pct := float64(m.done) / float64(len(m.uploads))
	status := m.theme.statusStyle().Render("[ingesting]")
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d files", m.done, len(m.uploads))
	hint := m.theme.hintStyle().Render("Press Ctrl+C to abort")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

func (m ingestModel) finalView() string {
	if m.aborted {
		return m.theme.hintStyle().Render("\nIngestion aborted.\n")
	}
	if m.failed > 0 {
		return m.theme.errorStyle().Render(
			fmt.Sprintf("\n✗ %d of %d documents failed\n", m.failed, len(m.uploads)))
	}
	return m.theme.completedStyle().Render(
		fmt.Sprintf("\n✓ Ingested %d documents\n", len(m.uploads)))
}

// RunIngestProgress runs the interactive progress UI over a batch
// ingestion and returns the per-document reports in input order.
func RunIngestProgress(ctx context.Context, ing *agent.Ingestion, uploads []agent.UploadInput) ([]models.IngestionReport, error) {
	model := newIngestModel(ctx, ing, uploads)
	defer model.cancel()

	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(ingestModel)
	if !ok {
		return nil, fmt.Errorf("unexpected progress model type")
	}
	if m.aborted {
		return nil, fmt.Errorf("ingestion aborted")
	}
	return m.reports, nil
}
