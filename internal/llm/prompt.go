package llm

import (
	"fmt"
	"strings"

	"github.com/raglab/docchat/internal/models"
)

// DefaultPromptBudget bounds the combined prompt length in characters.
// Oldest history turns are truncated first when a prompt exceeds it.
const DefaultPromptBudget = 12000

// SystemPrompt constrains the model to the supplied context and tells
// it how to mark citations.
const SystemPrompt = `You are a document assistant. Answer the user's question using ONLY the context passages below.
Each passage is labeled with a tag like [C1]. When a statement in your answer comes from a passage, append its tag, e.g. "The revenue grew 12% [C2]."
If the context does not contain enough information to answer, reply exactly: not found in documents.
Do not use outside knowledge. Be concise.
End your answer with a final line "Chunks used:" listing the tags of every passage you used.`

// NotFoundAnswer is the fixed reply for questions the context cannot
// answer. Callers compare against it to mark ungrounded answers.
const NotFoundAnswer = "not found in documents"

// PromptInput carries everything a grounded prompt is built from.
type PromptInput struct {
	Query   string
	History []models.Message
	Chunks  []models.ScoredChunk

	// Budget caps the user prompt length in characters; zero means
	// DefaultPromptBudget.
	Budget int
}

// BuildPrompt assembles the user prompt: tagged context passages, a
// bounded window of recent conversation turns, then the question.
// Context and query always fit; history yields first, oldest turns
// dropped before newer ones.
func BuildPrompt(in PromptInput) string {
	budget := in.Budget
	if budget <= 0 {
		budget = DefaultPromptBudget
	}

	var ctxBlock strings.Builder
	if len(in.Chunks) == 0 {
		ctxBlock.WriteString("(no context passages)\n")
	}
	for i, chunk := range in.Chunks {
		fmt.Fprintf(&ctxBlock, "%s (document %s, chunk %s)\n%s\n\n",
			ChunkTag(i), chunk.Chunk.DocumentID, chunk.Chunk.ID, chunk.Chunk.Text)
	}

	question := fmt.Sprintf("Question: %s\n\nAnswer:", in.Query)

	fixed := len("Context passages:\n\n") + ctxBlock.Len() + len(question)
	historyBudget := budget - fixed

	historyBlock := renderHistory(in.History, historyBudget)

	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	b.WriteString(ctxBlock.String())
	if historyBlock != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(historyBlock)
		b.WriteString("\n")
	}
	b.WriteString(question)
	return b.String()
}

// renderHistory renders as many of the newest turns as fit the
// budget, in chronological order.
func renderHistory(history []models.Message, budget int) string {
	if len(history) == 0 || budget <= 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s\n", history[i].Role, history[i].Text)
		if used+len(line) > budget {
			break
		}
		lines = append(lines, line)
		used += len(line)
	}

	// Collected newest-first, emit oldest-first.
	var b strings.Builder
	for i := len(lines) - 1; i >= 0; i-- {
		b.WriteString(lines[i])
	}
	return b.String()
}

// ChunkTag returns the context tag of the i-th passage (zero-based),
// matching the labels BuildPrompt emits.
func ChunkTag(i int) string {
	return fmt.Sprintf("[C%d]", i+1)
}
