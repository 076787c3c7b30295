package chat

import (
	"strings"

	"github.com/jobfinder/assistant/internal/domain"
)

const (
	// How much recent history feeds the retrieval query, and its size cap.
	retrievalHistoryTurns  = 4
	retrievalQueryMaxChars = 800
	contextChunkMinChars   = 80
	truncationMarker       = "…"
)

// PromptContext is the budgeted material handed to the prompt builder:
// the retrieved chunks (possibly shortened) and the suffix of the history
// that fits alongside them.
type PromptContext struct {
	Chunks  []string
	History []domain.ChatMessage
}

// ContextBuilder assembles the model context under a fixed character
// budget.
type ContextBuilder struct {
	charBudget   int
	historyTurns int
}

// NewContextBuilder creates a ContextBuilder. historyTurns caps how many
// past messages are considered before the budget applies.
func NewContextBuilder(charBudget, historyTurns int) *ContextBuilder {
	if charBudget <= 0 {
		charBudget = 12000
	}
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &ContextBuilder{charBudget: charBudget, historyTurns: historyTurns}
}

// Build selects what fits: the newest user message is paid for first, then
// the retrieved chunks, then as much history as remains, newest first.
// When the message plus chunks alone exceed the budget the chunks are
// shortened pro-rata rather than dropped, so every retrieved job stays
// represented.
func (b *ContextBuilder) Build(history []domain.ChatMessage, message string, docs []domain.SearchResult) *PromptContext {
	remaining := b.charBudget - len(message)
	if remaining < 0 {
		remaining = 0
	}

	chunks := make([]string, 0, len(docs))
	total := 0
	for _, res := range docs {
		chunks = append(chunks, res.Document.Content)
		total += len(res.Document.Content)
	}
	if total > remaining {
		chunks = shrinkChunks(chunks, remaining)
		total = 0
		for _, c := range chunks {
			total += len(c)
		}
	}
	remaining -= total

	return &PromptContext{
		Chunks:  chunks,
		History: b.selectHistory(history, remaining),
	}
}

// selectHistory keeps the newest suffix of the last historyTurns messages
// that fits in the remaining budget, returned in chronological order.
func (b *ContextBuilder) selectHistory(history []domain.ChatMessage, remaining int) []domain.ChatMessage {
	if len(history) > b.historyTurns {
		history = history[len(history)-b.historyTurns:]
	}

	cut := len(history)
	for cut > 0 {
		size := len(history[cut-1].Content)
		if size > remaining {
			break
		}
		remaining -= size
		cut--
	}
	return history[cut:]
}

// shrinkChunks shortens every chunk pro-rata so their total fits budget.
// Short chunks that already fit their share keep their full text; the
// slack is redistributed to the longer ones.
func shrinkChunks(chunks []string, budget int) []string {
	if len(chunks) == 0 {
		return chunks
	}

	out := make([]string, len(chunks))
	over := make([]int, 0, len(chunks))
	share := budget / len(chunks)

	for i, c := range chunks {
		if len(c) <= share {
			out[i] = c
			budget -= len(c)
		} else {
			over = append(over, i)
		}
	}

	for n := len(over); n > 0; n = len(over) {
		share = budget / n
		// A chunk is shortened, never dropped, so it keeps a readable
		// minimum even when the budget says otherwise.
		if share < contextChunkMinChars {
			share = contextChunkMinChars
		}
		progressed := false
		rest := over[:0]
		for _, i := range over {
			if len(chunks[i]) <= share {
				out[i] = chunks[i]
				budget -= len(chunks[i])
				progressed = true
				continue
			}
			rest = append(rest, i)
		}
		over = rest
		if !progressed {
			for _, i := range over {
				out[i] = truncateChunk(chunks[i], share)
			}
			break
		}
	}
	return out
}

// truncateChunk cuts at a rune boundary, preferring the last line break in
// the allowed window so the cut lands between metadata lines.
func truncateChunk(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	cut := maxChars - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	if nl := strings.LastIndexByte(s[:cut], '\n'); nl > cut/2 {
		cut = nl
	}
	return strings.TrimRight(s[:cut], " \n") + truncationMarker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// BuildRetrievalQuery combines the new message with the tail of the
// conversation so follow-ups like "còn ở Đà Nẵng thì sao?" carry their
// subject. The result is capped so one long paste does not dominate the
// embedding.
func BuildRetrievalQuery(message string, history []domain.ChatMessage) string {
	parts := make([]string, 0, retrievalHistoryTurns+1)
	start := len(history) - retrievalHistoryTurns
	if start < 0 {
		start = 0
	}
	for _, msg := range history[start:] {
		if msg.Role == domain.RoleUser {
			parts = append(parts, msg.Content)
		}
	}
	parts = append(parts, message)

	query := strings.Join(parts, " ")
	if len(query) > retrievalQueryMaxChars {
		cut := len(query) - retrievalQueryMaxChars
		for cut < len(query) && !isRuneStart(query[cut]) {
			cut++
		}
		query = query[cut:]
	}
	return query
}
