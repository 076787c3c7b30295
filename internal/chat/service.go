// Package chat runs the conversation side of the assistant: sessions,
// budgeted model context, and the answer turn itself.
package chat

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
	"github.com/jobfinder/assistant/internal/retriever"
)

// Retriever is the slice of the retrieval component the chat turn needs.
type Retriever interface {
	Retrieve(ctx context.Context, q *retriever.Query) (*retriever.Result, error)
}

// Request is one chat turn from a client.
type Request struct {
	SessionToken string
	Message      string
	CurrentJobID *int64
	UserID       *int64
	Filters      domain.Filters
}

// JobSuggestion is the per-job summary returned alongside the answer so
// the UI can render posting cards.
type JobSuggestion struct {
	JobID       int64   `json:"job_id"`
	Title       string  `json:"title"`
	CompanyName string  `json:"company_name,omitempty"`
	Locations   string  `json:"locations,omitempty"`
	SalaryText  string  `json:"salary_text,omitempty"`
	URL         string  `json:"url,omitempty"`
	Score       float64 `json:"score"`
}

// Response is the answer turn.
type Response struct {
	SessionToken string
	Answer       string
	Degraded     bool
	ContextJobs  []JobSuggestion
	History      []domain.ChatMessage
}

// Service orchestrates one chat turn end to end.
type Service struct {
	sessions  *SessionManager
	retriever Retriever
	builder   *ContextBuilder
	generator domain.Generator
	topK      int
}

// NewService creates the chat service.
func NewService(sessions *SessionManager, ret Retriever, builder *ContextBuilder, generator domain.Generator, topK int) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		sessions:  sessions,
		retriever: ret,
		builder:   builder,
		generator: generator,
		topK:      topK,
	}
}

// Chat handles one turn: resolve the session, retrieve context, generate
// the answer, and append both messages to the log. The two appends are
// individually atomic; a failure after the user message leaves a log that
// is still a valid prefix of the conversation.
func (s *Service) Chat(ctx context.Context, req *Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperr.Validation("message must not be empty")
	}

	session, err := s.sessions.StartOrResume(ctx, req.SessionToken, req.UserID)
	if err != nil {
		return nil, err
	}
	history, err := s.sessions.History(ctx, session)
	if err != nil {
		return nil, err
	}

	if isGreeting(message) {
		return s.finishTurn(ctx, session, history, message, greetingAnswer, req.CurrentJobID, nil, false)
	}

	result, err := s.retrieve(ctx, req, message, history)
	if err != nil {
		return nil, err
	}

	pc := s.builder.Build(history, message, result.Documents)
	prompt := buildPrompt(pc, message, result.Degraded)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		// The turn still completes; the user gets an apology instead of
		// an HTTP error.
		log.Printf("[chat] Generation failed for session %s: %v", session.ID, err)
		answer = fallbackAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = fallbackAnswer
	}

	return s.finishTurn(ctx, session, history, message, answer, req.CurrentJobID, result.Documents, result.Degraded)
}

// Close ends the session for token.
func (s *Service) Close(ctx context.Context, token string) error {
	if token == "" {
		return apperr.Validation("session_token is required")
	}
	return s.sessions.Close(ctx, token)
}

func (s *Service) retrieve(ctx context.Context, req *Request, message string, history []domain.ChatMessage) (*retriever.Result, error) {
	query := &retriever.Query{
		Text:         BuildRetrievalQuery(message, history),
		Filters:      req.Filters,
		CurrentJobID: req.CurrentJobID,
		TopK:         s.topK,
	}
	query.Filters.OnlyActive = true

	result, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		if errors.Is(err, apperr.ErrFatal) {
			return nil, err
		}
		log.Printf("[chat] Retrieval failed, answering without context: %v", err)
		return &retriever.Result{Degraded: true}, nil
	}
	return result, nil
}

func (s *Service) finishTurn(ctx context.Context, session *domain.ChatSession, history []domain.ChatMessage, message, answer string, currentJobID *int64, docs []domain.SearchResult, degraded bool) (*Response, error) {
	userMsg, err := s.sessions.AppendTurn(ctx, session, domain.RoleUser, message, currentJobID)
	if err != nil {
		return nil, err
	}
	assistantMsg, err := s.sessions.AppendTurn(ctx, session, domain.RoleAssistant, answer, nil)
	if err != nil {
		return nil, err
	}

	full := append(history, *userMsg, *assistantMsg)
	return &Response{
		SessionToken: session.Token,
		Answer:       answer,
		Degraded:     degraded,
		ContextJobs:  suggestJobs(docs),
		History:      full,
	}, nil
}

// suggestJobs collapses the retrieved chunks to one card per job, keeping
// each job's best score and preserving score order.
func suggestJobs(docs []domain.SearchResult) []JobSuggestion {
	seen := make(map[int64]bool, len(docs))
	out := make([]JobSuggestion, 0, len(docs))
	for _, res := range docs {
		jobID := res.Document.Key.JobID
		if seen[jobID] {
			continue
		}
		seen[jobID] = true
		meta := res.Document.Metadata
		out = append(out, JobSuggestion{
			JobID:       jobID,
			Title:       meta.Title,
			CompanyName: meta.CompanyName,
			Locations:   strings.Join(meta.Locations, " | "),
			SalaryText:  meta.SalaryText,
			URL:         meta.URL,
			Score:       res.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
