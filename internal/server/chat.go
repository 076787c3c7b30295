package server

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jobfinder/assistant/internal/chat"
	"github.com/jobfinder/assistant/internal/domain"
)

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type chatRequest struct {
	SessionToken string `json:"session_token"`
	Message      string `json:"message"`
	CurrentJobID *int64 `json:"current_job_id"`
	UserID       *int64 `json:"user_id"`
	Filters      struct {
		Locations    []string `json:"locations"`
		MinSalaryVND *int64   `json:"min_salary_vnd"`
		MaxSalaryVND *int64   `json:"max_salary_vnd"`
		Skills       []string `json:"skills"`
	} `json:"filters"`
}

type chatMessageDTO struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	RelatedJobID *int64    `json:"related_job_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type chatResponse struct {
	SessionToken string               `json:"session_token"`
	Answer       string               `json:"answer"`
	Degraded     bool                 `json:"degraded,omitempty"`
	ContextJobs  []chat.JobSuggestion `json:"context_jobs"`
	History      []chatMessageDTO     `json:"history"`
}

// Chat handles one turn of the conversation.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid JSON body")
	}

	resp, err := h.svc.Chat(c.Context(), &chat.Request{
		SessionToken: req.SessionToken,
		Message:      req.Message,
		CurrentJobID: req.CurrentJobID,
		UserID:       req.UserID,
		Filters: domain.Filters{
			Locations:    req.Filters.Locations,
			MinSalaryVND: req.Filters.MinSalaryVND,
			MaxSalaryVND: req.Filters.MaxSalaryVND,
			Skills:       req.Filters.Skills,
		},
	})
	if err != nil {
		return respondAppError(c, err)
	}

	history := make([]chatMessageDTO, 0, len(resp.History))
	for _, msg := range resp.History {
		history = append(history, chatMessageDTO{
			Role:         msg.Role,
			Content:      msg.Content,
			RelatedJobID: msg.RelatedJobID,
			CreatedAt:    msg.CreatedAt,
		})
	}

	return respondJSON(c, http.StatusOK, chatResponse{
		SessionToken: resp.SessionToken,
		Answer:       resp.Answer,
		Degraded:     resp.Degraded,
		ContextJobs:  resp.ContextJobs,
		History:      history,
	})
}

type closeSessionRequest struct {
	SessionToken string `json:"session_token"`
}

// CloseSession ends a conversation; subsequent turns with the same token
// start a fresh session.
func (h *ChatHandler) CloseSession(c *fiber.Ctx) error {
	var req closeSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid JSON body")
	}
	if err := h.svc.Close(c.Context(), req.SessionToken); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}
