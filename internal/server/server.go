// Package server exposes the assistant over HTTP: the chat surface plus
// the indexing control endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func(ctx context.Context) error

// Server owns the fiber app and its route wiring.
type Server struct {
	app    *fiber.App
	addr   string
	health map[string]HealthChecker
}

// New builds the HTTP server. health maps dependency names to their
// readiness probes.
func New(addr string, chatH *ChatHandler, jobsH *JobsHandler, health map[string]HealthChecker) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation turns are slow
		AppName:      "jobfinder-assistant",
	})

	s := &Server{app: app, addr: addr, health: health}

	api := app.Group("/api")
	api.Post("/chat", chatH.Chat)
	api.Post("/sessions/close", chatH.CloseSession)
	api.Post("/jobs/:id/reindex", jobsH.Reindex)
	api.Delete("/jobs/:id", jobsH.Delete)

	app.Get("/healthz", s.healthz)

	return s
}

// Listen blocks serving HTTP until Shutdown.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.health))
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}
	return respondJSON(c, status, fiber.Map{
		"status":       statusWord(status),
		"dependencies": deps,
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
