// Package api exposes the resolution pipeline over HTTP. Requests only
// enqueue work; records flow to the configured sinks asynchronously.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/filter"
	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
	"github.com/kumma49/kuaishou-topn-downloader/internal/resolver"
)

type ResolveRequest struct {
	Keyword string   `json:"keyword"`
	URLs    []string `json:"urls"`
}

type ResolveResponse struct {
	JobID    string `json:"job_id"`
	Keyword  string `json:"keyword,omitempty"`
	Queued   int    `json:"queued"`
	Rejected int    `json:"rejected,omitempty"`
}

type Handler struct {
	pool *resolver.Pool
	log  zerolog.Logger
}

func NewHandler(pool *resolver.Pool, log zerolog.Logger) *Handler {
	return &Handler{pool: pool, log: log}
}

func (h *Handler) SetupRoutes(app *fiber.App) {
	app.Post("/api/resolve", h.handleResolve)
	app.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) handleResolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Keyword == "" && len(req.URLs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "keyword or urls is required"})
	}

	resp := ResolveResponse{
		JobID:   uuid.NewString(),
		Keyword: req.Keyword,
	}

	if req.Keyword != "" {
		h.pool.Submit(model.WorkItem{Search: &model.SearchRequest{Keyword: req.Keyword}})
		resp.Queued++
	}

	for _, u := range filter.Dedupe(req.URLs) {
		if !filter.IsDetailURL(u) {
			resp.Rejected++
			continue
		}
		h.pool.Submit(model.WorkItem{Detail: &model.DetailRequest{URL: u}})
		resp.Queued++
	}

	h.log.Info().
		Str("job_id", resp.JobID).
		Str("keyword", req.Keyword).
		Int("queued", resp.Queued).
		Int("rejected", resp.Rejected).
		Msg("resolve request accepted")

	return c.Status(202).JSON(resp)
}
