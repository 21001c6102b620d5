package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/certmgmt/backend/internal/middleware"
	"github.com/certmgmt/backend/internal/response"
)

type HealthData struct {
	Status    string    `json:"status"`
	Storage   string    `json:"storage"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	version string
	storage Pinger
}

// NewHealthHandler accepts a nil storage for the in-memory driver.
func NewHealthHandler(version string, storage Pinger) *HealthHandler {
	return &HealthHandler{
		version: version,
		storage: storage,
	}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	data := HealthData{
		Status:    "healthy",
		Storage:   "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.storage.PingContext(ctx); err != nil {
			data.Status = "degraded"
			data.Storage = "unavailable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(response.Envelope{
				Success: false,
				Data:    data,
				Meta:    response.Meta{TraceID: middleware.GetTraceID(c)},
			})
		}
	}

	return response.OK(c, data)
}
