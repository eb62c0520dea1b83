package handlers

import (
	"context"
	"net/http"
	"time"

	"pricing-service/internal/event"
	"pricing-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type publisherHealth interface {
	HealthCheck() event.PublisherHealthStatus
}

type HealthHandler struct {
	db        pinger
	cache     pinger
	publisher publisherHealth
}

// NewHealthHandler reports on the store and on whichever optional
// dependencies are attached with WithCache and WithPublisher.
func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (hh *HealthHandler) WithCache(cache pinger) *HealthHandler {
	hh.cache = cache
	return hh
}

func (hh *HealthHandler) WithPublisher(publisher publisherHealth) *HealthHandler {
	hh.publisher = publisher
	return hh
}

func (hh *HealthHandler) Register(router fiber.Router) {
	router.Get("/checkhealth", hh.CheckHealth)
}

func (hh *HealthHandler) CheckHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := fiber.Map{"service": "pricing-service", "database": "ok"}
	healthy := true

	if err := hh.db.PingContext(ctx); err != nil {
		status["database"] = err.Error()
		healthy = false
	}
	if hh.cache != nil {
		status["cache"] = "ok"
		if err := hh.cache.PingContext(ctx); err != nil {
			status["cache"] = err.Error()
			healthy = false
		}
	}
	if hh.publisher != nil {
		ph := hh.publisher.HealthCheck()
		status["events"] = ph
		healthy = healthy && ph.IsHealthy
	}

	if !healthy {
		return c.Status(http.StatusServiceUnavailable).JSON(
			utils.CreateDetailedErrorResponse("UNHEALTHY", "Pricing service is degraded", status))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(status))
}
