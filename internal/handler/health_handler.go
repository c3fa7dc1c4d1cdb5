package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/talentscope-api/internal/config"
	"github.com/noah-isme/talentscope-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthDependency checks one backing dependency of the API.
type HealthDependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports service health. Any failing dependency turns the response into a 503.
func HealthCheck(cfg config.Config, dependencies ...HealthDependency) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if len(dependencies) == 0 {
			return utils.SendSuccess(c, "service healthy", payload)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
		defer cancel()

		payload.Checks = make(map[string]string, len(dependencies))
		for _, dependency := range dependencies {
			if err := dependency.Check(ctx); err != nil {
				payload.Checks[dependency.Name] = "down"
				payload.Status = "degraded"
				continue
			}
			payload.Checks[dependency.Name] = "up"
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
