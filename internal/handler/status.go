package handler

import (
	"github.com/gofiber/fiber/v3"
)

// Collection reports the lifecycle state and size of the collection.
func (h *Handler) Collection(c fiber.Ctx) error {
	ctx := c.Context()

	state, err := h.collection.State(ctx)
	if err != nil {
		return err
	}
	count, err := h.collection.Count(ctx)
	if err != nil {
		return err
	}

	schema := h.collection.Schema()
	return c.JSON(fiber.Map{
		"name":         schema.Name,
		"state":        state.String(),
		"rows":         count,
		"dimension":    schema.Dimension,
		"vector_field": schema.VectorField,
		"metric":       h.collection.IndexParams().Metric,
	})
}

// Health reports embedding service readiness. The server itself is up if it
// can answer, so a failing embedder yields 503 with the reason.
func (h *Handler) Health(c fiber.Ctx) error {
	if h.embedder == nil {
		return c.JSON(fiber.Map{"status": "ok"})
	}

	health, err := h.embedder.Health(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "embedder": health})
}
