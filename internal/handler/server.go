package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"docrag/config"
	"docrag/internal/logger"
)

// NewApp builds the fiber application with middleware and routes.
func NewApp(cfg config.ServerConfig, h *Handler, log *slog.Logger) *fiber.App {
	log = logger.OrDefault(log)

	app := fiber.New(fiber.Config{
		AppName:      "docrag",
		BodyLimit:    max(cfg.BodyLimitMB, 1) * 1024 * 1024,
		ReadTimeout:  config.Seconds(cfg.ReadTimeoutSecs, 30*time.Second),
		WriteTimeout: config.Seconds(cfg.WriteTimeoutSecs, 300*time.Second),
		ErrorHandler: ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(RequestLogger(log))

	h.Register(app)
	return app
}

// RequestLogger logs every request once it completes.
func RequestLogger(log *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// fiber reuses the context, capture before the handler runs
		method := c.Method()
		path := c.Path()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = StatusFor(err)
		}
		log.Info("http request",
			"method", method,
			"path", path,
			"status", status,
			"duration", time.Since(start).Round(time.Millisecond))
		return err
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, app *fiber.App, addr string) error {
	return app.Listen(addr, fiber.ListenConfig{
		DisableStartupMessage: true,
		GracefulContext:       ctx,
	})
}
