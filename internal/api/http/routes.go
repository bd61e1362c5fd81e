package httpapi

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/i474232898/ecovision/internal/filter"
	"github.com/i474232898/ecovision/internal/gateway"
	"github.com/i474232898/ecovision/internal/orchestrator"
)

var validate = validator.New()

// Orchestrator is what the HTTP view needs from the orchestrator.
type Orchestrator interface {
	View() orchestrator.View
	Dispatch(ctx context.Context, cmd orchestrator.Command) error
}

// NewApp creates the Fiber app serving the dashboard view.
func NewApp(orch Orchestrator, log zerolog.Logger) *fiber.App {
	log = log.With().Str("component", "http").Logger()

	app := fiber.New(fiber.Config{
		AppName:               "ecovision",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// The logger wraps recover so requests that panic are logged too.
	app.Use(requestLogger(log))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "ecovision",
		})
	})

	RegisterRoutes(app, orch)
	return app
}

// RegisterRoutes wires the view handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, orch Orchestrator) {
	v1 := app.Group("/api/v1")

	v1.Get("/view", func(c *fiber.Ctx) error {
		return c.JSON(orch.View())
	})

	v1.Patch("/filters", func(c *fiber.Ctx) error {
		var patch filter.Patch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid filter body: "+err.Error())
		}
		if err := validate.Struct(patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := orch.Dispatch(c.UserContext(), orchestrator.ChangeFilters{Patch: patch}); err != nil {
			if errors.Is(err, orchestrator.ErrInvalidFilters) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return err
		}
		return c.JSON(orch.View())
	})

	v1.Post("/apply", func(c *fiber.Ctx) error {
		if err := orch.Dispatch(c.UserContext(), orchestrator.ApplyFilters{}); err != nil {
			var re *gateway.RequestError
			if errors.As(err, &re) {
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to apply filters")
		}
		return c.JSON(orch.View())
	})

	v1.Get("/chart", func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		if err := renderSeriesChart(&buf, orch.View()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render chart")
		}
		c.Type("html")
		return c.Send(buf.Bytes())
	})
}

func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			status = fe.Code
		case err != nil:
			status = fiber.StatusInternalServerError
		}
		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		return err
	}
}
