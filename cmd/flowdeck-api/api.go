// Package main provides the Flowdeck API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/arjanchaudharyy/flowdeck/pkg/cmd"
	"github.com/arjanchaudharyy/flowdeck/pkg/web"
)

type API struct {
	logger   *slog.Logger
	stack    *cmd.Stack
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, stack *cmd.Stack) *API {
	return &API{
		logger:   logger,
		stack:    stack,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.stack.Engine,
		a.stack.Registry,
		a.stack.Recorder,
		a.stack.Persistence,
		a.stack.Approvals,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowdeck API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
