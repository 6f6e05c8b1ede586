package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codeclash/codeclash-api/internal/config"
	"github.com/codeclash/codeclash-api/internal/handler"
	"github.com/codeclash/codeclash-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProblemHandler    *handler.ProblemHandler
	SubmissionHandler *handler.SubmissionHandler
	ContestHandler    *handler.ContestHandler
	AssessmentHandler *handler.AssessmentHandler
	StreakHandler     *handler.StreakHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ProblemHandler != nil {
		problems := api.Group("/problems", jwtMiddleware)
		deps.ProblemHandler.Register(problems)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submission", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.ContestHandler != nil {
		contests := api.Group("/contest", jwtMiddleware)
		deps.ContestHandler.Register(contests)
	}

	if deps.AssessmentHandler != nil {
		assessments := api.Group("/assessment", jwtMiddleware)
		deps.AssessmentHandler.Register(assessments)
	}

	if deps.StreakHandler != nil {
		streak := api.Group("/streak", jwtMiddleware)
		deps.StreakHandler.Register(streak)
	}
}
