package api

import (
	"time"

	"taskmanager/configs"
	"taskmanager/internal/api/handlers"
	"taskmanager/internal/config"
	"taskmanager/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// NewApp builds the Fiber application with middleware and routes.
func NewApp(cfg configs.Config, deps *config.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "taskmanager",
		ErrorHandler:          middleware.JSONErrors(deps.Log),
		DisableStartupMessage: true,
	})

	app.Use(middleware.ErrorHandler(deps.Log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.TokenHeader,
	}))
	if cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: 1 * time.Minute,
		}))
	}

	RegisterRoutes(app, deps)
	return app
}

func RegisterRoutes(app *fiber.App, deps *config.Dependencies) {
	h := handlers.New(deps)
	requireAuth := middleware.RequireAuth(deps)

	app.Get("/", h.Root)
	app.Get("/health", h.Health)

	// Auth
	auth := app.Group("/auth")
	auth.Post("/signup", h.Signup)
	auth.Post("/login", h.Login)
	auth.Post("/token_is_valid", h.TokenIsValid)
	auth.Get("/", requireAuth, h.Profile)

	// Task
	task := app.Group("/task", requireAuth)
	task.Post("/", h.CreateTask)
	task.Get("/", h.ListTasks)
	task.Get("/ws", h.UpgradeTaskEvents, h.TaskEvents())
	task.Patch("/:taskId", h.UpdateTask)
	task.Delete("/:taskId", h.DeleteTask)
}
