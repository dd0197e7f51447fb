package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"taskory/config"
	"taskory/middleware"
	"taskory/routes"
	"taskory/utils"
	"taskory/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "TASKORY: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app; body limit leaves headroom over the upload cap
	app := fiber.New(fiber.Config{
		BodyLimit: (config.AppConfig.MaxUploadMB + 1) << 20,
	})

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Notification fan-out shared by handlers and the websocket feed
	hub := utils.NewNotificationHub()
	notifier := utils.NewNotifier(hub)

	// Initialize and start the session/notification sweeper
	sweeper := worker.NewSweeper(config.DB, log.New(os.Stdout, "SWEEPER: ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, hub, notifier)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
