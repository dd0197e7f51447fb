package routes

import (
	"log"
	"os"

	controller "taskory/controllers"
	"taskory/middleware"
	"taskory/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize logger
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	authController := controller.NewAuthController(db, authLogger)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)

	// Protected auth endpoints (require a valid session)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Get("/me", authController.Me)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, hub *utils.NotificationHub, notifier *utils.Notifier) {
	// Initialize controllers with their respective loggers
	authController := controller.NewAuthController(db, log.New(os.Stdout, "AUTH: ", log.LstdFlags))
	projectController := controller.NewProjectController(db, log.New(os.Stdout, "PROJECT: ", log.LstdFlags), notifier)
	workflowController := controller.NewWorkflowController(db, log.New(os.Stdout, "WORKFLOW: ", log.LstdFlags))
	issueController := controller.NewIssueController(db, log.New(os.Stdout, "ISSUE: ", log.LstdFlags), notifier)
	sprintController := controller.NewSprintController(db, log.New(os.Stdout, "SPRINT: ", log.LstdFlags), notifier)
	commentController := controller.NewCommentController(db, log.New(os.Stdout, "COMMENT: ", log.LstdFlags))
	attachmentController := controller.NewAttachmentController(db, log.New(os.Stdout, "ATTACHMENT: ", log.LstdFlags))
	notificationController := controller.NewNotificationController(db, log.New(os.Stdout, "NOTIFICATION: ", log.LstdFlags))
	aiController := controller.NewAIController(db, log.New(os.Stdout, "AI: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// User routes
	api.Get("/users", authController.ListUsers)

	// Project routes
	project := api.Group("/projects")
	project.Post("/", projectController.CreateProject)
	project.Get("/", projectController.GetProjects)
	project.Get("/:id", projectController.GetProject)
	project.Put("/:id", projectController.UpdateProject)
	project.Delete("/:id", projectController.DeleteProject)
	project.Get("/:id/board", projectController.GetBoard)
	project.Get("/:id/backlog", projectController.GetBacklog)
	project.Get("/:id/workflow", workflowController.GetWorkflow)
	project.Put("/:id/workflow", workflowController.UpdateWorkflow)
	project.Post("/:id/issues", issueController.CreateIssue)
	project.Get("/:id/issues", issueController.GetIssues)
	project.Post("/:id/sprints", sprintController.CreateSprint)
	project.Get("/:id/sprints", sprintController.GetProjectSprints)

	// Issue routes
	issue := api.Group("/issues")
	issue.Get("/:id", issueController.GetIssue)
	issue.Put("/:id", issueController.UpdateIssue)
	issue.Delete("/:id", issueController.DeleteIssue)
	issue.Post("/:id/comments", commentController.CreateComment)
	issue.Get("/:id/comments", commentController.GetComments)
	issue.Post("/:id/attachments", attachmentController.UploadAttachment)
	issue.Get("/:id/attachments", attachmentController.GetAttachments)

	// Sprint routes
	sprint := api.Group("/sprints")
	sprint.Get("/:id", sprintController.GetSprint)
	sprint.Put("/:id", sprintController.UpdateSprint)
	sprint.Delete("/:id", sprintController.DeleteSprint)
	sprint.Post("/:id/start", sprintController.StartSprint)
	sprint.Post("/:id/close", sprintController.CloseSprint)
	sprint.Get("/:id/burndown", sprintController.GetBurndown)
	sprint.Get("/:id/issues", sprintController.GetSprintIssues)

	// Comment and attachment routes
	api.Put("/comments/:id", commentController.UpdateComment)
	api.Delete("/comments/:id", commentController.DeleteComment)
	api.Get("/attachments/:id/download", attachmentController.DownloadAttachment)
	api.Delete("/attachments/:id", attachmentController.DeleteAttachment)

	// Notification routes
	notification := api.Group("/notifications")
	notification.Get("/", notificationController.GetNotifications)
	notification.Get("/unread-count", notificationController.GetUnreadCount)
	notification.Put("/read-all", notificationController.MarkAllRead)
	notification.Put("/:id/read", notificationController.MarkRead)

	// AI assistant routes with rate limiting
	ai := api.Group("/ai", middleware.AIRateLimiter())
	ai.Get("/issues/:id/analyze", aiController.AnalyzeIssue)
	ai.Get("/issues/:id/similar", aiController.GetSimilarIssues)
	ai.Get("/issues/:id/action-items", aiController.GetActionItems)
	ai.Post("/issues/:id/suggest", aiController.SuggestOnIssue)
	ai.Post("/sentiment", aiController.AnalyzeSentiment)

	// WebSocket route for live notifications
	app.Get("/ws/notifications", middleware.Protected(), websocket.New(controller.HandleNotificationWS(hub)))

	// Log initialization
	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, hub *utils.NotificationHub, notifier *utils.Notifier) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db, hub, notifier)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
