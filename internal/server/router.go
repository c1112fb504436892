// Package server assembles the HTTP router from services, handlers and
// middleware.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"budgetoffice/internal/config"
	"budgetoffice/internal/handlers"
	"budgetoffice/internal/middleware"
	"budgetoffice/internal/services"
)

// NewRouter wires every service and handler over db and returns the router.
func NewRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	userService := services.NewUserService(db)
	categoryService := services.NewCategoryService(db)
	budgetService := services.NewBudgetService(db, cfg.DefaultBudgetYear)
	transactionService := services.NewTransactionService(db)
	auditService := services.NewAuditService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	userHandler := handlers.NewUserHandler(userService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	budgetHandler := handlers.NewBudgetHandler(budgetService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService, cfg.UploadDir, cfg.MaxUploadMB)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.MaxMultipartMemory = cfg.MaxUploadMB << 20

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Receipt images
	router.Static("/uploads", cfg.UploadDir)

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Pipeline routes authenticate with X-API-Key instead of a JWT
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.GET("/budgets/export", budgetHandler.ExportBudgets)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	users := protected.Group("/users")
	users.GET("", userHandler.GetUsers)
	users.GET("/:id", userHandler.GetUser)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/export", budgetHandler.ExportBudgets)
	budgets.POST("/bulk-delete", budgetHandler.BulkDeleteBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.POST("/bulk-delete", transactionHandler.BulkDeleteTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.POST("/:id/restore", transactionHandler.RestoreTransaction)
	transactions.DELETE("/:id/force", transactionHandler.ForceDeleteTransaction)
	transactions.POST("/:id/image", transactionHandler.UploadImage)

	return router
}
