package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/config"
	"github.com/bulletin/bboard/controllers"
	"github.com/bulletin/bboard/middleware"
	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/notify"
	"github.com/bulletin/bboard/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, notifier *notify.Notifier) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db, notifier)
	postController := controllers.NewPostController(db)
	feedbackController := controllers.NewFeedbackController(db, notifier)
	categoryController := controllers.NewCategoryController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public board and categories
	api.GET("/posts", postController.ListPosts)
	api.GET("/categories", categoryController.ListCategories)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())

	// Detail page with inline commenting
	protected.GET("/posts/:id", postController.GetPost)
	protected.POST("/posts/:id/feedback", feedbackController.CreateFeedback)

	// Post management behind the permission guard chain
	protected.POST("/posts",
		middleware.PermissionRequired(db, models.PermAddPost),
		postController.CreatePost)
	protected.PUT("/posts/:id",
		middleware.PermissionRequired(db, models.PermChangePost),
		postController.UpdatePost)
	protected.DELETE("/posts/:id",
		middleware.PermissionRequired(db, models.PermDeletePost),
		postController.DeletePost)
	protected.GET("/users/me/posts",
		middleware.PermissionRequired(db, models.PermChangePost, models.PermDeletePost),
		postController.Profile)

	// Feedback inbox with subscribe/unsubscribe actions
	protected.GET("/feedback", feedbackController.Inbox)
	protected.POST("/feedback", feedbackController.ToggleSubscription)

	protected.POST("/upload", postController.UploadImage)

	// Admin management
	protected.POST("/categories", categoryController.CreateCategory)
	protected.DELETE("/categories/:id", categoryController.DeleteCategory)
	protected.POST("/users/:id/permissions", authController.UpdatePermission)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
