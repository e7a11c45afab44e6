package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sitegrid-dev/sitegrid/internal/handlers"
	"github.com/sitegrid-dev/sitegrid/internal/middleware"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.CreateUser)
			auth.POST("/login", handlers.LoginUser)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.POST("", middleware.RequireRole(types.RoleAdmin, types.RoleManager), handlers.CreateProject)
			projects.GET("", handlers.ListProjects)
			projects.PATCH("/:project_id", handlers.UpdateProject)
			projects.DELETE("/:project_id", handlers.DeleteProject)
		}

		notifications := api.Group("/notifications", middleware.AuthMiddleware())
		{
			notifications.GET("", handlers.ListNotifications)
			notifications.GET("/unread", handlers.GetUnreadSummary)
			notifications.POST("/read", handlers.MarkAsRead)
			notifications.POST("/:notification_id/read", handlers.MarkOneAsRead)

			notifications.GET("/preferences", handlers.GetPreferences)
			notifications.PUT("/preferences/:context", handlers.UpdatePreference)

			// Creation and administration are gated to staff roles.
			staff := notifications.Group("", middleware.RequireRole(types.RoleAdmin, types.RoleManager, types.RoleSupervisor))
			{
				staff.POST("", handlers.CreateNotification)
				staff.POST("/critical", handlers.CreateCriticalAlert)
			}

			admin := notifications.Group("", middleware.RequireRole(types.RoleAdmin))
			{
				admin.DELETE("/cleanup", handlers.CleanupNotifications)
				admin.GET("/deliveries", handlers.GetDeliveryStats)
			}
		}
	}

	return r
}
