package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightstar/portal/internal/app/controllers"
	"github.com/brightstar/portal/internal/app/models/dto"
	"github.com/brightstar/portal/internal/middleware"
	"github.com/brightstar/portal/internal/pkg/auth"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	studentController *controllers.StudentController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/admin/login", authController.AdminLogin)
		authGroup.POST("/student/login", authController.StudentLogin)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		// Students see only their own photo; the controller enforces it
		authenticated.GET("/students/:id/photo", studentController.GetPhoto)

		// Directory management is admin-only
		students := authenticated.Group("/students")
		students.Use(authMiddleware.RoleRequired(auth.RoleAdmin))
		{
			students.GET("", studentController.ListStudents)
			students.GET("/search", studentController.SearchStudents)
			students.GET("/classes", studentController.ListClasses)
			students.GET("/export", studentController.ExportStudents)
			students.POST("/import", studentController.ImportStudents)

			students.POST("", studentController.CreateStudent)
			students.GET("/:id", studentController.GetStudent)
			students.PUT("/:id", studentController.UpdateStudent)
			students.DELETE("/:id", studentController.DeleteStudent)
			students.POST("/:id/toggle-status", studentController.ToggleStatus)
		}

		me := authenticated.Group("/me")
		me.Use(authMiddleware.RoleRequired(auth.RoleStudent))
		{
			me.GET("", studentController.GetMe)
			me.PUT("/password", studentController.ChangePassword)
		}
	}

	// Health check endpoint (public)
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}, ""))
	})
}
