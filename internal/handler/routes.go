package handler

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/middleware"
	"taskhub-service/pkg/jwtutil"
)

// RegisterRoutes wires every API route onto e. The same wiring serves
// production (cmd/main.go) and the handler test suite.
func RegisterRoutes(e *echo.Echo, db *gorm.DB, signer *jwtutil.Signer, rec *audit.Recorder, loginLimiter *middleware.RateLimiter) {
	authHandler := NewAuthHandler(db, signer, rec)
	tenantHandler := NewTenantHandler(db, rec)
	userHandler := NewUserHandler(db, rec)
	projectHandler := NewProjectHandler(db, rec)
	taskHandler := NewTaskHandler(db, rec)
	healthHandler := NewHealthHandler(db)

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", Metrics)

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register-tenant", authHandler.RegisterTenant)
	auth.POST("/login", authHandler.Login, loginLimiter.Middleware)
	auth.GET("/me", authHandler.Me, middleware.Auth(signer))
	auth.POST("/logout", authHandler.Logout, middleware.Auth(signer))

	secured := api.Group("", middleware.Auth(signer))

	tenants := secured.Group("/tenants")
	tenants.GET("", tenantHandler.List)
	tenants.GET("/:id", tenantHandler.Get)
	tenants.PUT("/:id", tenantHandler.Update)
	tenants.POST("/:id/users", userHandler.Add)
	tenants.GET("/:id/users", userHandler.List)

	users := secured.Group("/users")
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	projects := secured.Group("/projects")
	projects.POST("", projectHandler.Create)
	projects.GET("", projectHandler.List)
	projects.PUT("/:id", projectHandler.Update)
	projects.DELETE("/:id", projectHandler.Delete)
	projects.POST("/:id/tasks", taskHandler.Create)
	projects.GET("/:id/tasks", taskHandler.List)

	tasks := secured.Group("/tasks")
	tasks.PUT("/:id", taskHandler.Update)
	tasks.PATCH("/:id/status", taskHandler.UpdateStatus)
	tasks.DELETE("/:id", taskHandler.Delete)
}
