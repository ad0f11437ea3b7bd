package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/handler"
	"github.com/archprep/mockportal-backend/internal/middleware"
	"github.com/archprep/mockportal-backend/internal/response"
	"github.com/archprep/mockportal-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Portal  *handler.PortalHandler
	Admin   *handler.AdminHandler
	Monitor *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list; otherwise
	// allow all so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID middleware runs globally so every response carries metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Public (no auth)
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/settings", handlers.Auth.Settings)
	}

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Auth (public, rate limited)
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/signup", handlers.Auth.Signup)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated session routes. Verify-session deliberately skips
		// CheckSingleDeviceSession: a displaced device must still get a clean
		// "valid: false" answer instead of a 401.
		auth.POST("/verify-session", middleware.RequireStudentJWT(authService), handlers.Auth.VerifySession)
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.Logout)
	}

	// Student (JWT + single device)
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/tests", handlers.Portal.ListTests)
		studentAPI.GET("/attempts", handlers.Portal.MyAttempts)

		studentAPI.GET("/session", handlers.Portal.State)
		studentAPI.GET("/session/saved", handlers.Portal.SavedState)
		studentAPI.DELETE("/session/saved", handlers.Portal.DiscardSaved)
		studentAPI.POST("/session/start", handlers.Portal.StartTest)
		studentAPI.POST("/session/resume", handlers.Portal.ResumeTest)
		studentAPI.POST("/session/answer", handlers.Portal.Answer)
		studentAPI.POST("/session/clear", handlers.Portal.ClearResponse)
		studentAPI.POST("/session/next", handlers.Portal.SaveAndNext)
		studentAPI.POST("/session/mark", handlers.Portal.MarkAndNext)
		studentAPI.POST("/session/navigate", handlers.Portal.NavigateTo)
		studentAPI.POST("/session/submit", handlers.Portal.Submit)
		studentAPI.POST("/session/events", handlers.Portal.ReportEvent)
		studentAPI.POST("/session/fullscreen-ack", handlers.Portal.AcknowledgeFullscreen)
	}

	// WebSocket (admin WS auth via query token)
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAdminWSAuth(authService))
	{
		ws.GET("/admin/monitor", handlers.Monitor.Stream)
	}

	// Admin (JWT)
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/users/pending", handlers.Admin.ListPendingUsers)
		adminAPI.POST("/users/:id/approve", handlers.Admin.ApproveUser)
		adminAPI.POST("/users", handlers.Admin.AddUser)
		adminAPI.DELETE("/users/:id", handlers.Admin.DeleteUser)

		adminAPI.POST("/tests", handlers.Admin.CreateTest)
		adminAPI.DELETE("/tests/:id", handlers.Admin.DeleteTest)

		adminAPI.GET("/attempts", handlers.Admin.ListAttempts)
		adminAPI.GET("/session-violations", handlers.Admin.ListSessionViolations)
	}

	return router
}
