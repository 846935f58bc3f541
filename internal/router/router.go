package router

import (
	"net/http"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/handler"
	"github.com/arstate/FAFA-BIMBEL/internal/middleware"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Class         *handler.ClassHandler
	Comment       *handler.CommentHandler
	Setting       *handler.SettingHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	userService *service.UserService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/login", authLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)

		auth.GET("/me",
			middleware.RequireAuth(authService),
			middleware.RequireActiveAccount(userService),
			handlers.Auth.Me,
		)
	}

	// ─── 2. Student Group (JWT + live account) ─────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.RequireActiveAccount(userService),
	)
	{
		studentAPI.POST("/classes/join", handlers.StudentPortal.JoinClass)
		studentAPI.GET("/classes", handlers.StudentPortal.MyClasses)

		class := studentAPI.Group("/classes/:classId")
		class.Use(middleware.RequireClassMember(userService))
		{
			class.GET("", handlers.StudentPortal.GetClass)

			item := class.Group("/weeks/:weekId/items/:itemId")
			{
				item.GET("/quiz", handlers.StudentPortal.GetQuizState)
				item.POST("/quiz/start", handlers.StudentPortal.StartQuiz)
				item.PUT("/quiz/answers", handlers.StudentPortal.RecordAnswer)
				item.POST("/quiz/submit", handlers.StudentPortal.SubmitQuiz)
				item.POST("/quiz/leave", handlers.StudentPortal.LeaveQuiz)
				item.GET("/quiz/result", handlers.StudentPortal.GetMyResult)

				item.GET("/comments", handlers.Comment.History)
				item.POST("/comments", handlers.Comment.Send)
			}
		}
	}

	// ─── 3. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.RequireActiveAccount(userService),
	)
	{
		ws.GET("/stream", handlers.WS.Stream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Content
		adminAPI.GET("/classes", handlers.Class.ListClasses)
		adminAPI.POST("/classes", handlers.Class.CreateClass)
		adminAPI.GET("/classes/:classId", handlers.Class.GetClass)
		adminAPI.POST("/classes/:classId/weeks", handlers.Class.AddWeek)
		adminAPI.POST("/classes/:classId/weeks/:weekId/items", handlers.Class.AddItem)

		item := adminAPI.Group("/classes/:classId/weeks/:weekId/items/:itemId")
		{
			item.GET("", handlers.Class.GetItem)
			item.PATCH("", handlers.Class.UpdateItem)
			item.GET("/questions", handlers.Class.ListQuestions)
			item.POST("/questions", handlers.Class.AddQuestion)
			item.DELETE("/questions/:questionId", handlers.Class.RemoveQuestion)
			item.GET("/results", handlers.Class.ListResults)
			item.GET("/monitor", handlers.Monitor.MonitorQuizSSE)

			// Comment threads
			item.GET("/comments", handlers.Comment.ListThreads)
			item.GET("/comments/:studentId", handlers.Comment.History)
			item.POST("/comments/:studentId", handlers.Comment.Send)
		}

		// Student management
		adminAPI.GET("/students", handlers.StudentMgmt.ListStudents)
		adminAPI.POST("/students", handlers.StudentMgmt.CreateStudent)
		adminAPI.DELETE("/students/:id", handlers.StudentMgmt.DeleteStudent)

		// Presence
		adminAPI.GET("/presence/stream", handlers.Monitor.PresenceSSE)

		// Settings
		adminAPI.GET("/settings/ai-credential", handlers.Setting.GetAICredentialStatus)
		adminAPI.PUT("/settings/ai-credential", handlers.Setting.SetAICredential)
		adminAPI.DELETE("/settings/ai-credential", handlers.Setting.ClearAICredential)
	}

	return router
}
