package router

import (
	"github.com/gin-gonic/gin"

	"github.com/rias-glitch/casino-backend/internal/config"
	"github.com/rias-glitch/casino-backend/internal/http/handlers"
	"github.com/rias-glitch/casino-backend/internal/http/middleware"
	"github.com/rias-glitch/casino-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	disputeHandler *handlers.DisputeHandler,
	roomHandler *handlers.RoomHandler,
	gameHandler *handlers.GameHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	authService *service.AuthService,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(10, cfg.RateLimitPeriod))
	{
		authGroup.POST("/login", authHandler.Login)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/users/leaderboard", userHandler.Leaderboard)
	api.GET("/disputes/active-votings", disputeHandler.ListActiveVotings)
	api.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
	api.GET("/disputes/:id/votes", middleware.UUIDValidator("id"), disputeHandler.GetVotes)

	// Зачистка просроченных голосований: идемпотентна, поэтому доступна без
	// авторизации, но с жёстким rate limit.
	api.POST("/disputes/check-expired", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), disputeHandler.CheckExpired)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.GET("/users/me", userHandler.GetMe)
		protected.POST("/users/deposit", userHandler.Deposit)
		protected.GET("/users/me/transactions", userHandler.ListTransactions)

		protected.POST("/disputes", disputeHandler.CreateDispute)
		protected.GET("/disputes/user/:userId", disputeHandler.ListUserDisputes)
		protected.POST("/disputes/:id/accept", middleware.UUIDValidator("id"), disputeHandler.AcceptDispute)
		protected.POST("/disputes/:id/decline", middleware.UUIDValidator("id"), disputeHandler.DeclineDispute)
		protected.POST("/disputes/:id/cancel", middleware.UUIDValidator("id"), disputeHandler.CancelDispute)
		protected.POST("/disputes/:id/choose", middleware.UUIDValidator("id"), disputeHandler.MakeChoice)
		protected.POST("/disputes/:id/vote", middleware.UUIDValidator("id"), disputeHandler.Vote)
		protected.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveByVoting)

		protected.POST("/rooms/:id/join", middleware.UUIDValidator("id"), roomHandler.Join)
		protected.GET("/rooms/:id", middleware.UUIDValidator("id"), roomHandler.Status)
		protected.POST("/rooms/:id/ready", middleware.UUIDValidator("id"), roomHandler.SetReady)
		protected.DELETE("/rooms/:id", middleware.UUIDValidator("id"), roomHandler.Close)

		protected.POST("/games/bet", gameHandler.PlaceBet)
		protected.POST("/games/win", gameHandler.CreditWin)
	}

	return r
}
