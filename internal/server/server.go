package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardcircle/config"
	"cardcircle/internal/handler"
	"cardcircle/internal/middleware"
	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"
	"cardcircle/internal/websocket"
	"cardcircle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Groups    *handler.GroupHandler
	Directs   *handler.DirectHandler
	Messages  *handler.MessageHandler
	Shares    *handler.ShareHandler
	WebSocket *websocket.Handler
}

// Dependencies are the cross-cutting pieces the routes need besides handlers.
type Dependencies struct {
	Auth    services.AuthVerifier
	Limiter middleware.MessageLimiter
	Health  func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           corsHandler(cfg.CORSOrigins, engine),
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func corsHandler(origins []string, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         600,
	}).Handler(next)
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				if s.logger != nil {
					s.logger.Warnf("health check failed: %s", err)
				}
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("unhealthy", "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	api := s.engine.Group("/api")
	if handlers.WebSocket != nil {
		// authenticates from the token query parameter
		api.GET("/ws", handlers.WebSocket.Connect)
	}

	authed := api.Group("", middleware.AuthMiddleware(deps.Auth))
	limit := middleware.MessageRateLimitMiddleware(deps.Limiter)

	groups := authed.Group("/chat/groups")
	{
		groups.GET("", handlers.Groups.List)
		groups.POST("", handlers.Groups.Create)
		groups.POST("/join", handlers.Groups.Join)
		groups.GET("/:id", handlers.Groups.Get)
		groups.GET("/:id/members", handlers.Groups.Members)
		groups.POST("/:id/members", handlers.Groups.AddMember)
		groups.POST("/:id/members/bulk", handlers.Groups.AddMembersBulk)
		groups.POST("/:id/members/remove", handlers.Groups.RemoveMember)
		groups.POST("/:id/admins", handlers.Groups.ModifyAdmin)
		groups.PATCH("/:id/settings", handlers.Groups.UpdateSettings)
		groups.POST("/:id/photo", handlers.Groups.UploadPhoto)
		groups.POST("/:id/join-code", handlers.Groups.RegenerateJoinCode)
		groups.POST("/:id/leave", handlers.Groups.Leave)
		groups.GET("/:id/messages", handlers.Messages.ListGroup)
		groups.POST("/:id/messages", limit, handlers.Messages.SendGroup)
	}

	dm := authed.Group("/dm")
	{
		dm.POST("/open", handlers.Directs.Open)
		dm.GET("", handlers.Directs.List)
		dm.GET("/:id/messages", handlers.Messages.ListDirect)
		dm.POST("/:id/messages", limit, handlers.Messages.SendDirect)
	}

	authed.POST("/shares/group", limit, handlers.Shares.ShareToGroup)
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
