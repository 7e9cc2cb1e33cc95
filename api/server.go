package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GhasemiTaheri/aban-exchange/api/handlers"
	"github.com/GhasemiTaheri/aban-exchange/api/responses"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// TokenClaims represents the JWT claims accepted by the intake API
type TokenClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Dependencies are the collaborators the API server calls into
type Dependencies struct {
	Intake handlers.OrderSubmitter
	Queue  handlers.QueueDepth
	PingDB func(ctx context.Context) error
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	logger     *zap.Logger
	jwtSecret  []byte
	validator  *validator.Validate
	orders     *handlers.OrderHandler
	health     *handlers.HealthHandler
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, jwtSecret string, deps Dependencies) *Server {
	router := gin.New()

	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("aban-exchange-api"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	validate := validator.New()
	server := &Server{
		router:    router,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		validator: validate,
		orders:    handlers.NewOrderHandler(deps.Intake, validate, logger),
		health:    handlers.NewHealthHandler(deps.Queue, deps.PingDB, logger),
	}
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	public := s.router.Group("/api/v1")
	{
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/health", s.health.Health)
	}

	order := s.router.Group("/api/v1/order")
	order.Use(s.authMiddleware())
	{
		order.POST("/create", s.orders.CreateOrder)
	}
}

// Start serves HTTP on addr until Shutdown is called
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	s.logger.Info("Starting API server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// authMiddleware verifies the bearer token and stores the caller id
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			responses.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			responses.Unauthorized(c, "Invalid authorization format")
			c.Abort()
			return
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			s.logger.Debug("Rejected bearer token", zap.Error(err))
			responses.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(handlers.UserIDKey, claims.UserID)
		c.Next()
	}
}

func (s *Server) parseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.UserID == 0 {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
