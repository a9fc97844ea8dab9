// Package api exposes the platform's operations as a REST+WebSocket
// front-end collaborator. Same gin router + middleware chain + WSHub
// shape as the teacher's blockchain API server; the routes and payloads
// underneath are rewritten for mobile-money/crypto operations instead of
// block/proof submission.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/agents"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/cryptoasset"
	"github.com/afritokeni/platform/pkg/escrow"
	"github.com/afritokeni/platform/pkg/governance"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/limiter"
	"github.com/afritokeni/platform/pkg/users"
	"github.com/afritokeni/platform/pkg/wallet"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afritokenid_http_requests_total",
			Help: "Total HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "afritokenid_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)

// Services bundles the service-layer collaborators the API dispatches
// to. The server itself touches ledger.Store directly only for the fiat
// balance read in handleGetBalance.
type Services struct {
	Store      *ledger.Store
	Users      *users.Service
	Wallet     *wallet.Service
	Crypto     *cryptoasset.Service
	Agents     *agents.Service
	Escrow     *escrow.Service
	Governance *governance.Service
}

// Server is the REST+WebSocket API server.
type Server struct {
	config      config.APIConfig
	log         *logger.Logger
	limiter     *limiter.RateLimiter
	services    Services
	serviceToken string
	wsHub       *WSHub
	router      *gin.Engine
	httpServer  *http.Server
}

// NewServer creates a new API server. serviceToken is the internal
// platform-signed credential the server presents to every service call
// on behalf of whichever end user authenticates with their own PIN in
// the request body — it is never an end-user credential.
func NewServer(
	cfg config.APIConfig,
	rateLimiter *limiter.RateLimiter,
	services Services,
	serviceToken string,
	log *logger.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	wsHub := NewWSHub(log)
	go wsHub.Run()

	s := &Server{
		config:       cfg,
		log:          log,
		limiter:      rateLimiter,
		services:     services,
		serviceToken: serviceToken,
		wsHub:        wsHub,
		router:       router,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.router.Use(s.rateLimitMiddleware())
	s.router.Use(s.loggingMiddleware())

	if s.config.EnableCORS {
		s.router.Use(corsMiddleware())
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/users/register", s.handleRegister)
		v1.POST("/users/verify-pin", s.handleVerifyPin)
		v1.GET("/users/:id/balance", s.handleGetBalance)

		v1.POST("/transfers", s.handleTransfer)

		v1.POST("/deposits", s.handleCreateDeposit)
		v1.POST("/deposits/:code/confirm", s.handleConfirmDeposit)
		v1.POST("/withdrawals", s.handleCreateWithdrawal)
		v1.POST("/withdrawals/:code/confirm", s.handleConfirmWithdrawal)

		v1.POST("/crypto/buy", s.handleCryptoBuy)
		v1.POST("/crypto/sell", s.handleCryptoSell)
		v1.POST("/crypto/send", s.handleCryptoSend)
		v1.POST("/crypto/swap", s.handleCryptoSwap)
		v1.GET("/crypto/:userId/balance/:type", s.handleCryptoBalance)

		v1.POST("/escrows", s.handleCreateEscrow)
		v1.POST("/escrows/:code/claim", s.handleClaimEscrow)
		v1.POST("/escrows/:code/cancel", s.handleCancelEscrow)

		v1.POST("/proposals", s.handleCreateProposal)
		v1.GET("/proposals/:id", s.handleGetProposal)
		v1.POST("/proposals/:id/vote", s.handleCastVote)
		v1.POST("/proposals/:id/close", s.handleCloseProposal)
	}
}

// Start starts the API server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.WithField("address", addr).Info("API server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Middleware

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.limiter.CheckRequest(c.Request.RemoteAddr)
		if !allowed {
			s.log.WithError(err).WithField("ip", c.ClientIP()).Warn("rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(path, method).Observe(duration.Seconds())

		s.log.WithFields(logger.Fields{
			"method":   method,
			"path":     path,
			"status":   status,
			"duration": duration,
			"ip":       c.ClientIP(),
		}).Info("API request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": "1.0.0",
		"components": gin.H{
			"ledger":       "ok",
			"rate_limiter": "ok",
		},
	})
}
