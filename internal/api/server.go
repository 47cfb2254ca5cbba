// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/provider"
	"github.com/wallet-portfolio/internal/service"
	"github.com/wallet-portfolio/internal/storage"
)

// Service interfaces for dependency injection and testing

// UserServiceInterface defines the user and wallet-link operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]string, error)
	LinkAddress(ctx context.Context, userID, address string) (string, error)
	UnlinkAddress(ctx context.Context, userID, address string) error
	ListAddresses(ctx context.Context, userID string) ([]string, error)
}

// PortfolioServiceInterface defines the rollup and reporting operations
type PortfolioServiceInterface interface {
	Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error)
	ChainBreakdown(ctx context.Context, userID string) ([]models.ChainBreakdownRow, error)
	TokenBreakdown(ctx context.Context, userID string, filter models.TokenFilter) ([]models.TokenBreakdownRow, error)
	TokenNames(ctx context.Context, userID string, excludeSpam bool) ([]string, error)
	SpamTokens(ctx context.Context, userID string) ([]string, error)
	SetSpamTokens(ctx context.Context, userID string, names []string) ([]string, error)
	WalletChainTotals(ctx context.Context, userID, address string) ([]models.WalletChainTotal, error)
	DumpTable(ctx context.Context, table string, limit int) (*models.TableDump, error)
	History(ctx context.Context, userID string, limit int) ([]storage.SnapshotTotal, error)
}

// RefreshServiceInterface defines the payload ingestion operation
type RefreshServiceInterface interface {
	RefreshWallet(ctx context.Context, address string, payloads *provider.Payloads) (*service.RefreshResult, error)
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	userService      UserServiceInterface
	portfolioService PortfolioServiceInterface
	refreshService   RefreshServiceInterface
	health           HealthChecker
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64 // Per client
	Burst             int
	MaxBodyBytes      int64
}

// NewServer creates a new API server instance. health may be nil.
func NewServer(
	config *ServerConfig,
	userService UserServiceInterface,
	portfolioService PortfolioServiceInterface,
	refreshService RefreshServiceInterface,
	health HealthChecker,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		userService:      userService,
		portfolioService: portfolioService,
		refreshService:   refreshService,
		health:           health,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Order matters: request id and logging wrap everything else
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(MetricsMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Users and wallet links
	api.HandleFunc("/users", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/users/{id}", s.handleDeleteUser).Methods("DELETE")
	api.HandleFunc("/users/{id}/addresses", s.handleListAddresses).Methods("GET")
	api.HandleFunc("/users/{id}/addresses", s.handleLinkAddress).Methods("POST")
	api.HandleFunc("/users/{id}/addresses/{address}", s.handleUnlinkAddress).Methods("DELETE")

	// Portfolio
	api.HandleFunc("/users/{id}/recompute", s.handleRecompute).Methods("POST")
	api.HandleFunc("/users/{id}/chains", s.handleChainBreakdown).Methods("GET")
	api.HandleFunc("/users/{id}/tokens", s.handleTokenBreakdown).Methods("GET")
	api.HandleFunc("/users/{id}/tokens/names", s.handleTokenNames).Methods("GET")
	api.HandleFunc("/users/{id}/spam-tokens", s.handleGetSpamTokens).Methods("GET")
	api.HandleFunc("/users/{id}/spam-tokens", s.handleSetSpamTokens).Methods("PUT")
	api.HandleFunc("/users/{id}/wallets/{address}/chains", s.handleWalletChainTotals).Methods("GET")
	api.HandleFunc("/users/{id}/history", s.handleHistory).Methods("GET")

	// Ingestion
	api.HandleFunc("/wallets/{address}/refresh", s.handleRefreshWallet).Methods("POST")

	// Admin
	api.HandleFunc("/admin/tables/{table}", s.handleDumpTable).Methods("GET")
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "wallet-portfolio",
				"error":   err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "wallet-portfolio",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
