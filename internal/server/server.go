// Package server exposes scanning, anonymization, and the audit loop over
// HTTP, with a WebSocket event stream for the dashboard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/anonymize"
	"github.com/lgpdkit/pii-sentinel/internal/audit"
	"github.com/lgpdkit/pii-sentinel/internal/cache"
	"github.com/lgpdkit/pii-sentinel/internal/config"
	"github.com/lgpdkit/pii-sentinel/internal/logger"
	"github.com/lgpdkit/pii-sentinel/internal/pii"
	"github.com/lgpdkit/pii-sentinel/internal/vaultstore"
	"github.com/lgpdkit/pii-sentinel/internal/web"
	"github.com/lgpdkit/pii-sentinel/internal/websocket"
)

// Server represents the main API server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	detector *pii.Detector
	cache    *cache.ScanCache
	vaults   *vaultstore.Store
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub
	limiter  *ipLimiter
	salt     anonymize.Salt
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	detector := pii.NewDetector(pii.NewDefaultRegistry(), pii.Options{
		ContentThreshold: cfg.Detection.ContentThreshold,
		NameThreshold:    cfg.Detection.NameThreshold,
		SampleSize:       cfg.Detection.SampleSize,
	}, log.WithComponent("detector").Logger)

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastScans:          cfg.WebSocket.Events.BroadcastScans,
		BroadcastAnonymizations: cfg.WebSocket.Events.BroadcastAnonymizations,
		BroadcastSystem:         cfg.WebSocket.Events.BroadcastSystem,
		MaxConnections:          cfg.WebSocket.MaxConnections,
	}, log.WithComponent("websocket").Logger)

	server := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		detector: detector,
		router:   mux.NewRouter(),
		wsHub:    wsHub,
	}

	if cfg.Cache.Enabled {
		scanCache, err := cache.NewScanCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scan cache: %w", err)
		}
		server.cache = scanCache
	}

	if cfg.Vault.Enabled {
		store, err := vaultstore.NewStore(&vaultstore.Config{
			DatabaseURL:     cfg.Vault.DatabaseURL,
			MaxOpenConns:    cfg.Vault.MaxOpenConns,
			MaxIdleConns:    cfg.Vault.MaxIdleConns,
			ConnMaxLifetime: cfg.Vault.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Vault.ConnMaxIdleTime,
		}, log.WithComponent("vaultstore").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create vault store: %w", err)
		}
		server.vaults = store
	}

	if cfg.Server.RateLimit.Enabled {
		server.limiter = newIPLimiter(cfg.Server.RateLimit.RequestsPerSec, cfg.Server.RateLimit.Burst)
	}

	// The server holds one salt for its lifetime so hashes stay consistent
	// across requests. A configured salt wins; otherwise one is generated at
	// startup.
	if cfg.Anonymization.HashSalt != "" {
		server.salt = anonymize.NewSalt(cfg.Anonymization.HashSalt)
	} else {
		salt, err := anonymize.GenerateSalt()
		if err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		server.salt = salt
		log.Warn("No hash salt configured, generated an ephemeral one; hashes will not be stable across restarts")
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	// WebSocket endpoint for dashboard
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// API endpoints
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/audit", s.handleAudit).Methods("POST")
	api.HandleFunc("/detokenize", s.handleDetokenize).Methods("POST")
	api.HandleFunc("/vault/runs", s.handleVaultRuns).Methods("GET")
	api.HandleFunc("/cache/stats", s.handleCacheStats).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting PII-Sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("vault_store_enabled", s.vaults != nil),
		zap.Bool("rate_limit_enabled", s.limiter != nil),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and closes backend connections
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PII-Sentinel server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close scan cache", zap.Error(err))
		}
	}
	if s.vaults != nil {
		if err := s.vaults.Close(); err != nil {
			s.logger.Warn("Failed to close vault store", zap.Error(err))
		}
	}
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"pii-sentinel",
		"version":"0.1.0",
		"categories":%d,
		"cache_enabled":%t,
		"vault_store_enabled":%t,
		"strict_mode":%t
	}`, len(pii.Categories()), s.cache != nil, s.vaults != nil, s.config.Anonymization.StrictMode)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

// newEngine builds an engine for one request. Engines are per-request so
// concurrent runs never share a vault unless one was explicitly restored.
func (s *Server) newEngine(vault *anonymize.TokenVault) *anonymize.Engine {
	cfg := anonymize.Config{
		Salt:        s.salt,
		StrictMode:  s.config.Anonymization.StrictMode,
		TokenPrefix: s.config.Anonymization.TokenPrefix,
		Workers:     s.config.Anonymization.Workers,
	}
	log := s.logger.WithComponent("engine").Logger
	if vault != nil {
		return anonymize.NewEngineWithVault(cfg, vault, log)
	}
	return anonymize.NewEngine(cfg, log)
}

// newOrchestrator wires the shared detector with a per-request engine
func (s *Server) newOrchestrator(engine *anonymize.Engine) *audit.Orchestrator {
	return audit.New(s.detector, engine, s.logger.WithComponent("audit").Logger)
}
