// Package http exposes the skill progression operations over REST.
//
// End users are authenticated upstream: a trusted gateway forwards the caller
// in the X-User-ID and X-User-Role headers and, optionally, proves itself
// with an API key.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/esat-hub/skills-hub/config"
	"github.com/esat-hub/skills-hub/internal/application/command"
	"github.com/esat-hub/skills-hub/internal/application/query"
	"github.com/esat-hub/skills-hub/internal/interface/http/handlers"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to listen on (default: ":8080").
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of request bodies.
	MaxBodyBytes int64

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// APIKeyHeader - header the gateway presents its key in.
	APIKeyHeader string

	// APIKeys - accepted gateway keys. Empty disables the check.
	APIKeys []string

	// Title and Version describe the API in the OpenAPI document.
	Title   string
	Version string

	// ExposeInternalErrors returns the underlying message of unexpected
	// errors instead of a generic one. Development only.
	ExposeInternalErrors bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
		MaxBodyBytes:   64 << 10,
		APIKeyHeader:   "X-API-Key",
		Title:          "Skills Hub API",
		Version:        "1.0.0",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	StartSkill        *command.StartSkillHandler
	UpdateSkillStatus *command.UpdateSkillStatusHandler
	RemoveSkill       *command.RemoveSkillHandler
	RestartSkill      *command.RestartSkillHandler
	ApproveSkill      *command.ApproveSkillHandler
	RejectSkill       *command.RejectSkillHandler

	// Query Handlers (CQRS Read Side)
	GetSkillsSummary       *query.GetSkillsSummaryHandler
	ListPendingValidations *query.ListPendingValidationsHandler

	// Features gates optional endpoints. Nil disables them.
	Features *config.FeatureFlags

	Logger *logger.Logger

	// HealthChecker backs /health and /ready. Nil reports healthy.
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server owns the router and the net/http server in front of it.
type Server struct {
	config     Config
	deps       Dependencies
	logger     *logger.Logger
	router     chi.Router
	api        huma.API
	httpServer *http.Server

	mu        sync.Mutex
	startedAt time.Time // zero while not serving
}

func NewServer(cfg Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: log.With(logger.Component("http")),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Handler is the router with every middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

// API exposes the huma API, mainly for its OpenAPI document.
func (s *Server) API() huma.API { return s.api }

func (s *Server) Address() string { return s.config.Addr }

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Recovery goes first so it sees panics from every other layer.
	r.Use(s.recoverPanics)
	r.Use(middleware.RealIP)
	r.Use(s.assignRequestID)
	r.Use(s.logRequests)
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(middleware.SetHeader("X-Frame-Options", "DENY"))
	r.Use(middleware.SetHeader("Referrer-Policy", "strict-origin-when-cross-origin"))
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(s.cors)
	}

	// Health checks are never behind the API key.
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Group(func(g chi.Router) {
		g.Use(middleware.NoCache)
		if s.config.MaxBodyBytes > 0 {
			g.Use(middleware.RequestSize(s.config.MaxBodyBytes))
		}
		g.Use(handlers.APIKeyGate(s.config.APIKeyHeader, s.config.APIKeys))

		s.api = humachi.New(g, s.humaConfig())
		s.registerOperations(s.api)
	})

	return r
}

func (s *Server) humaConfig() huma.Config {
	cfg := huma.DefaultConfig(s.config.Title, s.config.Version)
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"gatewayKey": {Type: "apiKey", In: "header", Name: s.config.APIKeyHeader},
	}
	if len(s.config.APIKeys) > 0 {
		cfg.Security = []map[string][]string{{"gatewayKey": {}}}
	}
	return cfg
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every check; optional ones only degrade the status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, handlers.HealthStatus{
			Healthy:   true,
			Ready:     true,
			Uptime:    s.uptime().Round(time.Second).String(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady reports whether the required dependencies answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready":   false,
				"message": status.Message,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

type requestIDKey struct{}

// assignRequestID keeps the caller's X-Request-ID or mints one, and puts a
// logger carrying it into the request context.
func (s *Server) assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// logRequests writes one entry per request, at error level for 5xx.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String("ip", r.RemoteAddr),
			logger.String(logger.RequestIDKey, requestID(r.Context())),
		}
		if uid := r.Header.Get(HeaderUserID); uid != "" {
			fields = append(fields, logger.UserID(uid))
		}

		if status >= http.StatusInternalServerError {
			s.logger.Error("http request", fields...)
		} else {
			s.logger.Info("http request", fields...)
		}
	})
}

// recoverPanics turns a handler panic into a 500 problem response.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("panic recovered",
				logger.Any("error", rec),
				logger.String("stack", string(debug.Stack())),
				logger.String("path", r.URL.Path),
				logger.String(logger.RequestIDKey, requestID(r.Context())),
			)
			handlers.WriteProblem(w, http.StatusInternalServerError, "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

const (
	corsMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-API-Key, X-Request-ID, X-User-ID, X-User-Role"
)

// cors echoes allowed origins and answers preflight requests itself.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.config.AllowedOrigins, "*") || slices.Contains(s.config.AllowedOrigins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown. A Shutdown that ran first makes it return
// nil at once.
func (s *Server) Start() error {
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.startedAt = time.Time{}
		s.mu.Unlock()
	}()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields Start's error, if
// any, and is then closed.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
