package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/db"
	"github.com/jonathan/cover-letter-rag/internal/pipeline"
	"github.com/jonathan/cover-letter-rag/internal/schemas"
	"github.com/jonathan/cover-letter-rag/internal/server/middleware"
	"github.com/jonathan/cover-letter-rag/internal/server/ratelimit"
	"github.com/jonathan/cover-letter-rag/internal/types"
	rootschemas "github.com/jonathan/cover-letter-rag/schemas"
)

// MaxBodyBytes bounds generation request bodies.
const MaxBodyBytes = 2 << 20

// Generator is the request-facing side of the orchestrator.
type Generator interface {
	Generate(ctx context.Context, req types.GenerationRequest) types.Response
	GenerateWithContext(ctx context.Context, req types.GenerationRequest) types.Response
	Roles() ([]string, error)
	ContextByRole(ctx context.Context, role, experienceType string, limit int) ([]types.ContextItem, error)
}

// IndexStatus reports on the active index.
type IndexStatus interface {
	Ready() bool
	Size() int
}

// IndexRebuilder rebuilds and publishes the index.
type IndexRebuilder interface {
	Rebuild(ctx context.Context) (pipeline.IndexSummary, error)
}

// RunStore reads the generation audit log.
type RunStore interface {
	ListRuns(ctx context.Context, filters db.RunFilters) ([]db.Run, error)
	CountByCategory(ctx context.Context) ([]db.CategoryCount, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	Generator Generator
	Index     IndexStatus
	// Rebuilder and Runs are served under /admin and need JWT.
	Rebuilder IndexRebuilder
	Runs      RunStore
	JWT       *JWTService
	RateLimit *ratelimit.Config
	// RequestTimeout sizes the HTTP write timeout; the orchestrator enforces its own.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer       *http.Server
	generator        Generator
	index            IndexStatus
	rebuilder        IndexRebuilder
	runs             RunStore
	rateLimiter      *ratelimit.Limiter
	requestValidator *schemas.Validator
	logger           *slog.Logger
	now              func() time.Time
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Generator == nil || cfg.Index == nil {
		return nil, fmt.Errorf("server requires a generator and an index")
	}

	validator, err := schemas.Embedded(rootschemas.GenerationRequestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load request schema: %w", err)
	}

	s := &Server{
		generator:        cfg.Generator,
		index:            cfg.Index,
		rebuilder:        cfg.Rebuilder,
		runs:             cfg.Runs,
		rateLimiter:      ratelimit.NewLimiter(cfg.RateLimit),
		requestValidator: validator,
		logger:           cfg.Logger,
		now:              time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate-cover-letter", s.handleGenerate)
	mux.HandleFunc("POST /generate-cover-letter-with-context", s.handleGenerateWithContext)
	mux.HandleFunc("GET /roles", s.handleRoles)
	mux.HandleFunc("GET /context-by-role/{role}", s.handleContextByRole)
	mux.HandleFunc("GET /health", s.handleHealth)

	if cfg.JWT != nil {
		requireAdmin := middleware.RequireBearer(cfg.JWT.AsTokenValidator())
		if s.rebuilder != nil {
			mux.Handle("POST /admin/index/rebuild", requireAdmin(http.HandlerFunc(s.handleRebuild)))
		}
		if s.runs != nil {
			mux.Handle("GET /admin/runs", requireAdmin(http.HandlerFunc(s.handleListRuns)))
			mux.Handle("GET /admin/runs/stats", requireAdmin(http.HandlerFunc(s.handleRunStats)))
		}
	}

	writeTimeout := cfg.RequestTimeout + 30*time.Second
	if cfg.RequestTimeout <= 0 {
		writeTimeout = pipeline.DefaultTimeout + 30*time.Second
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", clientID(r),
			"duration", time.Since(start))
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID identifies the caller by the IP part of RemoteAddr.
// X-Forwarded-For is ignored because no trusted proxy list is configured.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded", "path", r.URL.Path, "remote", clientID(r), "limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure writes err as a categorized error response.
func (s *Server) failure(w http.ResponseWriter, err error) {
	resp := types.FailureResponse(err)
	var verr *ErrValidation
	if errors.As(err, &verr) {
		resp.Error = verr.Error()
		resp.Category = types.CategoryInvalidRequest
	}
	s.jsonResponse(w, HTTPStatus(err), map[string]any{
		"error":    resp.Error,
		"category": resp.Category,
	})
}
