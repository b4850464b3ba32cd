package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/db"
	"github.com/jonathan/cover-letter-rag/internal/pipeline"
	"github.com/jonathan/cover-letter-rag/internal/schemas"
	"github.com/jonathan/cover-letter-rag/internal/server/middleware"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	IndexLoaded bool   `json:"index_loaded"`
	IndexSize   int    `json:"index_size"`
	Timestamp   string `json:"timestamp"`
}

// RolesResponse is the body of GET /roles.
type RolesResponse struct {
	Roles []string `json:"roles"`
	Count int      `json:"count"`
}

// ContextByRoleResponse is the body of GET /context-by-role/{role}.
type ContextByRoleResponse struct {
	Role           string              `json:"role"`
	ExperienceType string              `json:"experience_type"`
	Count          int                 `json:"count"`
	Context        []types.ContextItem `json:"context"`
}

// RebuildResponse is the body of POST /admin/index/rebuild.
type RebuildResponse struct {
	Status      string                `json:"status"`
	RequestedBy string                `json:"requested_by"`
	Summary     pipeline.IndexSummary `json:"summary"`
}

// RunsResponse is the body of GET /admin/runs.
type RunsResponse struct {
	Runs  []db.Run `json:"runs"`
	Count int      `json:"count"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerationRequest(w, r)
	if !ok {
		return
	}
	s.writeGeneration(w, s.generator.Generate(r.Context(), req))
}

func (s *Server) handleGenerateWithContext(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerationRequest(w, r)
	if !ok {
		return
	}
	s.writeGeneration(w, s.generator.GenerateWithContext(r.Context(), req))
}

// decodeGenerationRequest checks the body against the request schema and decodes it.
// On failure it writes an InvalidRequest response and returns false.
func (s *Server) decodeGenerationRequest(w http.ResponseWriter, r *http.Request) (types.GenerationRequest, bool) {
	var req types.GenerationRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeInvalid(w, "request body is too large")
			return req, false
		}
		s.writeInvalid(w, "failed to read request body")
		return req, false
	}

	if err := s.requestValidator.Validate(body); err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			s.writeInvalid(w, verr.Summary())
			return req, false
		}
		s.writeInvalid(w, err.Error())
		return req, false
	}

	if err := json.Unmarshal(body, &req); err != nil {
		s.writeInvalid(w, "invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) writeInvalid(w http.ResponseWriter, message string) {
	resp := types.FailureResponse(types.NewError(types.CategoryInvalidRequest, message, nil))
	s.jsonResponse(w, http.StatusBadRequest, resp)
}

func (s *Server) writeGeneration(w http.ResponseWriter, resp types.Response) {
	status := http.StatusOK
	if !resp.Success {
		status = StatusForCategory(resp.Category)
	}
	s.jsonResponse(w, status, resp)
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	roles, err := s.generator.Roles()
	if err != nil {
		s.failure(w, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	s.jsonResponse(w, http.StatusOK, RolesResponse{Roles: roles, Count: len(roles)})
}

func (s *Server) handleContextByRole(w http.ResponseWriter, r *http.Request) {
	role := r.PathValue("role")
	experienceType := r.URL.Query().Get("experience_type")

	limit := types.DefaultTopK
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.failure(w, &ErrValidation{Field: "limit", Message: "must be an integer"})
			return
		}
		limit = parsed
	}

	items, err := s.generator.ContextByRole(r.Context(), role, experienceType, limit)
	if err != nil {
		s.failure(w, err)
		return
	}

	if experienceType == "" {
		experienceType = string(types.DefaultExperienceType)
	}
	s.jsonResponse(w, http.StatusOK, ContextByRoleResponse{
		Role:           role,
		ExperienceType: strings.ToLower(strings.TrimSpace(experienceType)),
		Count:          len(items),
		Context:        items,
	})
}

// handleHealth reports liveness and whether an index is loaded.
// It answers 200 either way so orchestrators can tell "up" from "ready".
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if !s.index.Ready() {
		status = "degraded"
	}
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:      status,
		IndexLoaded: s.index.Ready(),
		IndexSize:   s.index.Size(),
		Timestamp:   types.FormatTimestamp(s.now()),
	})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.Subject(r)
	s.logger.Info("index rebuild requested", "subject", subject)

	summary, err := s.rebuilder.Rebuild(r.Context())
	if err != nil {
		s.logger.Error("index rebuild failed", "subject", subject, "error", err)
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, RebuildResponse{
		Status:      "rebuilt",
		RequestedBy: subject,
		Summary:     summary,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := db.RunFilters{
		Company:  query.Get("company"),
		Status:   query.Get("status"),
		Category: query.Get("category"),
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.failure(w, &ErrValidation{Field: "since", Message: "must be an RFC3339 timestamp"})
			return
		}
		filters.Since = since
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.failure(w, &ErrValidation{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		filters.Limit = limit
	}

	runs, err := s.runs.ListRuns(r.Context(), filters)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.runs.CountByCategory(r.Context())
	if err != nil {
		s.logger.Error("failed to count runs", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	if counts == nil {
		counts = []db.CategoryCount{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"counts": counts})
}
