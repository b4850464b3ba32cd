// Package pipeline provides the request orchestration for cover letter generation:
// validation, retrieval, generation, and the index rebuild lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cover-letter-rag/internal/generation"
	"github.com/jonathan/cover-letter-rag/internal/retrieval"
	"github.com/jonathan/cover-letter-rag/internal/types"
)

// DefaultTimeout bounds a whole request.
const DefaultTimeout = 90 * time.Second

// Stage is a step in a request's lifecycle.
type Stage string

// Stage constants.
const (
	StageReceived   Stage = "received"
	StageValidating Stage = "validating"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// StageEvent reports a stage transition.
type StageEvent struct {
	RequestID string `json:"request_id"`
	Stage     Stage  `json:"stage"`
	Message   string `json:"message,omitempty"`
}

// StageCallback is called on every stage transition.
type StageCallback func(event StageEvent)

// Retriever fetches ranked context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query, k int) ([]types.RetrievedContext, error)
	Roles() ([]string, error)
}

// LetterGenerator produces a cleaned cover letter.
type LetterGenerator interface {
	Generate(ctx context.Context, in generation.Input) (*generation.Letter, error)
}

// Recorder persists an audit entry for each finished request.
type Recorder interface {
	RecordRun(ctx context.Context, run types.RunRecord) error
}

// Options configures an Orchestrator.
type Options struct {
	// Timeout bounds each request; zero selects DefaultTimeout.
	Timeout time.Duration
	// CacheSize enables the response cache when positive.
	CacheSize int
	CacheTTL  time.Duration
	Recorder  Recorder
	OnStage   StageCallback
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

// Orchestrator runs requests through validation, retrieval, and generation.
type Orchestrator struct {
	retriever Retriever
	generator LetterGenerator
	timeout   time.Duration
	cache     *responseCache
	recorder  Recorder
	onStage   StageCallback
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(retriever Retriever, generator LetterGenerator, opts Options) *Orchestrator {
	o := &Orchestrator{
		retriever: retriever,
		generator: generator,
		timeout:   opts.Timeout,
		recorder:  opts.Recorder,
		onStage:   opts.OnStage,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	if opts.CacheSize > 0 {
		o.cache = newResponseCache(opts.CacheSize, opts.CacheTTL, o.now)
	}
	return o
}

// Generate runs a generation request. The returned Response is always populated:
// on failure it carries the error and category and no letter.
func (o *Orchestrator) Generate(ctx context.Context, req types.GenerationRequest) types.Response {
	return o.run(ctx, req, false)
}

// GenerateWithContext is Generate plus the retrieved context in the response.
func (o *Orchestrator) GenerateWithContext(ctx context.Context, req types.GenerationRequest) types.Response {
	return o.run(ctx, req, true)
}

// Roles lists the roles available in the active index.
func (o *Orchestrator) Roles() ([]string, error) {
	return o.retriever.Roles()
}

// PurgeCache drops cached responses, e.g. after the index changes.
func (o *Orchestrator) PurgeCache() {
	if o.cache != nil {
		o.cache.purge()
	}
}

// ContextByRole returns up to limit chunks for role without generating a letter.
// An empty experienceType means experienced; limit must be within [1, 10].
func (o *Orchestrator) ContextByRole(ctx context.Context, role, experienceType string, limit int) ([]types.ContextItem, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, types.NewError(types.CategoryInvalidRequest, "role is required", nil)
	}
	exp := types.DefaultExperienceType
	if strings.TrimSpace(experienceType) != "" {
		parsed, err := types.ParseExperienceType(experienceType)
		if err != nil {
			return nil, types.NewError(types.CategoryInvalidRequest, "experience_type must be one of [fresher experienced]", err)
		}
		exp = parsed
	}
	if limit < types.MinTopK || limit > types.MaxTopK {
		return nil, types.NewError(types.CategoryInvalidRequest,
			fmt.Sprintf("limit must be between %d and %d", types.MinTopK, types.MaxTopK), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	retrieved, err := o.retriever.Retrieve(ctx, retrieval.RoleQuery(role, exp), limit)
	if err != nil {
		return nil, o.classify(err)
	}
	return types.ToContextItems(retrieved), nil
}

func (o *Orchestrator) run(parent context.Context, req types.GenerationRequest, withContext bool) types.Response {
	start := o.now()
	requestID := o.newID()
	operation := "generate"
	if withContext {
		operation = "generate_with_context"
	}
	log := o.logger.With("request_id", requestID, "operation", operation)
	o.stage(log, requestID, StageReceived, "")

	normalized := req.Normalized()
	record := types.RunRecord{
		RequestID:      requestID,
		Operation:      operation,
		CompanyName:    normalized.CompanyName,
		JobRole:        normalized.JobRole,
		ExperienceType: normalized.ExperienceType,
		TopK:           normalized.K(),
		CreatedAt:      start.UTC(),
	}

	fail := func(err error) types.Response {
		perr := asPipelineError(err)
		o.stage(log, requestID, StageFailed, perr.Error())
		record.Status = types.RunFailed
		record.Category = perr.Category
		record.Duration = o.now().Sub(start)
		o.record(parent, log, record)
		return types.FailureResponse(perr)
	}

	o.stage(log, requestID, StageValidating, "")
	if err := normalized.Validate(); err != nil {
		return fail(types.NewError(types.CategoryInvalidRequest, types.DescribeValidationError(err), err))
	}

	var key string
	if o.cache != nil {
		key = cacheKey(normalized, withContext)
		if resp, ok := o.cache.get(key); ok {
			resp.RequestID = requestID
			log.Info("served from cache")
			o.stage(log, requestID, StageCompleted, "cache hit")
			record.Status = types.RunCompleted
			record.CacheHit = true
			record.WordCount = resp.WordCount
			record.ContextCount = resp.RetrievedContextCount
			record.Warnings = resp.Warnings
			record.Duration = o.now().Sub(start)
			o.record(parent, log, record)
			return resp
		}
	}

	ctx, cancel := context.WithTimeout(parent, o.timeout)
	defer cancel()

	o.stage(log, requestID, StageRetrieving, "")
	query := retrieval.BuildQuery(normalized.JobRole, normalized.CompanyName, normalized.Experience())
	retrieved, err := o.retriever.Retrieve(ctx, query, normalized.K())
	if err != nil {
		return fail(o.classify(err))
	}
	log.Info("context retrieved", "count", len(retrieved), "top_k", normalized.K())

	o.stage(log, requestID, StageGenerating, "")
	letter, err := o.generator.Generate(ctx, generation.Input{
		ResumeContent:  normalized.ResumeContent,
		JobDescription: normalized.JobDescription,
		CompanyName:    normalized.CompanyName,
		JobRole:        normalized.JobRole,
		Context:        retrieved,
	})
	if err != nil {
		return fail(o.classify(err))
	}

	warnings := append([]types.Warning(nil), letter.Warnings...)
	if len(retrieved) == 0 {
		warnings = append(warnings, types.WarningNoContext)
	}
	resp := types.Response{
		Success: true,
		GenerationResult: &types.GenerationResult{
			RequestID:             requestID,
			CoverLetter:           letter.Text,
			WordCount:             letter.WordCount,
			RetrievedContextCount: len(retrieved),
			GenerationTimestamp:   types.FormatTimestamp(o.now()),
			Warnings:              warnings,
		},
	}
	if withContext {
		resp.RetrievedContext = types.ToContextItems(retrieved)
	}

	if o.cache != nil {
		o.cache.put(key, resp)
	}

	o.stage(log, requestID, StageCompleted, fmt.Sprintf("%d words", letter.WordCount))
	record.Status = types.RunCompleted
	record.WordCount = letter.WordCount
	record.ContextCount = len(retrieved)
	record.Warnings = warnings
	record.Duration = o.now().Sub(start)
	o.record(parent, log, record)
	return resp
}

// classify converts context expiry into Timeout and anything unrecognized into Internal.
func (o *Orchestrator) classify(err error) error {
	var perr *types.PipelineError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.CategoryTimeout, fmt.Sprintf("request exceeded %s", o.timeout), err)
	case errors.Is(err, context.Canceled):
		return types.NewError(types.CategoryTimeout, "request was canceled", err)
	case errors.As(err, &perr):
		return err
	default:
		return types.NewError(types.CategoryInternal, "request failed", err)
	}
}

func asPipelineError(err error) *types.PipelineError {
	var perr *types.PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	return types.NewError(types.CategoryInternal, "request failed", err)
}

func (o *Orchestrator) stage(log *slog.Logger, requestID string, stage Stage, message string) {
	if stage == StageFailed {
		log.Warn("stage", "stage", stage, "error", message)
	} else {
		log.Debug("stage", "stage", stage, "message", message)
	}
	if o.onStage != nil {
		o.onStage(StageEvent{RequestID: requestID, Stage: stage, Message: message})
	}
}

// record writes the audit entry. Recorder failures are logged and never reach the caller.
func (o *Orchestrator) record(parent context.Context, log *slog.Logger, run types.RunRecord) {
	if o.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()
	if err := o.recorder.RecordRun(ctx, run); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}
