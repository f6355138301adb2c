// Package dispatch implements the Dispatcher (C9): the single entry
// point that composes the Security Gate, Argument Canonicalizer,
// internal credential minting, Cache Coordinator, Tool Executor, Metrics
// Accumulator, Audit Sink, and Field Filter into one execute() call.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/infrastructure/metrics"
	"github.com/aishacrm/braid/infrastructure/serviceauth"
	"github.com/aishacrm/braid/internal/engine/audit"
	"github.com/aishacrm/braid/internal/engine/cachecoord"
	"github.com/aishacrm/braid/internal/engine/canon"
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/counters"
	"github.com/aishacrm/braid/internal/engine/filter"
	"github.com/aishacrm/braid/internal/engine/gate"
	"github.com/aishacrm/braid/internal/engine/policy"
	"github.com/aishacrm/braid/internal/engine/registry"
)

// executionTimeout bounds a single tool executor call.
const executionTimeout = 30 * time.Second

// Dispatcher composes every Engine component behind one execute() call.
type Dispatcher struct {
	registry      *registry.Registry
	policies      *policy.Table
	gate          *gate.Gate
	canonicalizer *canon.Canonicalizer
	cache         *cachecoord.Coordinator
	counters      *counters.Accumulator
	auditSink     audit.Sink
	tokens        *serviceauth.ServiceTokenGenerator
	executor      core.ToolExecutor
	logger        *logging.Logger
	metrics       *metrics.Metrics
}

// WithMetrics attaches process-level Prometheus instrumentation. Optional:
// a Dispatcher with no metrics attached behaves identically, just unscraped.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// New builds a Dispatcher. auditSink, cache, counters, and tokens may all
// be nil; every dependency degrades to a no-op rather than a dispatch
// failure when absent.
func New(
	reg *registry.Registry,
	policies *policy.Table,
	g *gate.Gate,
	canonicalizer *canon.Canonicalizer,
	cache *cachecoord.Coordinator,
	ctrs *counters.Accumulator,
	auditSink audit.Sink,
	tokens *serviceauth.ServiceTokenGenerator,
	executor core.ToolExecutor,
	logger *logging.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:      reg,
		policies:      policies,
		gate:          g,
		canonicalizer: canonicalizer,
		cache:         cache,
		counters:      ctrs,
		auditSink:     auditSink,
		tokens:        tokens,
		executor:      executor,
		logger:        logger,
	}
}

// Request is a single tool-call request to Execute.
type Request struct {
	ToolName  string
	Args      map[string]any
	TenantID  string
	UserID    string
	UserEmail string
	Role      core.Role
	Token     core.AccessToken
}

// Execute runs the full dispatch algorithm for req and returns the
// filtered Result. A failed token check is the single case that produces
// neither a metrics increment nor an audit row, since nothing was
// authenticated.
func (d *Dispatcher) Execute(ctx context.Context, req Request) core.Result {
	// 1. Token validation. No side effects on failure.
	if !req.Token.Valid() {
		return core.ErrResult(core.NewError(core.ErrAuthorizationError, "access token is invalid or unverified"))
	}

	start := time.Now()

	// 2. Gate: registry lookup, validation, role, rate limit, confirmation.
	tool, pol, gateErr := d.gate.Check(req.ToolName, req.Args, req.Role, req.TenantID, req.UserID)
	if gateErr != nil {
		result := core.ErrResult(gateErr)
		d.recordOutcome(ctx, tool, pol, req, result, req.Args, start, false, "", "")
		return result
	}

	// 3. Canonicalize arguments.
	canonArgs := d.canonicalizer.Canonicalize(req.ToolName, req.Args, req.TenantID)

	entityType := filter.EntityFromTool(req.ToolName)
	entityID := entityIDFromArgs(canonArgs)

	isReadOnly := pol.Name == policy.ReadOnly
	var cacheKey string
	if isReadOnly && d.cache != nil {
		cacheKey = cachecoord.Fingerprint(req.TenantID, req.ToolName, canonArgs)
		if cached, hit := d.cache.Read(ctx, cacheKey); hit {
			filtered := filter.ApplyToResult(cached, req.ToolName, req.Role)
			d.recordOutcome(ctx, tool, pol, req, filtered, canonArgs, start, true, entityType, entityID)
			return filtered
		}
	}

	// 4. Mint the internal service credential presented to the backing API.
	internalToken := ""
	if d.tokens != nil {
		tok, err := d.tokens.GenerateToken(req.TenantID)
		if err != nil {
			result := core.ErrResult(core.NewError(core.ErrExecutionError, fmt.Sprintf("failed to mint internal credential: %v", err)))
			d.recordOutcome(ctx, tool, pol, req, result, canonArgs, start, false, entityType, entityID)
			return result
		}
		internalToken = tok
	}

	// 5-7. Execute against the backing business API.
	result := d.runExecutor(ctx, tool, pol, req, canonArgs, internalToken)

	// 8. Cache store / invalidate, never promoted to a dispatch failure.
	if d.cache != nil {
		if result.IsOk() && isReadOnly && cacheKey != "" {
			d.cache.Store(ctx, cacheKey, result, d.registry.PerToolTTL(req.ToolName))
		}
		if result.IsOk() && !isReadOnly {
			d.cache.InvalidateIfEntity(ctx, req.TenantID, req.ToolName)
		}
	}

	// 9. Metrics + audit.
	d.recordOutcome(ctx, tool, pol, req, result, canonArgs, start, false, entityType, entityID)

	// 10. Field filter.
	return filter.ApplyToResult(result, req.ToolName, req.Role)
}

func (d *Dispatcher) runExecutor(ctx context.Context, tool core.Tool, pol core.Policy, req Request, canonArgs map[string]any, internalToken string) (result core.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = core.ErrResult(core.NewError(core.ErrExecutionError, fmt.Sprintf("tool executor panicked: %v", r)))
		}
	}()

	if d.executor == nil {
		return core.ErrResult(core.NewError(core.ErrExecutionError, "no tool executor configured"))
	}

	execCtx, cancel := context.WithTimeout(ctx, executionTimeout)
	defer cancel()

	paramOrder, _ := d.registry.ParamOrder(tool.FunctionName)
	positional := canon.Positional(canonArgs, paramOrder)

	policyCtx := core.PolicyContext{Policy: pol, TenantID: req.TenantID, UserID: req.UserID}
	deps := core.Deps{
		TenantUUID:    req.TenantID,
		UserID:        req.UserID,
		InternalToken: internalToken,
		CreatedBy:     req.UserID,
	}
	opts := core.ExecOptions{Cache: false, Timeout: int(executionTimeout.Milliseconds())}

	return d.executor.Execute(execCtx, tool.SourceFile, tool.FunctionName, policyCtx, deps, positional, opts)
}

// recordOutcome fires metrics and audit as best-effort side effects. They
// run synchronously here for determinism in tests; production callers may
// wrap Execute and run non-blocking by invoking it from a goroutine, since
// neither side effect contributes to the returned Result.
func (d *Dispatcher) recordOutcome(ctx context.Context, tool core.Tool, pol core.Policy, req Request, result core.Result, args map[string]any, start time.Time, cacheHit bool, entityType, entityID string) {
	elapsed := time.Since(start)
	now := time.Now()

	if d.counters != nil {
		minuteBucket := (now.Unix() / 60) * 60
		hourBucket := (now.Unix() / 3600) * 3600
		d.counters.Record(req.TenantID, req.ToolName, !result.IsOk(), cacheHit, minuteBucket, hourBucket, now.Unix(), elapsed.Milliseconds())
	}

	if d.metrics != nil {
		resultLabel := "ok"
		if !result.IsOk() {
			resultLabel = "error"
			d.metrics.RecordError("braid", string(result.Err.Kind), req.ToolName)
		}
		d.metrics.RecordDispatch("braid", req.ToolName, pol.Name, resultLabel, elapsed)
		if cacheHit {
			d.metrics.RecordCacheHit("braid", req.ToolName)
		} else {
			d.metrics.RecordCacheMiss("braid", req.ToolName)
		}
	}

	if d.auditSink != nil {
		// A cache hit never reached the tool executor, so its execution
		// time is 0 regardless of how long the gate/cache lookup took.
		auditExecutionMs := elapsed.Milliseconds()
		if cacheHit {
			auditExecutionMs = 0
		}
		row := audit.BuildRow(tool, pol, req.TenantID, req.UserID, req.UserEmail, req.Role.String(),
			args, result, auditExecutionMs, cacheHit, entityType, entityID, now.Unix())
		if err := d.auditSink.Append(ctx, row); err != nil && d.logger != nil {
			d.logger.Logger.WithField("tool", req.ToolName).WithError(err).Warn("dispatch: audit append failed")
		}
	}

	if d.logger != nil {
		d.logger.LogDispatch(ctx, req.ToolName, elapsed, resultError(result))
	}
}

func resultError(result core.Result) error {
	if result.IsOk() {
		return nil
	}
	return result.Err
}

func entityIDFromArgs(args map[string]any) string {
	for _, field := range []string{"account_id", "contact_id", "lead_id", "opportunity_id", "activity_id", "note_id"} {
		if v, ok := args[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
