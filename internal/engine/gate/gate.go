// Package gate implements the Security Gate (C4): registry lookup,
// per-tool validation, role check, rate-limit check/increment, and
// delete-confirmation check, in a strict fixed order. Access-token
// validation runs in the Dispatcher before the gate is consulted.
package gate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/infrastructure/ratelimit"
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/policy"
	"github.com/aishacrm/braid/internal/engine/registry"
)

// uuidFields are the argument keys the gate checks for well-formedness
// when present.
var uuidFields = []string{"account_id", "contact_id", "lead_id", "opportunity_id", "activity_id", "note_id"}

// RateCounter is the external atomic counter with TTL the rate limiter
// reads and increments. infrastructure/cache.Cache satisfies it directly.
type RateCounter interface {
	Peek(key string) int64
	Increment(key string, ttl time.Duration) int64
}

// ratelimitTTL is the fixed window used for the per-tenant rate counter.
const ratelimitTTL = 60 * time.Second

// Gate composes the Policy Table, Tool Registry, and rate counter.
type Gate struct {
	policies *policy.Table
	registry *registry.Registry
	counter  RateCounter
	burst    *ratelimit.RateLimiter
	logger   *logging.Logger
}

// New builds a Gate. It carries its own process-wide token-bucket burst
// guard ahead of the tenant-facing counter, absorbing short spikes across
// every tenant without waiting on the counter's coarser per-minute window.
func New(policies *policy.Table, reg *registry.Registry, counter RateCounter, logger *logging.Logger) *Gate {
	return &Gate{
		policies: policies, registry: reg, counter: counter,
		burst:  ratelimit.New(ratelimit.DefaultConfig()),
		logger: logger,
	}
}

// Check runs registry lookup, validation, role check, rate limit, and
// delete-confirmation checks in order, and returns the resolved Tool and
// Policy on success, or an EngineError identifying which step failed.
// Token validation is the caller's responsibility before Check is
// invoked, since a token failure must emit no side effects at all; Check
// assumes the token has already been validated.
func (g *Gate) Check(toolName string, args map[string]any, role core.Role, tenantUUID, userID string) (core.Tool, core.Policy, *core.EngineError) {
	// 2. Registry lookup.
	tool, ok := g.registry.Lookup(toolName)
	if !ok {
		return core.Tool{}, core.Policy{}, core.NewError(core.ErrUnknownTool, fmt.Sprintf("unknown tool %q", toolName))
	}

	pol, ok := g.policies.Lookup(tool.Policy)
	if !ok {
		return core.Tool{}, core.Policy{}, core.NewError(core.ErrUnknownTool, fmt.Sprintf("tool %q references unregistered policy %q", toolName, tool.Policy))
	}

	// 3. Validation (tenant only; per-field format checks run after the
	// role check below, so an opaque but unauthorized id still resolves
	// to InsufficientPermissions rather than a format complaint).
	if tenantUUID == "" {
		return core.Tool{}, core.Policy{}, core.NewError(core.ErrValidationError, "tenant uuid is required").WithField("tenant")
	}

	// 4. Role (literal membership, not rank-based).
	if !pol.AllowsRole(role) {
		return core.Tool{}, core.Policy{}, core.NewError(core.ErrInsufficientPermissions,
			fmt.Sprintf("role %q is not permitted for policy %q", role, pol.Name))
	}

	// 5. Rate limit.
	if err := g.checkRateLimit(tenantUUID, userID, pol); err != nil {
		return core.Tool{}, core.Policy{}, err
	}

	// 6. Delete confirmation: covers both a tool whose own policy is
	// Delete and any policy requiring confirmation whose tool name
	// contains "delete". Runs before per-field format validation, since an
	// unconfirmed delete must surface as ConfirmationRequired even when
	// its id argument is opaque.
	isDelete := pol.Name == policy.Delete
	if (isDelete || (pol.RequiresConfirmation && containsDelete(toolName))) && !confirmed(args) {
		return core.Tool{}, core.Policy{}, core.NewError(core.ErrConfirmationRequired,
			fmt.Sprintf("tool %q requires explicit confirmation", toolName)).WithOperation(toolName)
	}

	// 7. Per-field format validation.
	if err := validateUUIDFields(args); err != nil {
		return core.Tool{}, core.Policy{}, err
	}

	return tool, pol, nil
}

func (g *Gate) checkRateLimit(tenantUUID, userID string, pol core.Policy) *core.EngineError {
	if g.burst != nil && g.burst.LimitExceeded() {
		return core.NewError(core.ErrRateLimitExceeded, "too many requests across the process, please slow down").
			WithCode(fmt.Sprintf("retryAfter=%d", int(time.Second.Seconds())))
	}

	key := "braid:ratelimit:" + tenantUUID + ":" + userID + ":" + pol.ToolClass

	if g.counter == nil {
		return nil
	}

	current := g.counter.Peek(key)
	if int(current) >= pol.RatePerMinute {
		return core.NewError(core.ErrRateLimitExceeded, "rate limit exceeded").
			WithCode(fmt.Sprintf("retryAfter=%d", int(ratelimitTTL.Seconds())))
	}
	g.counter.Increment(key, ratelimitTTL)
	return nil
}

func confirmed(args map[string]any) bool {
	if v, ok := args["confirmed"].(bool); ok && v {
		return true
	}
	if v, ok := args["force"].(bool); ok && v {
		return true
	}
	return false
}

func containsDelete(toolName string) bool {
	for i := 0; i+len("delete") <= len(toolName); i++ {
		if toolName[i:i+len("delete")] == "delete" {
			return true
		}
	}
	return false
}

func validateUUIDFields(args map[string]any) *core.EngineError {
	for _, field := range uuidFields {
		v, ok := args[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return core.NewError(core.ErrValidationError, fmt.Sprintf("%s must be a string", field)).WithField(field)
		}
		if s == "" {
			continue
		}
		if _, err := uuid.Parse(s); err != nil {
			return core.NewError(core.ErrValidationError, fmt.Sprintf("%s is not a valid uuid", field)).WithField(field)
		}
	}
	return nil
}
