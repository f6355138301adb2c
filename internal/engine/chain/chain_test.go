package chain

import (
	"context"
	"fmt"
	"testing"

	braidcache "github.com/aishacrm/braid/infrastructure/cache"
	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/internal/engine/audit"
	"github.com/aishacrm/braid/internal/engine/cachecoord"
	"github.com/aishacrm/braid/internal/engine/canon"
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/counters"
	"github.com/aishacrm/braid/internal/engine/dispatch"
	"github.com/aishacrm/braid/internal/engine/gate"
	"github.com/aishacrm/braid/internal/engine/policy"
	"github.com/aishacrm/braid/internal/engine/registry"
)

// stubExecutor returns a canned core.Result per tool function name,
// defaulting to Ok("default") for anything not configured.
type stubExecutor struct {
	byFunc map[string]core.Result
	calls  map[string]int
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{byFunc: map[string]core.Result{}, calls: map[string]int{}}
}

func (s *stubExecutor) Execute(_ context.Context, _, functionName string, _ core.PolicyContext, _ core.Deps, _ []any, _ core.ExecOptions) core.Result {
	s.calls[functionName]++
	if r, ok := s.byFunc[functionName]; ok {
		return r
	}
	return core.Ok("default")
}

func validToken() core.AccessToken {
	return core.AccessToken{Verified: true, Source: core.TokenSourceTenantAuthorization, UserRole: core.RoleManager}
}

func testCaller() Caller {
	return Caller{TenantID: "tenant-1", UserID: "user-1", UserEmail: "user@example.com", Role: core.RoleManager, Token: validToken()}
}

func testExecutorSetup(executor core.ToolExecutor) (*Executor, *registry.Registry) {
	logger := logging.New("chain-test", "error", "json")
	pols := policy.New()
	reg := registry.Seed()
	c := braidcache.NewCache(braidcache.DefaultConfig())
	g := gate.New(pols, reg, c, logger)
	canonicalizer := canon.New(logger)
	coord := cachecoord.New(cachecoord.NewMemoryBackend(c), logger)
	ctrs := counters.New(c, logger)
	ring := audit.NewRingSink(50)

	d := dispatch.New(reg, pols, g, canonicalizer, coord, ctrs, ring, nil, executor, logger)
	return New(NewRegistry(), reg, d, logger), reg
}

func leadToOpportunityChain() core.ChainDefinition {
	return core.ChainDefinition{
		Name:         "lead_to_opportunity",
		RequiredRole: core.RoleUser,
		Steps: []core.Step{
			{
				ID: "qualify", Tool: "qualify_lead", Required: true,
				Args: func(input map[string]any, _ core.ChainContext) (map[string]any, error) {
					return map[string]any{"lead_id": input["lead_id"]}, nil
				},
			},
			{
				ID: "convert", Tool: "convert_lead", Required: true,
				Args: func(input map[string]any, _ core.ChainContext) (map[string]any, error) {
					return map[string]any{"lead_id": input["lead_id"], "opportunity_name": "New Deal", "amount": 1000}, nil
				},
			},
			{
				ID: "opportunity", Tool: "create_opportunity", Required: false,
				Args: func(_ map[string]any, ctx core.ChainContext) (map[string]any, error) {
					converted := ctx["convert"].Value.(map[string]any)
					account := converted["account"].(map[string]any)
					return map[string]any{"account_id": account["id"], "name": "New Deal", "amount": 1000}, nil
				},
			},
		},
	}
}

func accountWithContactChain() core.ChainDefinition {
	return core.ChainDefinition{
		Name:         "account_with_contact",
		RequiredRole: core.RoleUser,
		Steps: []core.Step{
			{
				ID: "account", Tool: "create_account", Required: true,
				Args: func(input map[string]any, _ core.ChainContext) (map[string]any, error) {
					return map[string]any{"name": input["account_name"]}, nil
				},
			},
			{
				ID: "contact", Tool: "create_contact", Required: true,
				Args: func(_ map[string]any, ctx core.ChainContext) (map[string]any, error) {
					acct := ctx["account"].Value.(map[string]any)
					return map[string]any{"account_id": acct["id"], "name": "New Contact"}, nil
				},
			},
		},
		Rollback: []core.RollbackStep{
			{
				Tool: "delete_account",
				Condition: func(ctx core.ChainContext) bool {
					r, ok := ctx["account"]
					return ok && r.IsOk()
				},
				Args: func(ctx core.ChainContext) (map[string]any, error) {
					acct := ctx["account"].Value.(map[string]any)
					return map[string]any{"account_id": acct["id"], "confirmed": true}, nil
				},
			},
			{
				Tool: "delete_contact",
				Condition: func(ctx core.ChainContext) bool {
					r, ok := ctx["contact"]
					return ok && r.IsOk()
				},
				Args: func(ctx core.ChainContext) (map[string]any, error) {
					contact := ctx["contact"].Value.(map[string]any)
					return map[string]any{"contact_id": contact["id"], "confirmed": true}, nil
				},
			},
		},
	}
}

func TestExecuteUnknownChain(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)

	result := e.Execute(context.Background(), "no_such_chain", map[string]any{}, testCaller())
	if result.IsOk() || result.Err == nil || result.Err.Kind != core.ErrChainValidationError {
		t.Fatalf("expected ChainValidationError, got %+v", result)
	}
}

func TestExecuteDynamicChainWithoutGeneratorFails(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{Name: "broken_dynamic", Dynamic: true, RequiredRole: core.RoleUser})

	result := e.Execute(context.Background(), "broken_dynamic", map[string]any{}, testCaller())
	if result.IsOk() || result.Err.Kind != core.ErrChainValidationError {
		t.Fatalf("expected ChainValidationError, got %+v", result)
	}
}

func TestExecuteDynamicChainEmptyGeneratorFails(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{
		Name: "empty_dynamic", Dynamic: true, RequiredRole: core.RoleUser,
		GenerateSteps: func(map[string]any) []core.Step { return nil },
	})

	result := e.Execute(context.Background(), "empty_dynamic", map[string]any{}, testCaller())
	if result.IsOk() || result.Err.Kind != core.ErrEmptyChain {
		t.Fatalf("expected EmptyChain, got %+v", result)
	}
}

func TestExecuteStepReferencesUnknownTool(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{
		Name: "bad_tool", RequiredRole: core.RoleUser,
		Steps: []core.Step{{ID: "x", Tool: "frobnicate", Required: true, Args: func(map[string]any, core.ChainContext) (map[string]any, error) { return map[string]any{}, nil }}},
	})

	result := e.Execute(context.Background(), "bad_tool", map[string]any{}, testCaller())
	if result.IsOk() || result.Err.Kind != core.ErrChainValidationError {
		t.Fatalf("expected ChainValidationError, got %+v", result)
	}
}

func TestExecuteInsufficientRole(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{
		Name: "needs_admin", RequiredRole: core.RoleAdmin,
		Steps: []core.Step{{ID: "x", Tool: "update_lead", Required: true, Args: func(map[string]any, core.ChainContext) (map[string]any, error) { return map[string]any{}, nil }}},
	})

	caller := testCaller()
	caller.Role = core.RoleUser
	result := e.Execute(context.Background(), "needs_admin", map[string]any{}, caller)
	if result.IsOk() || result.Err.Kind != core.ErrInsufficientPermissions {
		t.Fatalf("expected InsufficientPermissions, got %+v", result)
	}
}

func TestExecuteSkipsStepWhenConditionNotMet(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{
		Name: "conditional", RequiredRole: core.RoleUser,
		Steps: []core.Step{
			{
				ID: "gate", Tool: "update_lead", Required: false,
				Condition: func(core.ChainContext) bool { return false },
				Args:      func(map[string]any, core.ChainContext) (map[string]any, error) { return map[string]any{}, nil },
			},
		},
	})

	result := e.Execute(context.Background(), "conditional", map[string]any{}, testCaller())
	if !result.IsOk() {
		t.Fatalf("unexpected failure: %+v", result.Err)
	}
	if len(result.Outcome.ExecutionLog) != 1 || result.Outcome.ExecutionLog[0].Status != core.StepStatusSkipped {
		t.Fatalf("expected one skipped log entry, got %+v", result.Outcome.ExecutionLog)
	}
	if result.Outcome.ExecutionLog[0].Reason != "condition_not_met" {
		t.Errorf("reason = %q, want condition_not_met", result.Outcome.ExecutionLog[0].Reason)
	}
	if executor.calls["updateLead"] != 0 {
		t.Errorf("expected executor not called for skipped step, got %d calls", executor.calls["updateLead"])
	}
}

func TestExecuteLeadToOpportunityOptionalStepFailureStillSucceeds(t *testing.T) {
	executor := newStubExecutor()
	executor.byFunc["qualifyLead"] = core.Ok(map[string]any{"status": "qualified"})
	executor.byFunc["convertLead"] = core.Ok(map[string]any{"account": map[string]any{"id": "A1"}})
	executor.byFunc["createOpportunity"] = core.ErrResult(core.NewError(core.ErrExecutionError, "backing API rejected request"))

	e, _ := testExecutorSetup(executor)
	e.chains.Register(leadToOpportunityChain())

	result := e.Execute(context.Background(), "lead_to_opportunity", map[string]any{"lead_id": "3f9c1a2e-3b4d-4c5e-8f6a-7b8c9d0e1f2a"}, testCaller())
	if !result.IsOk() {
		t.Fatalf("expected overall chain success despite optional step failure, got failure: %+v", result.Failure)
	}
	if len(result.Outcome.ExecutionLog) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(result.Outcome.ExecutionLog))
	}
	last := result.Outcome.ExecutionLog[2]
	if last.ID != "opportunity" || last.Status != core.StepStatusError {
		t.Errorf("expected opportunity step logged as error, got %+v", last)
	}
	if executor.calls["deleteAccount"] != 0 {
		t.Errorf("expected no rollback dispatched for an optional-step failure")
	}
}

func TestExecuteAccountWithContactRequiredFailureRollsBackWithNoCompensatingCalls(t *testing.T) {
	executor := newStubExecutor()
	executor.byFunc["createAccount"] = core.ErrResult(core.NewError(core.ErrExecutionError, "duplicate account name"))

	e, _ := testExecutorSetup(executor)
	e.chains.Register(accountWithContactChain())

	result := e.Execute(context.Background(), "account_with_contact", map[string]any{"account_name": "Acme"}, testCaller())
	if result.IsOk() {
		t.Fatal("expected chain failure")
	}
	if result.Failure == nil {
		t.Fatal("expected Failure populated")
	}
	if result.Failure.FailedStep != "account" {
		t.Errorf("FailedStep = %q, want account", result.Failure.FailedStep)
	}
	if !result.Failure.RolledBack {
		t.Error("expected RolledBack true (rollback processing was attempted)")
	}
	if executor.calls["createContact"] != 0 {
		t.Errorf("expected contact step never to have run, got %d calls", executor.calls["createContact"])
	}
	if executor.calls["deleteAccount"] != 0 {
		t.Errorf("expected no compensating delete_account call since nothing was created, got %d calls", executor.calls["deleteAccount"])
	}
	if executor.calls["deleteContact"] != 0 {
		t.Errorf("expected no compensating delete_contact call since contact never ran, got %d calls", executor.calls["deleteContact"])
	}
}

func TestExecuteArgumentGenerationFailureOnRequiredStepRollsBack(t *testing.T) {
	executor := newStubExecutor()
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{
		Name: "bad_args_required", RequiredRole: core.RoleUser,
		Steps: []core.Step{
			{
				ID: "x", Tool: "update_lead", Required: true,
				Args: func(map[string]any, core.ChainContext) (map[string]any, error) {
					return nil, fmt.Errorf("missing required input field")
				},
			},
		},
	})

	result := e.Execute(context.Background(), "bad_args_required", map[string]any{}, testCaller())
	if result.IsOk() || result.Failure == nil {
		t.Fatalf("expected chain failure, got %+v", result)
	}
	if result.Failure.StepError.Kind != core.ErrArgumentGenerationError {
		t.Errorf("StepError.Kind = %v, want ArgumentGenerationError", result.Failure.StepError.Kind)
	}
	if executor.calls["updateLead"] != 0 {
		t.Errorf("expected executor never called when args fail to build, got %d calls", executor.calls["updateLead"])
	}
}

func TestExecuteArgumentGenerationFailureOnOptionalStepContinues(t *testing.T) {
	executor := newStubExecutor()
	executor.byFunc["updateContact"] = core.Ok("updated")
	e, _ := testExecutorSetup(executor)
	e.chains.Register(core.ChainDefinition{
		Name: "bad_args_optional", RequiredRole: core.RoleUser,
		Steps: []core.Step{
			{
				ID: "bad", Tool: "update_lead", Required: false,
				Args: func(map[string]any, core.ChainContext) (map[string]any, error) {
					return nil, fmt.Errorf("missing field")
				},
			},
			{
				ID: "ok", Tool: "update_contact", Required: true,
				Args: func(map[string]any, core.ChainContext) (map[string]any, error) {
					return map[string]any{"contact_id": "3f9c1a2e-3b4d-4c5e-8f6a-7b8c9d0e1f2a", "updates": map[string]any{}}, nil
				},
			},
		},
	})

	result := e.Execute(context.Background(), "bad_args_optional", map[string]any{}, testCaller())
	if !result.IsOk() {
		t.Fatalf("expected chain to continue past optional arg failure, got failure: %+v", result.Failure)
	}
	if result.Outcome.Context["bad"].IsOk() {
		t.Error("expected bad step's context entry to hold an Err result")
	}
	if result.Outcome.Context["bad"].Err.Kind != core.ErrArgumentGenerationError {
		t.Errorf("expected ArgumentGenerationError in context, got %v", result.Outcome.Context["bad"].Err.Kind)
	}
	if executor.calls["updateContact"] != 1 {
		t.Errorf("expected the following required step to still run, got %d calls", executor.calls["updateContact"])
	}
}
