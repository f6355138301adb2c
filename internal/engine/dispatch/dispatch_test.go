package dispatch

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	braidcache "github.com/aishacrm/braid/infrastructure/cache"
	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/infrastructure/metrics"
	"github.com/aishacrm/braid/internal/engine/audit"
	"github.com/aishacrm/braid/internal/engine/cachecoord"
	"github.com/aishacrm/braid/internal/engine/canon"
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/counters"
	"github.com/aishacrm/braid/internal/engine/gate"
	"github.com/aishacrm/braid/internal/engine/policy"
	"github.com/aishacrm/braid/internal/engine/registry"
)

type fakeExecutor struct {
	result core.Result
	calls  int
	panics bool
}

func (f *fakeExecutor) Execute(_ context.Context, _, _ string, _ core.PolicyContext, _ core.Deps, _ []any, _ core.ExecOptions) core.Result {
	f.calls++
	if f.panics {
		panic("executor exploded")
	}
	return f.result
}

func validToken() core.AccessToken {
	return core.AccessToken{Verified: true, Source: core.TokenSourceTenantAuthorization, UserRole: core.RoleManager}
}

func testDispatcher(executor core.ToolExecutor) *Dispatcher {
	logger := logging.New("dispatch-test", "error", "json")
	pols := policy.New()
	reg := registry.Seed()
	c := braidcache.NewCache(braidcache.DefaultConfig())
	g := gate.New(pols, reg, c, logger)
	canonicalizer := canon.New(logger)
	coord := cachecoord.New(cachecoord.NewMemoryBackend(c), logger)
	ctrs := counters.New(c, logger)
	ring := audit.NewRingSink(50)

	return New(reg, pols, g, canonicalizer, coord, ctrs, ring, nil, executor, logger)
}

func TestExecuteTokenInvalidNoSideEffects(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok("unreachable")}
	d := testDispatcher(executor)

	result := d.Execute(context.Background(), Request{
		ToolName: "list_leads",
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleUser,
		Token:    core.AccessToken{Verified: false},
	})

	if result.IsOk() || result.Err.Kind != core.ErrAuthorizationError {
		t.Fatalf("expected AuthorizationError, got %v", result.Err)
	}
	if executor.calls != 0 {
		t.Errorf("expected executor not called on token failure, got %d calls", executor.calls)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok("x")}
	d := testDispatcher(executor)

	result := d.Execute(context.Background(), Request{
		ToolName: "frobnicate",
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleUser,
		Token:    validToken(),
	})

	if result.IsOk() || result.Err.Kind != core.ErrUnknownTool {
		t.Fatalf("expected UnknownTool, got %v", result.Err)
	}
}

func TestExecuteSuccessfulReadOnlyCallIsCachedOnSecondCall(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok(map[string]any{"leads": []any{"l1"}})}
	d := testDispatcher(executor)

	req := Request{
		ToolName: "list_leads",
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleManager,
		Token:    validToken(),
	}

	first := d.Execute(context.Background(), req)
	if !first.IsOk() {
		t.Fatalf("unexpected error: %v", first.Err)
	}
	second := d.Execute(context.Background(), req)
	if !second.IsOk() {
		t.Fatalf("unexpected error on cached call: %v", second.Err)
	}

	if executor.calls != 1 {
		t.Errorf("expected executor called once (second served from cache), got %d calls", executor.calls)
	}
}

func TestExecuteDeleteRequiresConfirmation(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok("deleted")}
	d := testDispatcher(executor)

	result := d.Execute(context.Background(), Request{
		ToolName: "delete_account",
		Args:     map[string]any{"account_id": "a1"},
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleManager,
		Token:    validToken(),
	})

	if result.IsOk() {
		t.Fatal("expected confirmation-required failure")
	}
	if executor.calls != 0 {
		t.Errorf("expected executor not called without confirmation, got %d calls", executor.calls)
	}
}

func TestExecuteMutationInvalidatesCache(t *testing.T) {
	listExecutor := &fakeExecutor{result: core.Ok(map[string]any{"leads": []any{"l1"}})}
	d := testDispatcher(listExecutor)

	listReq := Request{ToolName: "list_leads", TenantID: "tenant-1", UserID: "user-1", Role: core.RoleManager, Token: validToken()}
	d.Execute(context.Background(), listReq)
	d.Execute(context.Background(), listReq)
	if listExecutor.calls != 1 {
		t.Fatalf("expected cache hit before mutation, executor calls = %d", listExecutor.calls)
	}

	d.executor = &fakeExecutor{result: core.Ok("updated")}
	updateReq := Request{
		ToolName: "update_lead",
		Args:     map[string]any{"lead_id": "3f9c1a2e-3b4d-4c5e-8f6a-7b8c9d0e1f2a"},
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleManager,
		Token:    validToken(),
	}
	if result := d.Execute(context.Background(), updateReq); !result.IsOk() {
		t.Fatalf("unexpected error from update: %v", result.Err)
	}

	d.executor = listExecutor
	d.Execute(context.Background(), listReq)
	if listExecutor.calls != 2 {
		t.Errorf("expected cache invalidated by mutation, executor calls = %d", listExecutor.calls)
	}
}

func TestExecuteExecutorPanicBecomesExecutionError(t *testing.T) {
	executor := &fakeExecutor{panics: true}
	d := testDispatcher(executor)

	result := d.Execute(context.Background(), Request{
		ToolName: "create_account",
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleManager,
		Token:    validToken(),
	})

	if result.IsOk() || result.Err.Kind != core.ErrExecutionError {
		t.Fatalf("expected ExecutionError, got %v", result.Err)
	}
}

func TestExecuteFiltersSensitiveFields(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok(map[string]any{"id": "a1", "credit_limit": 9000})}
	d := testDispatcher(executor)

	result := d.Execute(context.Background(), Request{
		ToolName: "update_account",
		Args:     map[string]any{"account_id": "3f9c1a2e-3b4d-4c5e-8f6a-7b8c9d0e1f2a", "updates": map[string]any{"name": "Acme"}},
		TenantID: "tenant-1",
		UserID:   "user-1",
		Role:     core.RoleUser,
		Token:    validToken(),
	})

	if !result.IsOk() {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	m := result.Value.(map[string]any)
	if m["credit_limit"] == 9000 {
		t.Error("expected credit_limit redacted for user role")
	}
}

func TestBatchSequentialPreservesOrder(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok("x")}
	d := testDispatcher(executor)

	calls := []Call{
		{Request: Request{ToolName: "list_leads", TenantID: "tenant-1", UserID: "user-1", Role: core.RoleManager, Token: validToken()}},
		{Request: Request{ToolName: "frobnicate", TenantID: "tenant-1", UserID: "user-1", Role: core.RoleManager, Token: validToken()}},
	}
	results := d.Batch(context.Background(), calls, BatchSequential)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results[0].IsOk() {
		t.Errorf("results[0] unexpected error: %v", results[0].Err)
	}
	if results[1].IsOk() || results[1].Err.Kind != core.ErrUnknownTool {
		t.Errorf("results[1] = %v, want UnknownTool", results[1].Err)
	}
}

func TestBatchParallelReturnsAllResults(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok("x")}
	d := testDispatcher(executor)

	var calls []Call
	for i := 0; i < 20; i++ {
		calls = append(calls, Call{Request: Request{ToolName: "list_leads", TenantID: "tenant-1", UserID: "user-1", Role: core.RoleManager, Token: validToken()}})
	}
	results := d.Batch(context.Background(), calls, BatchParallel)
	if len(results) != 20 {
		t.Fatalf("len(results) = %d, want 20", len(results))
	}
	for i, r := range results {
		if !r.IsOk() {
			t.Errorf("result %d unexpected error: %v", i, r.Err)
		}
	}
}

func TestExecuteAuditsSuccessfulReadOnlyDispatchRegardlessOfPolicy(t *testing.T) {
	logger := logging.New("dispatch-test", "error", "json")
	pols := policy.New()
	reg := registry.Seed()
	c := braidcache.NewCache(braidcache.DefaultConfig())
	g := gate.New(pols, reg, c, logger)
	canonicalizer := canon.New(logger)
	coord := cachecoord.New(cachecoord.NewMemoryBackend(c), logger)
	ctrs := counters.New(c, logger)
	ring := audit.NewRingSink(50)

	executor := &fakeExecutor{result: core.Ok(map[string]any{"leads": []any{"l1"}})}
	d := New(reg, pols, g, canonicalizer, coord, ctrs, ring, nil, executor, logger)

	req := Request{ToolName: "list_leads", TenantID: "tenant-1", UserID: "user-1", Role: core.RoleManager, Token: validToken()}

	if result := d.Execute(context.Background(), req); !result.IsOk() {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	rows := ring.Recent(10)
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row after the first (uncached) call, got %d", len(rows))
	}
	if rows[0].CacheHit {
		t.Error("expected CacheHit false on the first call")
	}

	// Second call is served from cache; read-only policy carries no
	// AuditRequired flag, but the row must still be written.
	if result := d.Execute(context.Background(), req); !result.IsOk() {
		t.Fatalf("unexpected error on cached call: %v", result.Err)
	}
	rows = ring.Recent(10)
	if len(rows) != 2 {
		t.Fatalf("expected 2 audit rows after the cached call, got %d", len(rows))
	}
	if !rows[1].CacheHit {
		t.Error("expected CacheHit true on the cached call")
	}
	if rows[1].ExecutionTimeMs != 0 {
		t.Errorf("expected ExecutionTimeMs 0 on a cache hit, got %d", rows[1].ExecutionTimeMs)
	}
}

func TestExecuteRecordsPrometheusMetricsWhenAttached(t *testing.T) {
	executor := &fakeExecutor{result: core.Ok(map[string]any{"id": "a1"})}
	d := testDispatcher(executor)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry("dispatch-test", reg)
	d.WithMetrics(m)

	d.Execute(context.Background(), Request{
		ToolName: "list_leads", TenantID: "tenant-1", UserID: "user-1", Role: core.RoleManager, Token: validToken(),
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "braid_dispatch_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected braid_dispatch_total to have been recorded")
	}
}
