package counters

import (
	"testing"

	"github.com/aishacrm/braid/infrastructure/cache"
	"github.com/aishacrm/braid/infrastructure/logging"
)

func testAccumulator() *Accumulator {
	return New(cache.NewCache(cache.DefaultConfig()), logging.New("counters-test", "error", "json"))
}

func TestRecordIncrementsTenantAndGlobalCalls(t *testing.T) {
	a := testAccumulator()
	a.Record("tenant-1", "list_leads", false, false, 100, 1, 1000, 5)

	tenantSnap := a.Read("tenant-1", "minute", 100)
	globalSnap := a.Read("global", "minute", 100)

	tenantCalls := tenantSnap.Value.(Snapshot).Calls
	globalCalls := globalSnap.Value.(Snapshot).Calls
	if tenantCalls != 1 {
		t.Errorf("tenant calls = %d, want 1", tenantCalls)
	}
	if globalCalls != 1 {
		t.Errorf("global calls = %d, want 1", globalCalls)
	}
}

func TestRecordIncrementsErrors(t *testing.T) {
	a := testAccumulator()
	a.Record("tenant-1", "delete_account", true, false, 100, 1, 1000, 5)

	snap := a.Read("tenant-1", "minute", 100).Value.(Snapshot)
	if snap.Errors != 1 {
		t.Errorf("errors = %d, want 1", snap.Errors)
	}
	if snap.SuccessRatePct != 0 {
		t.Errorf("success rate = %v, want 0", snap.SuccessRatePct)
	}
}

func TestRecordIncrementsCacheHits(t *testing.T) {
	a := testAccumulator()
	a.Record("tenant-1", "list_leads", false, true, 100, 1, 1000, 5)

	snap := a.Read("tenant-1", "minute", 100).Value.(Snapshot)
	if snap.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", snap.CacheHits)
	}
	if snap.CacheHitRatePct != 100 {
		t.Errorf("cache hit rate = %v, want 100", snap.CacheHitRatePct)
	}
}

func TestSuccessRateWithMixedOutcomes(t *testing.T) {
	a := testAccumulator()
	a.Record("tenant-1", "list_leads", false, false, 100, 1, 1000, 5)
	a.Record("tenant-1", "list_leads", false, false, 100, 1, 1001, 5)
	a.Record("tenant-1", "list_leads", true, false, 100, 1, 1002, 5)

	snap := a.Read("tenant-1", "minute", 100).Value.(Snapshot)
	if snap.Calls != 3 {
		t.Fatalf("calls = %d, want 3", snap.Calls)
	}
	want := 100.0 * 2 / 3
	if snap.SuccessRatePct != want {
		t.Errorf("success rate = %v, want %v", snap.SuccessRatePct, want)
	}
}

func TestHourlyBucketIndependentOfMinute(t *testing.T) {
	a := testAccumulator()
	a.Record("tenant-1", "list_leads", false, false, 100, 5, 1000, 5)

	minuteSnap := a.Read("tenant-1", "minute", 999).Value.(Snapshot)
	hourSnap := a.Read("tenant-1", "hour", 5).Value.(Snapshot)

	if minuteSnap.Calls != 0 {
		t.Errorf("unrelated minute bucket should be empty, got %d", minuteSnap.Calls)
	}
	if hourSnap.Calls != 1 {
		t.Errorf("hour bucket = %d, want 1", hourSnap.Calls)
	}
}

func TestReadUnknownGranularity(t *testing.T) {
	a := testAccumulator()
	result := a.Read("tenant-1", "daily", 1)
	if result.IsOk() {
		t.Fatal("expected error for unknown granularity")
	}
}

func TestReadEmptyBucketHasZeroRates(t *testing.T) {
	a := testAccumulator()
	snap := a.Read("tenant-1", "minute", 42).Value.(Snapshot)
	if snap.Calls != 0 || snap.SuccessRatePct != 0 || snap.CacheHitRatePct != 0 {
		t.Errorf("expected zeroed snapshot, got %+v", snap)
	}
}

func TestRecordAccumulatesLatencySample(t *testing.T) {
	a := testAccumulator()
	a.Record("tenant-1", "list_leads", false, false, 100, 1, 5000, 20)
	a.Record("tenant-1", "list_leads", false, false, 100, 1, 5000, 30)

	got := a.counter.Peek(latencyKey("tenant-1", 5000))
	if got != 50 {
		t.Errorf("tenant latency sum = %d, want 50", got)
	}
	gotGlobal := a.counter.Peek(latencyKey(globalScope, 5000))
	if gotGlobal != 50 {
		t.Errorf("global latency sum = %d, want 50", gotGlobal)
	}
}

func TestNilCounterIsNoOp(t *testing.T) {
	a := New(nil, nil)
	a.Record("tenant-1", "list_leads", false, false, 1, 1, 1000, 5)
	result := a.Read("tenant-1", "minute", 1)
	if !result.IsOk() {
		t.Fatal("expected Ok for nil-counter accumulator")
	}
}
