package policy

import (
	"testing"

	"github.com/aishacrm/braid/internal/engine/core"
)

func TestNewHasSevenPolicies(t *testing.T) {
	tbl := New()
	names := []string{ReadOnly, Write, Delete, AdminOnly, SystemInternal, AISuggestions, ExternalAPI}
	for _, n := range names {
		if _, ok := tbl.Lookup(n); !ok {
			t.Errorf("expected policy %q to exist", n)
		}
	}
}

func TestReadOnlyUnrestricted(t *testing.T) {
	tbl := New()
	if tbl.MinimumRole(ReadOnly) != 0 {
		t.Errorf("MinimumRole(read-only) = %v, want 0 (unrestricted)", tbl.MinimumRole(ReadOnly))
	}
	p, _ := tbl.Lookup(ReadOnly)
	if !p.AllowsRole(core.RoleUser) {
		t.Error("read-only should allow user role")
	}
}

func TestDeleteRequiresManagerPlus(t *testing.T) {
	tbl := New()
	p, _ := tbl.Lookup(Delete)
	if p.AllowsRole(core.RoleUser) {
		t.Error("delete should not allow plain user role")
	}
	if !p.AllowsRole(core.RoleManager) {
		t.Error("delete should allow manager role")
	}
	if tbl.MinimumRole(Delete) != core.RoleManager {
		t.Errorf("MinimumRole(delete) = %v, want RoleManager", tbl.MinimumRole(Delete))
	}
}

func TestSystemInternalOnlySystem(t *testing.T) {
	tbl := New()
	p, _ := tbl.Lookup(SystemInternal)
	if p.AllowsRole(core.RoleAdmin) {
		t.Error("system-internal should not allow admin")
	}
	if !p.AllowsRole(core.RoleSystem) {
		t.Error("system-internal should allow system")
	}
}

func TestRateLimits(t *testing.T) {
	tbl := New()
	cases := map[string]int{
		ReadOnly:       100,
		Write:          50,
		Delete:         20,
		AdminOnly:      30,
		SystemInternal: 200,
		AISuggestions:  40,
		ExternalAPI:    10,
	}
	for name, want := range cases {
		if got := tbl.RateLimit(name); got != want {
			t.Errorf("RateLimit(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestRequiresConfirmation(t *testing.T) {
	tbl := New()
	if !tbl.RequiresConfirmation(Delete) {
		t.Error("delete should require confirmation")
	}
	if !tbl.RequiresConfirmation(AdminOnly) {
		t.Error("admin-only should require confirmation")
	}
	if tbl.RequiresConfirmation(ReadOnly) {
		t.Error("read-only should not require confirmation")
	}
}

func TestLookupUnknown(t *testing.T) {
	tbl := New()
	if _, ok := tbl.Lookup("does-not-exist"); ok {
		t.Error("expected unknown policy to be absent")
	}
	if tbl.MinimumRole("does-not-exist") != 0 {
		t.Error("unknown policy should have 0 minimum role")
	}
	if tbl.RequiresConfirmation("does-not-exist") {
		t.Error("unknown policy should not require confirmation")
	}
}
