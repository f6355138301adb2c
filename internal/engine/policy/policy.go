// Package policy implements the Policy Table (C1): the seven named,
// immutable access bundles every tool is governed by.
package policy

import "github.com/aishacrm/braid/internal/engine/core"

// Standard policy names.
const (
	ReadOnly      = "read-only"
	Write         = "write"
	Delete        = "delete"
	AdminOnly     = "admin-only"
	SystemInternal = "system-internal"
	AISuggestions = "ai-suggestions"
	ExternalAPI   = "external-api"
)

// Table is an immutable, process-wide lookup of the standard policies.
// Safe to share across goroutines without locks once built.
type Table struct {
	policies map[string]core.Policy
}

// New builds the Table with the seven standard policies.
func New() *Table {
	all := func(roles ...core.Role) map[core.Role]bool {
		if len(roles) == 0 {
			return nil
		}
		m := make(map[core.Role]bool, len(roles))
		for _, r := range roles {
			m[r] = true
		}
		return m
	}

	policies := map[string]core.Policy{
		ReadOnly: {
			Name:          ReadOnly,
			ToolClass:     "read_operations",
			RequiredRoles: nil,
			RatePerMinute: 100,
		},
		Write: {
			Name:          Write,
			ToolClass:     "write_operations",
			RequiredRoles: all(core.RoleUser, core.RoleManager, core.RoleAdmin, core.RoleSuperadmin, core.RoleSystem),
			RatePerMinute: 50,
			AuditRequired: true,
		},
		Delete: {
			Name:                 Delete,
			ToolClass:            "delete_operations",
			RequiredRoles:        all(core.RoleManager, core.RoleAdmin, core.RoleSuperadmin, core.RoleSystem),
			RatePerMinute:        20,
			AuditRequired:        true,
			RequiresConfirmation: true,
		},
		AdminOnly: {
			Name:                 AdminOnly,
			ToolClass:            "admin_operations",
			RequiredRoles:        all(core.RoleAdmin, core.RoleSuperadmin, core.RoleSystem),
			RatePerMinute:        30,
			RequiresConfirmation: true,
		},
		SystemInternal: {
			Name:            SystemInternal,
			ToolClass:       "admin_operations",
			RequiredRoles:   all(core.RoleSystem),
			RatePerMinute:   200,
			TenantIsolation: false,
		},
		AISuggestions: {
			Name:          AISuggestions,
			ToolClass:     "ai_operations",
			RequiredRoles: all(core.RoleUser, core.RoleManager, core.RoleAdmin, core.RoleSuperadmin, core.RoleSystem),
			RatePerMinute: 40,
			AuditRequired: true,
		},
		ExternalAPI: {
			Name:          ExternalAPI,
			ToolClass:     "external_operations",
			RequiredRoles: all(core.RoleUser, core.RoleManager, core.RoleAdmin, core.RoleSuperadmin, core.RoleSystem),
			RatePerMinute: 10,
			AuditRequired: true,
		},
	}

	return &Table{policies: policies}
}

// Lookup returns the named policy, or false if it doesn't exist.
func (t *Table) Lookup(name string) (core.Policy, bool) {
	p, ok := t.policies[name]
	return p, ok
}

// MinimumRole returns the minimum role rank required by name, or 0 if the
// policy is unrestricted or unknown.
func (t *Table) MinimumRole(name string) core.Role {
	p, ok := t.policies[name]
	if !ok {
		return 0
	}
	return p.MinimumRole()
}

// IsOperationAllowed reports whether op is permitted under the named
// policy. An unknown policy allows nothing.
func (t *Table) IsOperationAllowed(name, op string) bool {
	p, ok := t.policies[name]
	if !ok {
		return false
	}
	return p.IsOperationAllowed(op)
}

// RateLimit returns the named policy's per-minute rate limit, or 0 if
// unknown.
func (t *Table) RateLimit(name string) int {
	p, ok := t.policies[name]
	if !ok {
		return 0
	}
	return p.RatePerMinute
}

// RequiresConfirmation reports whether the named policy requires explicit
// confirmation for its operations.
func (t *Table) RequiresConfirmation(name string) bool {
	p, ok := t.policies[name]
	if !ok {
		return false
	}
	return p.RequiresConfirmation
}
