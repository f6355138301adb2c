// Package filter implements the Field Filter (C8): role-gated redaction
// of sensitive entity fields from a dispatch result, recursing through
// nested objects and arrays.
package filter

import (
	"regexp"

	"github.com/aishacrm/braid/internal/engine/core"
)

// sensitiveField names a field and the minimum role rank allowed to see
// it.
type sensitiveField struct {
	field   string
	minRole core.Role
}

// rulesByEntity is the sensitivity table: entity type -> redacted fields.
var rulesByEntity = map[string][]sensitiveField{
	"employee": {
		{"ssn", core.RoleAdmin},
		{"salary", core.RoleAdmin},
		{"bank_account", core.RoleAdmin},
	},
	"user": {
		{"password_hash", core.RoleSystem},
		{"mfa_secret", core.RoleSystem},
	},
	"account": {
		{"credit_limit", core.RoleManager},
		{"tax_id", core.RoleManager},
	},
	"contact": {
		{"personal_email", core.RoleManager},
		{"phone_mobile", core.RoleManager},
	},
	"lead": {
		{"score_internal_notes", core.RoleManager},
	},
	"opportunity": {
		{"margin", core.RoleManager},
		{"discount_approved_by", core.RoleManager},
	},
	"activity": {
		{"internal_notes", core.RoleManager},
	},
	"document": {
		{"internal_only", core.RoleAdmin},
	},
	"bizdev": {
		{"commission_rate", core.RoleAdmin},
	},
	"note": {
		{"private", core.RoleManager},
	},
}

// entityPattern recognizes an entity type from a tool name, mirroring the
// registry's tool-class naming convention.
var entityPattern = regexp.MustCompile(`^(?:create|update|delete|qualify|convert|list|get|search)_(employee|user|account|contact|lead|opportunity|activity|document|bizdev|note)`)

const redactedPlaceholder = "[redacted]"

// EntityFromTool returns the entity type a tool name implies, or "" if
// none of the known entity patterns match.
func EntityFromTool(toolName string) string {
	m := entityPattern.FindStringSubmatch(toolName)
	if m == nil {
		return ""
	}
	return m[1]
}

// Apply redacts every field in rulesByEntity[entityType] the caller's
// role does not meet the minimum rank for, recursing through nested
// maps and slices so a collection result (e.g. a list of leads) is
// filtered element by element. value is not mutated; a filtered copy is
// returned. entityType == "" returns value unchanged.
func Apply(value any, entityType string, role core.Role) any {
	rules, ok := rulesByEntity[entityType]
	if !ok {
		return value
	}
	return redact(value, rules, role)
}

func redact(value any, rules []sensitiveField, role core.Role) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		for _, rule := range rules {
			if _, present := out[rule.field]; present && !role.MeetsMinimum(rule.minRole) {
				out[rule.field] = redactedPlaceholder
			}
		}
		for k, val := range out {
			switch val.(type) {
			case map[string]any, []any:
				out[k] = redact(val, rules, role)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(item, rules, role)
		}
		return out
	default:
		return value
	}
}

// ApplyToResult filters result.Value in place (functionally) when the
// result is Ok; error results pass through unchanged since they carry no
// entity data.
func ApplyToResult(result core.Result, toolName string, role core.Role) core.Result {
	if !result.IsOk() {
		return result
	}
	entityType := EntityFromTool(toolName)
	if entityType == "" {
		return result
	}
	return core.Ok(Apply(result.Value, entityType, role))
}
