// Package canon implements the Argument Canonicalizer (C3): tenant
// injection, filter-unwrap, scalar normalization, updates-object
// rehydration, and object-to-positional conversion.
package canon

import (
	"encoding/json"
	"strconv"

	"github.com/aishacrm/braid/infrastructure/logging"
)

// filterUnwrapSet names the tools whose args.filter submap is shallow-
// merged into args and then discarded.
var filterUnwrapSet = map[string]bool{
	"list_leads":                  true,
	"list_opportunities_by_stage": true,
	"list_accounts":               true,
	"search_contacts":             true,
}

// updateStyleTools names the tools whose args.updates submap gets
// tenant_id rehydrated into it.
var updateStyleTools = map[string]bool{
	"update_activity":      true,
	"update_lead":          true,
	"update_account":       true,
	"update_contact":       true,
	"update_opportunity":   true,
	"update_note":          true,
	"update_bizdev_source": true,
}

var statusEraseValues = map[string]bool{
	"all": true,
	"any": true,
	"":    true,
}

// Canonicalizer holds nothing but a logger; it is stateless and safe to
// share across goroutines.
type Canonicalizer struct {
	logger *logging.Logger
}

// New builds a Canonicalizer.
func New(logger *logging.Logger) *Canonicalizer {
	return &Canonicalizer{logger: logger}
}

// Canonicalize runs a five-step normalization against a clone of raw,
// returning a new map. Calling Canonicalize again against the output is a
// no-op: the transform is idempotent.
func (c *Canonicalizer) Canonicalize(toolName string, raw map[string]any, tenantUUID string) map[string]any {
	args := cloneMap(raw)

	// 1. Tenant injection/override.
	if existing, ok := args["tenant"]; ok {
		if s, ok := existing.(string); !ok || s != tenantUUID {
			if c.logger != nil {
				c.logger.Logger.WithField("tool", toolName).WithField("supplied_tenant", existing).
					Warn("canon: overriding caller-supplied tenant with authorized tenant")
			}
		}
	}
	args["tenant"] = tenantUUID

	// 2. Filter-unwrap.
	if filterUnwrapSet[toolName] {
		if filter, ok := args["filter"].(map[string]any); ok {
			for k, v := range filter {
				args[k] = v
			}
			delete(args, "filter")
		}
	}

	// 3. Scalar limit coercion.
	if limitStr, ok := args["limit"].(string); ok {
		if n, err := strconv.Atoi(limitStr); err == nil {
			args["limit"] = n
		}
	}

	// 4. Status erasure.
	if status, ok := args["status"].(string); ok && statusEraseValues[status] {
		delete(args, "status")
	}

	// 5. Updates rehydration.
	if updateStyleTools[toolName] {
		switch u := args["updates"].(type) {
		case string:
			var parsed map[string]any
			if err := json.Unmarshal([]byte(u), &parsed); err != nil {
				if c.logger != nil {
					c.logger.Logger.WithField("tool", toolName).WithError(err).
						Warn("canon: failed to parse updates string as JSON")
				}
			} else {
				parsed["tenant_id"] = tenantUUID
				args["updates"] = parsed
			}
		case map[string]any:
			u["tenant_id"] = tenantUUID
			args["updates"] = u
		}
	}

	return args
}

// Positional converts a canonical argument map into an ordered slice per
// paramOrder. Missing parameters become "unset". When paramOrder is empty
// the whole map is passed through as a single positional value.
func Positional(args map[string]any, paramOrder []string) []any {
	if len(paramOrder) == 0 {
		return []any{args}
	}
	out := make([]any, len(paramOrder))
	for i, name := range paramOrder {
		if v, ok := args[name]; ok {
			out[i] = v
		} else {
			out[i] = "unset"
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
		} else {
			out[k] = v
		}
	}
	return out
}
