// Package registry implements the Tool Registry (C2): the static mapping
// from tool name to its source file, backing function, and policy, plus
// per-tool cache TTLs and per-function parameter order.
package registry

import (
	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/internal/engine/core"
)

// DefaultCacheTTLSeconds is used for any tool with no explicit TTL entry.
const DefaultCacheTTLSeconds = 90

// Registry is treated as immutable once populated (by Seed or Register);
// it is then safe to share without locks.
type Registry struct {
	tools      map[string]core.Tool
	order      []string
	ttls       map[string]int
	paramOrder map[string][]string
}

// New builds an empty Registry. Use Register to populate it, or Seed to
// load the standard tool list when the caller has not supplied its own
// via an external Schema Parser. Parameter shape checking against a
// tool's declared parameters happens in ParamOrder and the Argument
// Canonicalizer; a JSON-Schema-style validator has no schema source of
// its own to validate against here since the Schema Parser owns that.
func New() *Registry {
	return &Registry{
		tools:      make(map[string]core.Tool),
		ttls:       make(map[string]int),
		paramOrder: make(map[string][]string),
	}
}

// Register adds or replaces a tool entry, in registration order for
// List().
func (r *Registry) Register(tool core.Tool) {
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
}

// SetTTL sets the cache TTL, in seconds, for a tool.
func (r *Registry) SetTTL(toolName string, seconds int) {
	r.ttls[toolName] = seconds
}

// SetParamOrder sets the ordered parameter list for a backing function
// name.
func (r *Registry) SetParamOrder(functionName string, params []string) {
	r.paramOrder[functionName] = params
}

// Lookup returns the tool registered under name, if any.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool in registration order.
func (r *Registry) List() []core.Tool {
	out := make([]core.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// PerToolTTL returns the cache TTL, in seconds, for a tool. Tools with no
// explicit entry use DefaultCacheTTLSeconds.
func (r *Registry) PerToolTTL(toolName string) int {
	if ttl, ok := r.ttls[toolName]; ok {
		return ttl
	}
	return DefaultCacheTTLSeconds
}

// ParamOrder returns the ordered parameter list for functionName. The
// second return is false when no entry exists; callers should fall back
// to passing the whole argument map as a single positional value.
func (r *Registry) ParamOrder(functionName string) ([]string, bool) {
	p, ok := r.paramOrder[functionName]
	return p, ok
}

// Validate checks, at startup, that every tool's policy exists in the
// supplied policy table and that every function has a param-order entry.
// Missing entries are logged as warnings, never fatal.
func (r *Registry) Validate(logger *logging.Logger, policyExists func(name string) bool) {
	for _, name := range r.order {
		t := r.tools[name]
		if !policyExists(t.Policy) {
			logger.Logger.WithField("tool", t.Name).WithField("policy", t.Policy).
				Warn("registry: tool references unknown policy")
		}
		if _, ok := r.paramOrder[t.FunctionName]; !ok {
			logger.Logger.WithField("function", t.FunctionName).
				Warn("registry: no param-order entry, will pass args as a single map")
		}
	}
}
