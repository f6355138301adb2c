package core

import "context"

// PolicyContext is the policy table entry merged with the request's tenant
// and user, passed to the Tool Executor.
type PolicyContext struct {
	Policy   Policy
	TenantID string
	UserID   string
}

// Deps are the backend dependencies the Dispatcher hands the Tool Executor
// for a single call.
type Deps struct {
	DataSourceHandle any
	BackendBaseURL   string
	TenantUUID       string
	UserID           string
	InternalToken    string
	CreatedBy        string
}

// ExecOptions are per-call options passed to the Tool Executor. Cache is
// always false: the Engine manages its own cache and never delegates that
// decision to the executor.
type ExecOptions struct {
	Cache   bool
	Timeout int // milliseconds
}

// ToolExecutor is the required external collaborator that actually runs a
// tool's backing function against the business API.
type ToolExecutor interface {
	Execute(ctx context.Context, sourceFile, functionName string, policyCtx PolicyContext, deps Deps, args []any, opts ExecOptions) Result
}

// CacheBackend is the best-effort cache collaborator. Every operation's
// errors are logged by the caller and never promoted to a dispatch
// failure.
type CacheBackend interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, value Result, ttlSeconds int) error
	Increment(ctx context.Context, key string, ttlSeconds int) (int64, error)
	InvalidateTenant(ctx context.Context, tenantUUID, namespace string) error
}

// AuditRow is the structured record the Audit Sink appends for every
// dispatch.
type AuditRow struct {
	Tool            string         `json:"tool"`
	BraidFunction   string         `json:"braid_function"`
	BraidFile       string         `json:"braid_file"`
	Policy          string         `json:"policy"`
	ToolClass       string         `json:"tool_class"`
	TenantID        string         `json:"tenant_id"`
	UserID          string         `json:"user_id,omitempty"`
	UserEmail       string         `json:"user_email,omitempty"`
	UserRole        string         `json:"user_role"`
	InputArgs       map[string]any `json:"input_args"`
	ResultTag       string         `json:"result_tag"`
	ResultValue     any            `json:"result_value,omitempty"`
	ErrorType       string         `json:"error_type,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	CacheHit        bool           `json:"cache_hit"`
	EntityType      string         `json:"entity_type,omitempty"`
	EntityID        string         `json:"entity_id,omitempty"`
	Timestamp       int64          `json:"timestamp"`
}

// AuditStore is the append-only external sink for audit rows.
type AuditStore interface {
	Append(ctx context.Context, row AuditRow) error
}

// ParamOrderSource is the Schema Parser's registry-facing output: the
// ordered parameter list for a function name, produced at startup from the
// tool definition files.
type ParamOrderSource interface {
	ParamOrder(functionName string) ([]string, bool)
}
