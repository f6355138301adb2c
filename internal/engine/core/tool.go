package core

// Tool is a single registered operation the Engine can dispatch. It is
// identified by Name and immutable once registered.
type Tool struct {
	// Name is the tool identifier as the caller names it, e.g. "list_leads".
	Name string `json:"name"`

	// SourceFile is the file the external Schema Parser read this tool's
	// definition from. Carried through to audit rows for traceability.
	SourceFile string `json:"source_file"`

	// FunctionName is the backing function name passed to the Tool Executor.
	FunctionName string `json:"function_name"`

	// Policy names the Policy (C1) this tool is governed by.
	Policy string `json:"policy"`
}

// TenantRecord identifies the tenant the caller is authorized for. Engine
// components always use ID, never TenantSlug, in outbound calls and audit
// rows.
type TenantRecord struct {
	ID         string `json:"id"`
	TenantSlug string `json:"tenant_slug"`
}

// AccessToken is the opaque authorization artifact the Engine requires on
// every dispatch. It is produced by an external authenticator after tenant
// authorization passes. The Engine's own check, Valid, reads only Verified
// and Source.
type AccessToken struct {
	Verified  bool   `json:"verified"`
	Source    string `json:"source"`
	UserRole  Role   `json:"user_role"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
}

// TokenSourceTenantAuthorization is the only Source value the Engine
// accepts as valid.
const TokenSourceTenantAuthorization = "tenant-authorization"

// Valid reports whether the token passes the Engine's only two checks:
// verified=true and source="tenant-authorization".
func (t AccessToken) Valid() bool {
	return t.Verified && t.Source == TokenSourceTenantAuthorization
}
