package registry

import (
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/policy"
)

// seedTool is the compact literal shape used below; Seed expands it into
// a core.Tool plus optional TTL and param-order entries.
type seedTool struct {
	name         string
	functionName string
	sourceFile   string
	policyName   string
	ttlSeconds   int      // 0 = use DefaultCacheTTLSeconds
	params       []string // nil = no param-order entry
}

// seedTools is the baseline registry shipped when no Schema Parser output
// is supplied, covering the CRM's lead/account/contact/opportunity tool
// surface.
var seedTools = []seedTool{
	{
		name: "list_leads", functionName: "listLeads", sourceFile: "tools/leads.ts",
		policyName: policy.ReadOnly, ttlSeconds: 60,
		params: []string{"tenant", "status", "limit", "assigned_to"},
	},
	{
		name: "list_opportunities_by_stage", functionName: "listOpportunitiesByStage", sourceFile: "tools/opportunities.ts",
		policyName: policy.ReadOnly, ttlSeconds: 60,
		params: []string{"tenant", "stage", "limit"},
	},
	{
		name: "list_accounts", functionName: "listAccounts", sourceFile: "tools/accounts.ts",
		policyName: policy.ReadOnly, ttlSeconds: 120,
		params: []string{"tenant", "status", "limit"},
	},
	{
		name: "search_contacts", functionName: "searchContacts", sourceFile: "tools/contacts.ts",
		policyName: policy.ReadOnly, ttlSeconds: 60,
		params: []string{"tenant", "query", "limit"},
	},
	{
		name: "update_activity", functionName: "updateActivity", sourceFile: "tools/activities.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "activity_id", "updates"},
	},
	{
		name: "update_lead", functionName: "updateLead", sourceFile: "tools/leads.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "lead_id", "updates"},
	},
	{
		name: "update_account", functionName: "updateAccount", sourceFile: "tools/accounts.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "account_id", "updates"},
	},
	{
		name: "update_contact", functionName: "updateContact", sourceFile: "tools/contacts.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "contact_id", "updates"},
	},
	{
		name: "update_opportunity", functionName: "updateOpportunity", sourceFile: "tools/opportunities.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "opportunity_id", "updates"},
	},
	{
		name: "update_note", functionName: "updateNote", sourceFile: "tools/notes.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "note_id", "updates"},
	},
	{
		name: "update_bizdev_source", functionName: "updateBizdevSource", sourceFile: "tools/bizdev.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "bizdev_id", "updates"},
	},
	{
		name: "delete_account", functionName: "deleteAccount", sourceFile: "tools/accounts.ts",
		policyName: policy.Delete,
		params:     []string{"tenant", "account_id", "confirmed"},
	},
	{
		name: "qualify_lead", functionName: "qualifyLead", sourceFile: "tools/leads.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "lead_id"},
	},
	{
		name: "convert_lead", functionName: "convertLead", sourceFile: "tools/leads.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "lead_id", "opportunity_name", "amount"},
	},
	{
		name: "create_account", functionName: "createAccount", sourceFile: "tools/accounts.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "name"},
	},
	{
		name: "create_contact", functionName: "createContact", sourceFile: "tools/contacts.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "account_id", "name"},
	},
	{
		name: "create_opportunity", functionName: "createOpportunity", sourceFile: "tools/opportunities.ts",
		policyName: policy.Write,
		params:     []string{"tenant", "account_id", "name", "amount"},
	},
}

// Seed builds a Registry populated with the baseline tool list.
func Seed() *Registry {
	r := New()
	for _, s := range seedTools {
		r.Register(core.Tool{
			Name:         s.name,
			SourceFile:   s.sourceFile,
			FunctionName: s.functionName,
			Policy:       s.policyName,
		})
		if s.ttlSeconds > 0 {
			r.SetTTL(s.name, s.ttlSeconds)
		}
		if s.params != nil {
			r.SetParamOrder(s.functionName, s.params)
		}
	}
	return r
}
