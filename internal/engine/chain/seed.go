package chain

import (
	"fmt"

	"github.com/aishacrm/braid/internal/engine/core"
)

// resultAsMap extracts a step's Ok value as a map, returning an empty map
// for anything else so a downstream Args func degrades to missing fields
// rather than a panic.
func resultAsMap(r core.Result) map[string]any {
	if !r.IsOk() {
		return map[string]any{}
	}
	m, ok := r.Value.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func nestedMap(m map[string]any, key string) map[string]any {
	v, ok := m[key].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return v
}

// Seed registers the baseline chain definitions.
func Seed() *Registry {
	r := NewRegistry()
	r.Register(leadToOpportunity())
	r.Register(accountWithContact())
	return r
}

// leadToOpportunity qualifies a lead, converts it to an account, then
// opens an opportunity against that account. The opportunity step is
// optional: a conversion that succeeds but fails to land an opportunity
// is still a net-positive outcome worth keeping.
func leadToOpportunity() core.ChainDefinition {
	return core.ChainDefinition{
		Name:         "lead_to_opportunity",
		Description:  "Qualify a lead, convert it to an account, and open an opportunity.",
		RequiredRole: core.RoleManager,
		Steps: []core.Step{
			{
				ID:       "qualify",
				Tool:     "qualify_lead",
				Required: true,
				Args: func(input map[string]any, _ core.ChainContext) (map[string]any, error) {
					leadID, _ := input["lead_id"].(string)
					if leadID == "" {
						return nil, fmt.Errorf("lead_id is required")
					}
					return map[string]any{"tenant": input["tenant"], "lead_id": leadID}, nil
				},
			},
			{
				ID:       "convert",
				Tool:     "convert_lead",
				Required: true,
				Args: func(input map[string]any, ctx core.ChainContext) (map[string]any, error) {
					leadID, _ := input["lead_id"].(string)
					return map[string]any{"tenant": input["tenant"], "lead_id": leadID}, nil
				},
			},
			{
				ID:       "opportunity",
				Tool:     "create_opportunity",
				Required: false,
				Args: func(input map[string]any, ctx core.ChainContext) (map[string]any, error) {
					account := nestedMap(resultAsMap(ctx["convert"]), "account")
					accountID, _ := account["id"].(string)
					if accountID == "" {
						return nil, fmt.Errorf("conversion produced no account id")
					}
					return map[string]any{
						"tenant":     input["tenant"],
						"account_id": accountID,
						"name":       input["opportunity_name"],
						"amount":     input["amount"],
					}, nil
				},
			},
		},
	}
}

// accountWithContact creates an account and a primary contact under it,
// rolling back the account if the contact step fails.
func accountWithContact() core.ChainDefinition {
	return core.ChainDefinition{
		Name:         "account_with_contact",
		Description:  "Create an account and its primary contact together.",
		RequiredRole: core.RoleManager,
		Steps: []core.Step{
			{
				ID:       "account",
				Tool:     "create_account",
				Required: true,
				Args: func(input map[string]any, _ core.ChainContext) (map[string]any, error) {
					name, _ := input["account_name"].(string)
					if name == "" {
						return nil, fmt.Errorf("account_name is required")
					}
					return map[string]any{"tenant": input["tenant"], "name": name}, nil
				},
			},
			{
				ID:       "contact",
				Tool:     "create_contact",
				Required: true,
				Args: func(input map[string]any, ctx core.ChainContext) (map[string]any, error) {
					account := resultAsMap(ctx["account"])
					accountID, _ := account["id"].(string)
					if accountID == "" {
						return nil, fmt.Errorf("account creation produced no account id")
					}
					return map[string]any{
						"tenant":     input["tenant"],
						"account_id": accountID,
						"name":       input["contact_name"],
						"email":      input["contact_email"],
					}, nil
				},
			},
		},
		Rollback: []core.RollbackStep{
			{
				Tool: "delete_account",
				Condition: func(ctx core.ChainContext) bool {
					return ctx["account"].IsOk()
				},
				Args: func(ctx core.ChainContext) (map[string]any, error) {
					account := resultAsMap(ctx["account"])
					accountID, _ := account["id"].(string)
					if accountID == "" {
						return nil, nil
					}
					return map[string]any{"account_id": accountID, "confirmed": true}, nil
				},
			},
		},
	}
}
