package graph

import "github.com/aishacrm/braid/internal/engine/core"

// Seed returns the static dependency graph over the baseline tool
// registry. qualify_lead -> convert_lead -> create_account ->
// create_opportunity follows the lead_to_opportunity chain, whose
// conversion step yields the account the opportunity is opened against;
// create_account -> create_contact mirrors account_with_contact;
// delete_account depends on create_account since it can only ever act on
// an account that exists.
func Seed() []core.GraphNode {
	return []core.GraphNode{
		{Name: "list_leads", Category: "leads", Effects: []core.Effect{core.EffectRead}},
		{Name: "qualify_lead", Category: "leads", Dependencies: []string{"list_leads"}, Effects: []core.Effect{core.EffectUpdate}},
		{Name: "convert_lead", Category: "leads", Dependencies: []string{"qualify_lead"}, Effects: []core.Effect{core.EffectUpdate, core.EffectCreate}},
		{Name: "update_lead", Category: "leads", Dependencies: []string{"list_leads"}, Effects: []core.Effect{core.EffectUpdate}},

		{Name: "list_accounts", Category: "accounts", Effects: []core.Effect{core.EffectRead}},
		{Name: "create_account", Category: "accounts", Dependencies: []string{"convert_lead"}, Effects: []core.Effect{core.EffectCreate}},
		{Name: "update_account", Category: "accounts", Dependencies: []string{"create_account"}, Effects: []core.Effect{core.EffectUpdate}},
		{Name: "delete_account", Category: "accounts", Dependencies: []string{"create_account"}, Effects: []core.Effect{core.EffectDelete}},

		{Name: "search_contacts", Category: "contacts", Effects: []core.Effect{core.EffectRead}},
		{Name: "create_contact", Category: "contacts", Dependencies: []string{"create_account"}, Effects: []core.Effect{core.EffectCreate}},
		{Name: "update_contact", Category: "contacts", Dependencies: []string{"create_contact"}, Effects: []core.Effect{core.EffectUpdate}},

		{Name: "list_opportunities_by_stage", Category: "opportunities", Effects: []core.Effect{core.EffectRead}},
		{Name: "create_opportunity", Category: "opportunities", Dependencies: []string{"create_account"}, Effects: []core.Effect{core.EffectCreate}},
		{Name: "update_opportunity", Category: "opportunities", Dependencies: []string{"create_opportunity"}, Effects: []core.Effect{core.EffectUpdate}},

		{Name: "update_activity", Category: "activities", Effects: []core.Effect{core.EffectUpdate}},
		{Name: "update_note", Category: "notes", Effects: []core.Effect{core.EffectUpdate}},
		{Name: "update_bizdev_source", Category: "bizdev", Effects: []core.Effect{core.EffectUpdate}},
	}
}
