package service

import (
	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/models"
)

// PageSpec describes one role-gated dashboard page: who may see it and which list
// screens, statistics blocks and forms it is made of.
type PageSpec struct {
	Path    string        `json:"path"`
	Title   string        `json:"title"`
	Roles   []models.Role `json:"roles"`
	Screens []Screen      `json:"screens"`
	Stats   []StatsKind   `json:"stats"`
	Forms   []form.Name   `json:"forms"`
}

// Page is a page bundle as served to the signed-in user.
type Page struct {
	PageSpec
	Identity models.Identity `json:"identity"`
	Home     string          `json:"home"`
}

var pageSpecs = []PageSpec{
	{
		Path:    "/admin/dashboard",
		Title:   "Accounts",
		Roles:   []models.Role{models.RoleAdmin},
		Screens: []Screen{ScreenAccounts},
		Stats:   []StatsKind{StatsUsers},
		Forms:   []form.Name{form.AccountCreate, form.AccountEdit},
	},
	{
		Path:    "/manager/dashboard",
		Title:   "Campaigns",
		Roles:   []models.Role{models.RoleManager},
		Screens: []Screen{ScreenCampaigns},
		Stats:   []StatsKind{StatsCampaigns, StatsLeads},
		Forms:   []form.Name{form.Campaign},
	},
	{
		Path:    "/sales/dashboard",
		Title:   "Leads",
		Roles:   []models.Role{models.RoleSales},
		Screens: []Screen{ScreenLeads},
		Stats:   []StatsKind{StatsLeads},
		Forms:   []form.Name{form.LeadNote},
	},
	{
		Path:    "/sales/campaigns",
		Title:   "Campaign Sales",
		Roles:   []models.Role{models.RoleSales},
		Screens: []Screen{ScreenCampaigns},
		Stats:   []StatsKind{StatsCampaigns},
	},
	{
		Path:  "/profile",
		Title: "Profile",
		Forms: []form.Name{form.Profile, form.ChangePassword},
	},
}

// PageSpecs lists every dashboard page.
func PageSpecs() []PageSpec {
	return append([]PageSpec(nil), pageSpecs...)
}

// BuildPage assembles the bundle for an actor already admitted by the route guard.
func BuildPage(spec PageSpec, actor Actor) Page {
	return Page{PageSpec: spec, Identity: actor.Identity, Home: actor.Identity.Role.HomePath()}
}
