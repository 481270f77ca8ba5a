package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

func TestAuthorize(t *testing.T) {
	sales := &models.Identity{ID: "u1", Role: models.RoleSales}
	admin := &models.Identity{ID: "u2", Role: models.RoleAdmin}

	cases := []struct {
		name    string
		subject Subject
		allowed []models.Role
		want    Decision
	}{
		{"loading wins over missing identity", Subject{Loading: true}, nil, Decision{Kind: Loading}},
		{"anonymous", Subject{}, []models.Role{models.RoleSales}, Decision{Kind: RedirectLogin, Location: "/"}},
		{"identity without role", Subject{Identity: &models.Identity{ID: "u3"}}, nil, Decision{Kind: RedirectLogin, Location: "/"}},
		{"identity without id", Subject{Identity: &models.Identity{Role: models.RoleAdmin}}, nil, Decision{Kind: RedirectLogin, Location: "/"}},
		{"allowed role", Subject{Identity: sales}, []models.Role{models.RoleManager, models.RoleSales}, Decision{Kind: Render}},
		{"any role", Subject{Identity: admin}, nil, Decision{Kind: Render}},
		{"wrong role goes home", Subject{Identity: sales}, []models.Role{models.RoleAdmin}, Decision{Kind: RedirectHome, Location: "/sales/dashboard"}},
		{"admin on sales screen", Subject{Identity: admin}, []models.Role{models.RoleSales}, Decision{Kind: RedirectHome, Location: "/admin/dashboard"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Authorize(tc.subject, tc.allowed...)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecisionRedirect(t *testing.T) {
	assert.True(t, Decision{Kind: RedirectLogin}.Redirect())
	assert.True(t, Decision{Kind: RedirectHome}.Redirect())
	assert.False(t, Decision{Kind: Render}.Redirect())
	assert.False(t, Decision{Kind: Loading}.Redirect())
}
