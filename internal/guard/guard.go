// Package guard decides whether a role-gated screen may be shown to a visitor.
package guard

import "github.com/noah-isme/crm-dashboard/internal/models"

// Kind is the outcome of an authorization decision.
type Kind string

const (
	Render        Kind = "render"
	RedirectLogin Kind = "redirect_login"
	RedirectHome  Kind = "redirect_home"
	Loading       Kind = "loading"
)

// Subject is what the guard knows about the visitor. Loading is set while the
// identity cannot be resolved yet.
type Subject struct {
	Identity *models.Identity
	Loading  bool
}

// Decision tells the caller what to do. Location is set for redirects.
type Decision struct {
	Kind     Kind   `json:"kind"`
	Location string `json:"location,omitempty"`
}

// Redirect reports whether the decision sends the visitor elsewhere.
func (d Decision) Redirect() bool {
	return d.Kind == RedirectLogin || d.Kind == RedirectHome
}

// Authorize applies the role policy. Visitors without a usable identity go to the
// entry point; signed-in users lacking an allowed role go to their own home screen
// instead of an error page. An empty allowed list admits every role.
func Authorize(s Subject, allowed ...models.Role) Decision {
	if s.Loading {
		return Decision{Kind: Loading}
	}
	if !s.Identity.Authenticated() {
		return Decision{Kind: RedirectLogin, Location: models.EntryPath}
	}
	if !models.Authorized(s.Identity.Role, allowed...) {
		return Decision{Kind: RedirectHome, Location: s.Identity.Role.HomePath()}
	}
	return Decision{Kind: Render}
}
