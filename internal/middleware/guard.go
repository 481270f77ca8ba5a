package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/guard"
	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

// ContextDecisionKey stores the guard decision of a rendered page.
const ContextDecisionKey = "guardDecision"

// Guard gates a page route. Anonymous visitors are sent to the entry point and
// users of another role to their own home screen, both with 303 See Other. While
// the session store is unreachable the page answers 503 and asks to retry.
func Guard(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.Authorize(subject(c), allowed...)
		switch decision.Kind {
		case guard.Render:
			c.Set(ContextDecisionKey, decision)
			c.Next()
		case guard.Loading:
			c.Header("Retry-After", "1")
			response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "session is loading, retry shortly"))
			c.Abort()
		default:
			response.Redirect(c, decision.Location)
			c.Abort()
		}
	}
}

// RequireRoles is the API counterpart of Guard: it answers 403 instead of redirecting.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrSessionExpired)
			c.Abort()
			return
		}
		if !models.Authorized(actor.Identity.Role, allowed...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func subject(c *gin.Context) guard.Subject {
	if c.GetBool(ContextSessionLoadingKey) {
		return guard.Subject{Loading: true}
	}
	actor, ok := ActorFromContext(c)
	if !ok {
		return guard.Subject{}
	}
	identity := actor.Identity
	return guard.Subject{Identity: &identity}
}
