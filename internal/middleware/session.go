package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/logger"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

const (
	// ContextActorKey is the gin context key storing the resolved service.Actor.
	ContextActorKey = "currentActor"
	// ContextSessionLoadingKey marks requests whose session could not be resolved
	// because the session store did not answer.
	ContextSessionLoadingKey = "sessionLoading"
)

type sessionResolver interface {
	ParseSession(token string) (*models.SessionClaims, error)
	Me(ctx context.Context, sessionID string) (*models.Identity, error)
}

// Session resolves the session cookie into an actor. It never blocks: routes decide
// with RequireSession or Guard what an anonymous visitor gets.
func Session(auth sessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(cookieName)
		if err != nil || cookie == "" {
			c.Next()
			return
		}
		claims, err := auth.ParseSession(cookie)
		if err != nil {
			c.Next()
			return
		}

		identity, err := auth.Me(c.Request.Context(), claims.SessionID)
		switch {
		case err == nil:
			c.Set(ContextActorKey, service.Actor{
				SessionID: claims.SessionID,
				Identity:  *identity,
				IP:        c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			})
			c.Set(logger.SessionIDKey, claims.SessionID)
		case errors.Is(err, appErrors.ErrUnavailable):
			c.Set(ContextSessionLoadingKey, true)
		}
		c.Next()
	}
}

// RequireSession rejects API calls without a live session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ContextSessionLoadingKey) {
			c.Header("Retry-After", "1")
			response.Error(c, appErrors.ErrUnavailable)
			c.Abort()
			return
		}
		if _, ok := ActorFromContext(c); !ok {
			response.Error(c, appErrors.ErrSessionExpired)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the actor stored by Session.
func ActorFromContext(c *gin.Context) (service.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	return actor, ok
}
