package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/middleware"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

func actorFromContext(c *gin.Context) (service.Actor, bool) {
	return middleware.ActorFromContext(c)
}

// requireActor answers 401 when the request carries no session.
func requireActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrSessionExpired)
	}
	return actor, ok
}
