package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/service"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

// PageHandler serves the role-gated page bundles. Routes are registered behind
// middleware.Guard, so only admitted visitors reach it.
type PageHandler struct{}

// NewPageHandler creates a new handler.
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Page godoc
// @Summary Page bundle
// @Description Screens, statistics and forms of a dashboard page. Anonymous visitors are redirected to the entry point and other roles to their home page.
// @Tags Pages
// @Produce json
// @Param path path string true "Page path, e.g. admin/dashboard"
// @Success 200 {object} response.Envelope
// @Success 303 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /pages/{path} [get]
func (h *PageHandler) Page(spec service.PageSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}
		response.JSON(c, http.StatusOK, service.BuildPage(spec, actor), nil)
	}
}
