package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/pkg/pagination"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditHandler lists the BFF audit trail for administrators.
type AuditHandler struct {
	audit auditLister
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(audit auditLister) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary Audit trail
// @Tags Audit
// @Produce json
// @Param userId query string false "Acting user"
// @Param action query string false "Action"
// @Param resource query string false "Resource"
// @Param page query int false "Page" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter := models.AuditFilter{
		UserID:   c.Query("userId"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     max(page, 1),
		PageSize: min(max(size, 1), 100),
	}
	logs, total, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	window := pagination.Compute(filter.Page, filter.PageSize, total, 0)
	response.JSON(c, http.StatusOK, logs, &window)
}
