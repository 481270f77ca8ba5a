package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

type statsService interface {
	Get(ctx context.Context, actor service.Actor, kind, campaignID string) (models.Stats, error)
}

// StatsHandler serves the dashboard statistics blocks.
type StatsHandler struct {
	stats statsService
}

// NewStatsHandler creates a new handler.
func NewStatsHandler(stats statsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Get godoc
// @Summary Dashboard statistics
// @Description Cached per user for a short time
// @Tags Stats
// @Produce json
// @Param kind path string true "users, campaigns or leads"
// @Param campaignId query string false "Narrow lead stats to a campaign"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stats/{kind} [get]
func (h *StatsHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	stats, err := h.stats.Get(c.Request.Context(), actor, c.Param("kind"), c.Query("campaignId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
