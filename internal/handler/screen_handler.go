package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/dto"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

type screensService interface {
	View(ctx context.Context, sessionID string, role models.Role, name string) (*service.ScreenView, error)
	Apply(ctx context.Context, sessionID string, role models.Role, name string, change service.ScreenChange) (*service.ScreenView, error)
	Retry(ctx context.Context, sessionID string, role models.Role, name string) (*service.ScreenView, error)
	DeleteItem(ctx context.Context, actor service.Actor, name, id string) (*service.ScreenView, error)
}

type exportService interface {
	Export(ctx context.Context, actor service.Actor, screen, rawFormat string) (*service.ExportResult, error)
}

// ScreenHandler exposes the per-session list screens.
type ScreenHandler struct {
	screens screensService
	exports exportService
}

// NewScreenHandler creates a new handler.
func NewScreenHandler(screens screensService, exports exportService) *ScreenHandler {
	return &ScreenHandler{screens: screens, exports: exports}
}

// View godoc
// @Summary List screen state
// @Description Returns the query, items and pagination window of a list screen, loading the first page on first use
// @Tags Screens
// @Produce json
// @Param screen path string true "accounts, campaigns or leads"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /screens/{screen} [get]
func (h *ScreenHandler) View(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	view, err := h.screens.View(c.Request.Context(), actor.SessionID, actor.Identity.Role, c.Param("screen"))
	h.respond(c, view, err)
}

// Query godoc
// @Summary Edit list query
// @Description Changes search, filters, page or page size. Search and filter edits go back to page one.
// @Tags Screens
// @Accept json
// @Produce json
// @Param screen path string true "Screen name"
// @Param payload body dto.ScreenQueryRequest true "Query edits"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /screens/{screen}/query [patch]
func (h *ScreenHandler) Query(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ScreenQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query payload"))
		return
	}
	view, err := h.screens.Apply(c.Request.Context(), actor.SessionID, actor.Identity.Role, c.Param("screen"), req.Change())
	h.respond(c, view, err)
}

// Retry godoc
// @Summary Retry list fetch
// @Description Refetches the current query, e.g. after a failed load
// @Tags Screens
// @Produce json
// @Param screen path string true "Screen name"
// @Success 200 {object} response.Envelope
// @Router /screens/{screen}/retry [post]
func (h *ScreenHandler) Retry(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	view, err := h.screens.Retry(c.Request.Context(), actor.SessionID, actor.Identity.Role, c.Param("screen"))
	h.respond(c, view, err)
}

// DeleteItem godoc
// @Summary Delete a listed record
// @Description Deletes the record upstream and refreshes the screen, stepping back a page when the last item of the last page goes
// @Tags Screens
// @Produce json
// @Param screen path string true "Screen name"
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /screens/{screen}/items/{id} [delete]
func (h *ScreenHandler) DeleteItem(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	view, err := h.screens.DeleteItem(c.Request.Context(), actor, c.Param("screen"), c.Param("id"))
	h.respond(c, view, err)
}

// Export godoc
// @Summary Export a list screen
// @Description Renders every page of the current query (capped) as CSV, PDF or XLSX
// @Tags Screens
// @Produce octet-stream
// @Param screen path string true "Screen name"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /screens/{screen}/export [get]
func (h *ScreenHandler) Export(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	res, err := h.exports.Export(c.Request.Context(), actor, c.Param("screen"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Export-Rows", fmt.Sprint(res.Rows))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

func (h *ScreenHandler) respond(c *gin.Context, view *service.ScreenView, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	window := view.Window
	meta := map[string]interface{}{"loading": view.Loading}
	response.JSON(c, http.StatusOK, view, &window, meta)
}
