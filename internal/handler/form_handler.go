package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/dto"
	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

type formsService interface {
	Open(ctx context.Context, actor service.Actor, req service.OpenForm) (*service.DraftView, error)
	Get(actor service.Actor, id string) (*service.DraftView, error)
	Update(actor service.Actor, id string, fields map[string]any) (*service.DraftView, error)
	Submit(ctx context.Context, actor service.Actor, id string) (*service.DraftView, error)
	Close(actor service.Actor, id string)
}

// FormHandler exposes form drafts: open, edit, submit and discard.
type FormHandler struct {
	forms formsService
}

// NewFormHandler creates a new handler.
func NewFormHandler(forms formsService) *FormHandler {
	return &FormHandler{forms: forms}
}

// Open godoc
// @Summary Open a form draft
// @Description Opens a create draft, or an edit draft preloaded from the record when recordId is set
// @Tags Forms
// @Accept json
// @Produce json
// @Param payload body dto.OpenFormRequest true "Form to open"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms [post]
func (h *FormHandler) Open(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.OpenFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}
	view, err := h.forms.Open(c.Request.Context(), actor, service.OpenForm{
		Form:       form.Name(req.Kind),
		RecordID:   req.RecordID,
		CampaignID: req.CampaignID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get a form draft
// @Tags Forms
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	view, err := h.forms.Get(actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Update godoc
// @Summary Edit draft fields
// @Description Applies field edits; an edited field loses its error and the general error is cleared
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body map[string]interface{} true "Field values"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /forms/{id}/fields [patch]
func (h *FormHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fields payload"))
		return
	}
	view, err := h.forms.Update(actor, c.Param("id"), fields)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Submit godoc
// @Summary Submit a draft
// @Description Validates locally and saves upstream. Invalid or rejected drafts answer 422 with their errors; a submit already in flight answers 409.
// @Tags Forms
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /forms/{id}/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	view, err := h.forms.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		if view != nil {
			response.ErrorWithData(c, err, view)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Close godoc
// @Summary Discard a draft
// @Tags Forms
// @Param id path string true "Draft ID"
// @Success 204
// @Router /forms/{id} [delete]
func (h *FormHandler) Close(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	h.forms.Close(actor, c.Param("id"))
	response.NoContent(c)
}
