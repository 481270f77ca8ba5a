package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/dto"
	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

type recordsService interface {
	AccountDetail(ctx context.Context, actor service.Actor, id string, limit int) (*service.AccountDetail, error)
	Campaign(ctx context.Context, actor service.Actor, id string) (*models.Campaign, error)
	CampaignOptions(ctx context.Context, actor service.Actor) ([]models.CampaignOption, error)
	Lead(ctx context.Context, actor service.Actor, id, campaignID string) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, actor service.Actor, id, rawStatus, campaignID string) (*models.Lead, error)
	Notes(ctx context.Context, actor service.Actor, leadID, campaignID string) ([]models.Note, error)
	DeleteNote(ctx context.Context, actor service.Actor, id string) error
	Profile(ctx context.Context, actor service.Actor) (*models.Profile, error)
	UploadAvatar(ctx context.Context, actor service.Actor, userID, filename string, size int64, image io.Reader) (string, error)
}

// RecordHandler serves the single-record endpoints around the list screens.
type RecordHandler struct {
	records recordsService
	forms   formsService
}

// NewRecordHandler creates a new handler. Notes are created through the lead-note form
// so they get the same validation and error reconciliation as every other form.
func NewRecordHandler(records recordsService, forms formsService) *RecordHandler {
	return &RecordHandler{records: records, forms: forms}
}

// Account godoc
// @Summary Account detail
// @Description Loads an account with its recent activities
// @Tags Records
// @Produce json
// @Param id path string true "Account ID"
// @Param limit query int false "Activities to include" default(10)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id} [get]
func (h *RecordHandler) Account(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	detail, err := h.records.AccountDetail(c.Request.Context(), actor, c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Campaign godoc
// @Summary Campaign detail
// @Tags Records
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id} [get]
func (h *RecordHandler) Campaign(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	campaign, err := h.records.Campaign(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// CampaignDropdown godoc
// @Summary Campaign selector options
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campaigns/dropdown [get]
func (h *RecordHandler) CampaignDropdown(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	options, err := h.records.CampaignOptions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// Lead godoc
// @Summary Lead detail
// @Tags Records
// @Produce json
// @Param id path string true "Lead ID"
// @Param campaignId query string false "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *RecordHandler) Lead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	lead, err := h.records.Lead(c.Request.Context(), actor, c.Param("id"), c.Query("campaignId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// LeadStatus godoc
// @Summary Change lead status
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body dto.LeadStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads/{id}/status [patch]
func (h *RecordHandler) LeadStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.LeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	lead, err := h.records.UpdateLeadStatus(c.Request.Context(), actor, c.Param("id"), req.Status, req.CampaignID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Notes godoc
// @Summary Lead notes
// @Tags Records
// @Produce json
// @Param id path string true "Lead ID"
// @Param campaignId query string false "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/notes [get]
func (h *RecordHandler) Notes(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	notes, err := h.records.Notes(c.Request.Context(), actor, c.Param("id"), c.Query("campaignId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil)
}

// CreateNote godoc
// @Summary Add a lead note
// @Description Saves a note through the lead-note form; validation and upstream errors come back as form errors
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body dto.NoteRequest true "Note"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /leads/{id}/notes [post]
func (h *RecordHandler) CreateNote(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}

	ctx := c.Request.Context()
	draft, err := h.forms.Open(ctx, actor, service.OpenForm{Form: form.LeadNote, RecordID: c.Param("id"), CampaignID: req.CampaignID})
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.forms.Update(actor, draft.ID, map[string]any{"content": req.Content}); err != nil {
		h.forms.Close(actor, draft.ID)
		response.Error(c, err)
		return
	}
	view, err := h.forms.Submit(ctx, actor, draft.ID)
	if err != nil {
		h.forms.Close(actor, draft.ID)
		if view != nil {
			response.ErrorWithData(c, err, view)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// DeleteNote godoc
// @Summary Delete a note
// @Tags Records
// @Param id path string true "Note ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /notes/{id} [delete]
func (h *RecordHandler) DeleteNote(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.records.DeleteNote(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Profile godoc
// @Summary Own profile
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile [get]
func (h *RecordHandler) Profile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	profile, err := h.records.Profile(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UploadAvatar godoc
// @Summary Upload an avatar
// @Description Forwards the image to the CRM API. Admins may pass userId to replace another account's avatar.
// @Tags Records
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Avatar image"
// @Param userId formData string false "Target account"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile/avatar [post]
func (h *RecordHandler) UploadAvatar(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image file is unreadable"))
		return
	}
	defer file.Close()

	avatarURL, err := h.records.UploadAvatar(c.Request.Context(), actor, c.PostForm("userId"), header.Filename, header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AvatarResponse{AvatarURL: avatarURL}, nil)
}
