package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

func TestFormHandlerOpen(t *testing.T) {
	forms := &fakeForms{}
	h := NewFormHandler(forms)
	c, rec := newContext(http.MethodPost, "/forms", map[string]string{"kind": "campaign", "recordId": "camp-1"}, models.RoleManager)

	h.Open(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, forms.opened, 1)
	assert.Equal(t, service.OpenForm{Form: form.Campaign, RecordID: "camp-1"}, forms.opened[0])
}

func TestFormHandlerOpenRequiresKind(t *testing.T) {
	forms := &fakeForms{}
	h := NewFormHandler(forms)
	c, rec := newContext(http.MethodPost, "/forms", map[string]string{"recordId": "x"}, models.RoleManager)

	h.Open(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, forms.opened)
}

func TestFormHandlerGetUnknownDraft(t *testing.T) {
	h := NewFormHandler(&fakeForms{})
	c, rec := newContext(http.MethodGet, "/forms/missing", nil, models.RoleSales)
	c.AddParam("id", "missing")

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormHandlerUpdatePassesFields(t *testing.T) {
	forms := &fakeForms{}
	h := NewFormHandler(forms)
	c, rec := newContext(http.MethodPatch, "/forms/draft-1/fields", map[string]any{"name": "Spring", "targetLead": 12}, models.RoleManager)
	c.AddParam("id", "draft-1")

	h.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, forms.updates, 1)
	assert.Equal(t, "Spring", forms.updates[0]["name"])
	assert.EqualValues(t, 12, forms.updates[0]["targetLead"])
}

func TestFormHandlerSubmitReturnsDraftWithErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"invalid": {err: appErrors.Clone(appErrors.ErrUnprocessable, "Validation failed."), status: http.StatusUnprocessableEntity},
		"busy":    {err: appErrors.ErrBusy, status: http.StatusConflict},
		"expired": {err: appErrors.ErrSessionExpired, status: http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewFormHandler(&fakeForms{submitErr: tc.err})
			c, rec := newContext(http.MethodPost, "/forms/draft-1/submit", nil, models.RoleSales)
			c.AddParam("id", "draft-1")

			h.Submit(c)

			require.Equal(t, tc.status, rec.Code)
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			var draft service.DraftView
			decodeData(t, env, &draft)
			assert.Equal(t, "Validation failed.", draft.GeneralError)
			assert.Equal(t, "Note is required.", draft.FieldErrors["content"])
		})
	}
}

func TestFormHandlerSubmitSaved(t *testing.T) {
	h := NewFormHandler(&fakeForms{})
	c, rec := newContext(http.MethodPost, "/forms/draft-1/submit", nil, models.RoleSales)
	c.AddParam("id", "draft-1")

	h.Submit(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var draft service.DraftView
	decodeData(t, decode(t, rec), &draft)
	assert.Equal(t, form.StateSaved, draft.State)
}

func TestFormHandlerClose(t *testing.T) {
	forms := &fakeForms{}
	h := NewFormHandler(forms)
	c, rec := newContext(http.MethodDelete, "/forms/draft-1", nil, models.RoleSales)
	c.AddParam("id", "draft-1")

	h.Close(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"draft-1"}, forms.closed)
}
