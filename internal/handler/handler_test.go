package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/middleware"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, env responseEnvelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func testActor(role models.Role) service.Actor {
	return service.Actor{
		SessionID: "sess-" + string(role),
		Identity:  models.Identity{ID: "user-" + string(role), Role: role, DisplayName: "Test"},
	}
}

// newContext builds a gin test context; a non-empty role signs the request in.
func newContext(method, target string, body interface{}, role models.Role) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, reader)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		c.Set(middleware.ContextActorKey, testActor(role))
	}
	return c, rec
}

type fakeAuth struct {
	loginErr  error
	loggedOut []string
	lastLogin models.LoginRequest
}

func (f *fakeAuth) Login(_ context.Context, req models.LoginRequest) (*service.LoginResult, error) {
	f.lastLogin = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.LoginResult{
		Token:     "signed-token",
		ExpiresAt: timeIn(3600),
		Identity:  models.Identity{ID: "u-1", Role: models.RoleManager, DisplayName: "Mia"},
	}, nil
}

func (f *fakeAuth) Logout(_ context.Context, sessionID, _, _ string) error {
	f.loggedOut = append(f.loggedOut, sessionID)
	return nil
}

func (f *fakeAuth) Me(_ context.Context, sessionID string) (*models.Identity, error) {
	if sessionID == "" {
		return nil, appErrors.ErrSessionExpired
	}
	return &models.Identity{ID: "user", Role: models.RoleSales}, nil
}

type fakeScreens struct {
	view       *service.ScreenView
	err        error
	lastName   string
	lastChange service.ScreenChange
	deleted    []string
}

func (f *fakeScreens) View(_ context.Context, _ string, _ models.Role, name string) (*service.ScreenView, error) {
	f.lastName = name
	return f.view, f.err
}

func (f *fakeScreens) Apply(_ context.Context, _ string, _ models.Role, name string, change service.ScreenChange) (*service.ScreenView, error) {
	f.lastName = name
	f.lastChange = change
	return f.view, f.err
}

func (f *fakeScreens) Retry(_ context.Context, _ string, _ models.Role, name string) (*service.ScreenView, error) {
	f.lastName = name
	return f.view, f.err
}

func (f *fakeScreens) DeleteItem(_ context.Context, _ service.Actor, name, id string) (*service.ScreenView, error) {
	f.lastName = name
	f.deleted = append(f.deleted, id)
	return f.view, f.err
}

type fakeExports struct {
	result *service.ExportResult
	err    error
	format string
}

func (f *fakeExports) Export(_ context.Context, _ service.Actor, _ string, rawFormat string) (*service.ExportResult, error) {
	f.format = rawFormat
	return f.result, f.err
}

type fakeForms struct {
	mu        sync.Mutex
	opened    []service.OpenForm
	updates   []map[string]any
	closed    []string
	submitErr error
	openErr   error
}

func (f *fakeForms) view(id string) *service.DraftView {
	return &service.DraftView{ID: id, Form: form.LeadNote, Fields: map[string]any{}, FieldErrors: map[string]string{}, State: form.StateIdle}
}

func (f *fakeForms) Open(_ context.Context, _ service.Actor, req service.OpenForm) (*service.DraftView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, req)
	return f.view("draft-1"), nil
}

func (f *fakeForms) Get(_ service.Actor, id string) (*service.DraftView, error) {
	if id != "draft-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
	}
	return f.view(id), nil
}

func (f *fakeForms) Update(_ service.Actor, id string, fields map[string]any) (*service.DraftView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	return f.view(id), nil
}

func (f *fakeForms) Submit(_ context.Context, _ service.Actor, id string) (*service.DraftView, error) {
	view := f.view(id)
	if f.submitErr != nil {
		view.GeneralError = "Validation failed."
		view.FieldErrors["content"] = "Note is required."
		return view, f.submitErr
	}
	view.State = form.StateSaved
	return view, nil
}

func (f *fakeForms) Close(_ service.Actor, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
}

func timeIn(seconds int) time.Time {
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
