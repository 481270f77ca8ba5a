package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

func newSession(t *testing.T, access, refresh string) (*session.Manager, *session.Accessor) {
	t.Helper()
	m := session.NewManager(session.NewMemoryBackend(), time.Hour, zap.NewNop())
	s, err := m.Create(context.Background(), access, refresh, models.Identity{ID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)
	return m, m.For(s.ID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recordingMetrics struct {
	mu        sync.Mutex
	routes    []string
	refreshes []string
}

func (m *recordingMetrics) ObserveUpstream(route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, route)
}

func (m *recordingMetrics) ObserveRefresh(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, outcome)
}

func TestListUsersEnvelope(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users", r.URL.Path)
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data": map[string]any{
				"users": []map[string]any{
					{"id": "1", "fullname": "Dina", "email": "dina@example.com", "role": "Sales", "isActive": true},
					{"id": "2", "name": "Budi", "phoneNumber": "0812", "role": "MANAGER", "is_active": "false", "lastLogin": "2024-05-01 10:00:00"},
				},
				"pagination": map[string]any{"totalItems": 42},
			},
		})
	}))
	defer srv.Close()

	_, acc := newSession(t, "token-1", "refresh-1")
	c := New(srv.URL, time.Second)

	items, total, err := c.ListUsers(context.Background(), acc, url.Values{"page": {"2"}, "limit": {"10"}, "role": {"Sales"}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, "Sales", gotQuery.Get("role"))
	assert.Equal(t, 42, total)
	require.Len(t, items, 2)
	assert.Equal(t, models.RoleSales, items[0].Role)
	assert.Equal(t, models.AccountActive, items[0].Status)
	assert.Equal(t, "Budi", items[1].FullName)
	assert.Equal(t, "0812", items[1].Phone)
	assert.Equal(t, models.RoleManager, items[1].Role)
	assert.Equal(t, models.AccountInactive, items[1].Status)
	require.NotNil(t, items[1].LastActivity)
	assert.Equal(t, 2024, items[1].LastActivity.Year())
}

func TestListLeadsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "l1", "name": "Ani", "age": "34", "status": "Contacted", "probability": 0.82},
			{"id": "l2", "name": "Rudi", "age": 51, "status": "weird", "score": 0.4},
		})
	}))
	defer srv.Close()

	_, acc := newSession(t, "t", "r")
	items, total, err := New(srv.URL, time.Second).ListLeads(context.Background(), acc, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, total)
	assert.Equal(t, 34, items[0].Age)
	assert.Equal(t, models.LeadContacted, items[0].Status)
	assert.InDelta(t, 0.82, items[0].Score, 1e-9)
	assert.Equal(t, models.LeadPending, items[1].Status)
}

func TestDecodeListShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		count int
		total int
	}{
		{"wrapped array", `{"status":"success","data":[{"id":"a"},{"id":"b"}]}`, 2, 2},
		{"keyed with total", `{"campaigns":[{"id":"a"}],"total":9}`, 1, 9},
		{"items key", `{"data":{"items":[{"id":"a"}],"pagination":{"total":3}}}`, 1, 3},
		{"null data", `{"status":"success","data":null}`, 0, 0},
		{"empty body", ``, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, total, err := decodeList[wireCampaign]([]byte(tc.body), "campaigns")
			require.NoError(t, err)
			assert.Len(t, items, tc.count)
			assert.Equal(t, tc.total, total)
		})
	}

	_, _, err := decodeList[wireCampaign]([]byte(`{"campaigns":"nope"}`), "campaigns")
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
}

func TestRefreshOnceThenRetry(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/authentications" && r.Method == http.MethodPut {
			atomic.AddInt32(&refreshes, 1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "refresh-1", body["refreshToken"])
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"accessToken": "fresh"}})
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "c1", "name": "Q3", "status": "Completed", "periodStart": "2024-07-01T00:00:00.000Z"}})
	}))
	defer srv.Close()

	m, acc := newSession(t, "stale", "refresh-1")
	metrics := &recordingMetrics{}
	c := New(srv.URL, time.Second, WithMetrics(metrics))

	got, err := c.GetCampaign(context.Background(), acc, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Q3", got.Name)
	assert.Equal(t, models.CampaignCompleted, got.Status)
	assert.Equal(t, "2024-07-01", got.PeriodStart)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

	s, err := m.Get(context.Background(), acc.Key())
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.AccessToken)
	assert.Equal(t, []string{"succeeded"}, metrics.refreshes)
	assert.Equal(t, []string{"GET /api/campaigns/:id", "PUT /api/authentications", "GET /api/campaigns/:id"}, metrics.routes)
}

func TestConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/authentications" {
			atomic.AddInt32(&refreshes, 1)
			time.Sleep(50 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"accessToken": "fresh"}})
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	_, acc := newSession(t, "stale", "refresh-1")
	c := New(srv.URL, time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.ListCampaigns(context.Background(), acc, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
}

func TestSecondUnauthorizedEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/authentications" {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"accessToken": "fresh"}})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, acc := newSession(t, "stale", "refresh-1")
	var reasons []string
	m.Subscribe(func(_ context.Context, _ string, reason string) { reasons = append(reasons, reason) })

	_, err := New(srv.URL, time.Second).GetUser(context.Background(), acc, "u9")
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
	assert.Equal(t, []string{session.ReasonRejectedTwice}, reasons)

	_, err = m.Get(context.Background(), acc.Key())
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = New(srv.URL, time.Second).GetUser(context.Background(), acc, "u9")
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
}

func TestFailedRefreshEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/authentications" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "fail", "message": "Refresh token tidak valid"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, acc := newSession(t, "stale", "refresh-1")
	var reasons []string
	m.Subscribe(func(_ context.Context, _ string, reason string) { reasons = append(reasons, reason) })
	metrics := &recordingMetrics{}

	err := New(srv.URL, time.Second, WithMetrics(metrics)).DeleteNote(context.Background(), acc, "n1")
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
	assert.Equal(t, []string{session.ReasonRefreshFailed}, reasons)
	assert.Equal(t, []string{"failed"}, metrics.refreshes)
}

func TestAbandonedRequestKeepsSessionDuringRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/authentications" {
			time.Sleep(200 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"accessToken": "fresh"}})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, acc := newSession(t, "stale", "refresh-1")
	var mu sync.Mutex
	var reasons []string
	m.Subscribe(func(_ context.Context, _ string, reason string) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, reason)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(srv.URL, time.Second).DeleteNote(ctx, acc, "n1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrSessionExpired))
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)

	assert.Eventually(t, func() bool {
		s, err := m.Get(context.Background(), acc.Key())
		return err == nil && s.AccessToken == "fresh"
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, reasons)
}

func TestAPIErrorFeedsFormNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "fail",
			"message": "Email sudah digunakan",
			"errors":  map[string]any{"email": "already registered"},
		})
	}))
	defer srv.Close()

	_, acc := newSession(t, "t", "r")
	_, err := New(srv.URL, time.Second).CreateUser(context.Background(), acc, map[string]any{"email": "a@b.c"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Email sudah digunakan", apiErr.Message)
	assert.ErrorIs(t, apiErr.AppError(), appErrors.ErrUnprocessable)

	normalized := form.Normalize(err)
	assert.Equal(t, "Email sudah digunakan", normalized.General())
	assert.Equal(t, map[string]string{"email": "already registered"}, normalized.Fields())
}

func TestAPIErrorPayloadFallbacks(t *testing.T) {
	e := newAPIError(http.StatusBadGateway, nil)
	assert.Equal(t, "Bad Gateway", e.Message)
	assert.Equal(t, "Bad Gateway", e.ServerPayload())

	e = newAPIError(http.StatusInternalServerError, []byte("<html>oops</html>"))
	assert.Equal(t, "<html>oops</html>", e.ServerPayload())
	assert.ErrorIs(t, e.AppError(), appErrors.ErrUpstream)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "fail", "message": "Kredensial salah"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Login(context.Background(), "a@b.c", "nope")
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"status": "success",
			"data":   map[string]any{"accessToken": "a", "refreshToken": "r", "id": "u1", "role": "Manager"},
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a", res.AccessToken)
	assert.Equal(t, "r", res.RefreshToken)
	assert.Equal(t, models.RoleManager, res.Role)
}

func TestUploadAvatarMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload/avatar/u7", r.URL.Path)
		file, header, err := r.FormFile("avatar")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "me.png", header.Filename)
		assert.Equal(t, "png-bytes", string(content))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"avatar_url": "https://cdn/x.png"}})
	}))
	defer srv.Close()

	_, acc := newSession(t, "t", "r")
	avatarURL, err := New(srv.URL, time.Second).UploadAvatar(context.Background(), acc, "u7", "me.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", avatarURL)
}

func TestUnreachableUpstream(t *testing.T) {
	_, acc := newSession(t, "t", "r")
	_, err := New("http://127.0.0.1:1", 200*time.Millisecond).CampaignDropdown(context.Background(), acc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUpstream) || errors.Is(err, appErrors.ErrUnavailable))
}
