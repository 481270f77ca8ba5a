package service

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

// fakeCRM is an in-memory stand-in for the upstream CRM API. Lists honour page and
// limit so clamping and export paging behave as against the real service.
type fakeCRM struct {
	mu sync.Mutex

	accounts  []models.Account
	campaigns []models.Campaign
	leads     []models.Lead
	notes     []models.Note
	options   []models.CampaignOption
	profile   models.Profile

	queries  map[string][]url.Values
	payloads map[string][]map[string]any
	deleted  []string
	avatars  []string
	listErr  error
	saveErr  error
	saveWait chan struct{}
	stats    int
	tokens   []string
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		queries:  map[string][]url.Values{},
		payloads: map[string][]map[string]any{},
	}
}

func (f *fakeCRM) seen(ctx context.Context, ts client.TokenSource) error {
	token, err := ts.AccessToken(ctx)
	if err != nil {
		return err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeCRM) lastQuery(route string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	qs := f.queries[route]
	if len(qs) == 0 {
		return nil
	}
	return qs[len(qs)-1]
}

func (f *fakeCRM) queryCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries[route])
}

func (f *fakeCRM) lastPayload(route string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.payloads[route]
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1]
}

func paged[T any](items []T, q url.Values) []T {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 || limit < 1 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	return append([]T(nil), items[start:min(start+limit, len(items))]...)
}

func (f *fakeCRM) list(ctx context.Context, ts client.TokenSource, route string, q url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[route] = append(f.queries[route], q)
	if err := f.seen(ctx, ts); err != nil {
		return err
	}
	return f.listErr
}

func (f *fakeCRM) save(ctx context.Context, ts client.TokenSource, route string, payload map[string]any) error {
	f.mu.Lock()
	wait := f.saveWait
	f.payloads[route] = append(f.payloads[route], payload)
	err := f.seen(ctx, ts)
	if err == nil {
		err = f.saveErr
	}
	f.mu.Unlock()
	if wait != nil {
		<-wait
	}
	return err
}

func (f *fakeCRM) ListUsers(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Account, int, error) {
	if err := f.list(ctx, ts, "users", q); err != nil {
		return nil, 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return paged(f.accounts, q), len(f.accounts), nil
}

func (f *fakeCRM) DeleteUser(_ context.Context, _ client.TokenSource, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.accounts {
		if a.ID == id {
			f.accounts = append(f.accounts[:i], f.accounts[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return &client.APIError{Status: 404, Message: "User not found"}
}

func (f *fakeCRM) ListCampaigns(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Campaign, int, error) {
	if err := f.list(ctx, ts, "campaigns", q); err != nil {
		return nil, 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return paged(f.campaigns, q), len(f.campaigns), nil
}

func (f *fakeCRM) DeleteCampaign(_ context.Context, _ client.TokenSource, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.campaigns {
		if c.ID == id {
			f.campaigns = append(f.campaigns[:i], f.campaigns[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return &client.APIError{Status: 404, Message: "Campaign not found"}
}

func (f *fakeCRM) ListLeads(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Lead, int, error) {
	if err := f.list(ctx, ts, "leads", q); err != nil {
		return nil, 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return paged(f.leads, q), len(f.leads), nil
}

func (f *fakeCRM) GetUser(_ context.Context, _ client.TokenSource, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

func (f *fakeCRM) CreateUser(ctx context.Context, ts client.TokenSource, payload map[string]any) (*models.Account, error) {
	if err := f.save(ctx, ts, "users.create", payload); err != nil {
		return nil, err
	}
	return &models.Account{ID: "new-user"}, nil
}

func (f *fakeCRM) UpdateUser(ctx context.Context, ts client.TokenSource, id string, payload map[string]any) (*models.Account, error) {
	if err := f.save(ctx, ts, "users.update:"+id, payload); err != nil {
		return nil, err
	}
	return &models.Account{ID: id}, nil
}

func (f *fakeCRM) UserActivities(_ context.Context, _ client.TokenSource, id string, _ int) ([]models.Activity, error) {
	if id == "broken" {
		return nil, errUpstreamDown
	}
	return []models.Activity{{ID: "act-1", Action: "LOGIN"}}, nil
}

func (f *fakeCRM) GetCampaign(_ context.Context, _ client.TokenSource, id string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campaigns {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
}

func (f *fakeCRM) CreateCampaign(ctx context.Context, ts client.TokenSource, payload map[string]any) error {
	return f.save(ctx, ts, "campaigns.create", payload)
}

func (f *fakeCRM) UpdateCampaign(ctx context.Context, ts client.TokenSource, id string, payload map[string]any) error {
	return f.save(ctx, ts, "campaigns.update:"+id, payload)
}

func (f *fakeCRM) CampaignDropdown(_ context.Context, _ client.TokenSource) ([]models.CampaignOption, error) {
	return f.options, nil
}

func (f *fakeCRM) GetLead(_ context.Context, _ client.TokenSource, id, _ string) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.ID == id {
			out := l
			return &out, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
}

func (f *fakeCRM) UpdateLeadStatus(_ context.Context, _ client.TokenSource, id string, status models.LeadStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.leads {
		if f.leads[i].ID == id {
			f.leads[i].Status = status
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "lead not found")
}

func (f *fakeCRM) ListNotes(_ context.Context, _ client.TokenSource, q url.Values) ([]models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries["notes"] = append(f.queries["notes"], q)
	return f.notes, nil
}

func (f *fakeCRM) CreateNote(ctx context.Context, ts client.TokenSource, payload map[string]any) (*models.Note, error) {
	if err := f.save(ctx, ts, "notes.create", payload); err != nil {
		return nil, err
	}
	return &models.Note{ID: "note-1"}, nil
}

func (f *fakeCRM) DeleteNote(_ context.Context, _ client.TokenSource, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCRM) GetProfile(_ context.Context, _ client.TokenSource) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.profile
	return &out, nil
}

func (f *fakeCRM) UpdateProfile(ctx context.Context, ts client.TokenSource, payload map[string]any) error {
	return f.save(ctx, ts, "profile.update", payload)
}

func (f *fakeCRM) ChangePassword(ctx context.Context, ts client.TokenSource, payload map[string]any) error {
	return f.save(ctx, ts, "profile.password", payload)
}

func (f *fakeCRM) UploadAvatar(_ context.Context, _ client.TokenSource, userID, filename string, image io.Reader) (string, error) {
	data, err := io.ReadAll(image)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avatars = append(f.avatars, userID+"/"+filename+":"+strconv.Itoa(len(data)))
	return "https://cdn.example.com/" + filename, nil
}

func (f *fakeCRM) UserStats(_ context.Context, _ client.TokenSource) (models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats++
	return models.Stats{"totalUsers": float64(len(f.accounts))}, nil
}

func (f *fakeCRM) CampaignStats(_ context.Context, _ client.TokenSource) (models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats++
	return models.Stats{"totalCampaigns": float64(len(f.campaigns))}, nil
}

func (f *fakeCRM) LeadStats(_ context.Context, _ client.TokenSource, q url.Values) (models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats++
	f.queries["stats.leads"] = append(f.queries["stats.leads"], q)
	return models.Stats{"totalLeads": float64(len(f.leads))}, nil
}

var errUpstreamDown = appErrors.Clone(appErrors.ErrUpstream, "upstream failure")

// newTestSession stores a session with the given role and returns the matching actor.
func newTestSession(sessions *session.Manager, role models.Role) Actor {
	s, err := sessions.Create(context.Background(), "access-"+string(role), "refresh-"+string(role), models.Identity{
		ID:          "user-" + string(role),
		Role:        role,
		DisplayName: "Test " + string(role),
	})
	if err != nil {
		panic(err)
	}
	return Actor{SessionID: s.ID, Identity: s.Identity, IP: "127.0.0.1", UserAgent: "test"}
}

func newTestSessions() *session.Manager {
	return session.NewManager(session.NewMemoryBackend(), time.Hour, nil)
}

func seedAccounts(n int) []models.Account {
	out := make([]models.Account, n)
	for i := range out {
		out[i] = models.Account{
			ID:       "acc-" + strconv.Itoa(i+1),
			FullName: "User " + strconv.Itoa(i+1),
			Email:    "user" + strconv.Itoa(i+1) + "@example.com",
			Role:     models.RoleSales,
			Status:   models.AccountActive,
		}
	}
	return out
}

func (f *fakeCRM) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeCRM) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
