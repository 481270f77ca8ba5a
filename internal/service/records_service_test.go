package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

func newRecordsFixture(t *testing.T, crm *fakeCRM) (*RecordsService, *identityReloaderStub, func(models.Role) Actor) {
	t.Helper()
	sessions := newTestSessions()
	identity := &identityReloaderStub{}
	svc := NewRecordsService(crm, sessions, identity, nil, nil, nil, nil)
	return svc, identity, func(role models.Role) Actor { return newTestSession(sessions, role) }
}

func TestRecordsAccountDetailToleratesMissingActivities(t *testing.T) {
	crm := newFakeCRM()
	crm.accounts = []models.Account{{ID: "acc-1", FullName: "Budi"}, {ID: "broken", FullName: "Rina"}}
	svc, _, login := newRecordsFixture(t, crm)
	admin := login(models.RoleAdmin)

	detail, err := svc.AccountDetail(context.Background(), admin, "acc-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Budi", detail.Account.FullName)
	assert.Len(t, detail.Activities, 1)

	detail, err = svc.AccountDetail(context.Background(), admin, "broken", 5)
	require.NoError(t, err)
	assert.Empty(t, detail.Activities)

	_, err = svc.AccountDetail(context.Background(), login(models.RoleManager), "acc-1", 0)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRecordsCampaignOptionsRoles(t *testing.T) {
	crm := newFakeCRM()
	crm.options = []models.CampaignOption{{ID: "c1", Name: "Promo"}}
	svc, _, login := newRecordsFixture(t, crm)

	opts, err := svc.CampaignOptions(context.Background(), login(models.RoleSales))
	require.NoError(t, err)
	assert.Equal(t, crm.options, opts)

	_, err = svc.CampaignOptions(context.Background(), login(models.RoleAdmin))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRecordsUpdateLeadStatus(t *testing.T) {
	crm := newFakeCRM()
	crm.leads = []models.Lead{{ID: "lead-1", Name: "Ann", Status: models.LeadPending, CampaignID: "c1"}}
	svc, _, login := newRecordsFixture(t, crm)
	sales := login(models.RoleSales)

	lead, err := svc.UpdateLeadStatus(context.Background(), sales, "lead-1", "Converted", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadConverted, lead.Status)

	_, err = svc.UpdateLeadStatus(context.Background(), sales, "lead-1", "won", "c1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpdateLeadStatus(context.Background(), sales, "missing", "failed", "c1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRecordsNotesQuery(t *testing.T) {
	crm := newFakeCRM()
	crm.notes = []models.Note{{ID: "n1", LeadID: "lead-1", Content: "Call later"}}
	svc, _, login := newRecordsFixture(t, crm)
	sales := login(models.RoleSales)

	notes, err := svc.Notes(context.Background(), sales, "lead-1", "")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	q := crm.lastQuery("notes")
	assert.Equal(t, "lead-1", q.Get("leadId"))
	assert.False(t, q.Has("campaignId"))

	require.NoError(t, svc.DeleteNote(context.Background(), sales, "n1"))
	assert.Equal(t, []string{"n1"}, crm.deletedIDs())
}

func TestRecordsUploadAvatar(t *testing.T) {
	crm := newFakeCRM()
	svc, identity, login := newRecordsFixture(t, crm)
	sales := login(models.RoleSales)
	admin := login(models.RoleAdmin)
	ctx := context.Background()

	url, err := svc.UploadAvatar(ctx, sales, "", "me.PNG", 4, strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/me.PNG", url)
	assert.Equal(t, []string{sales.SessionID}, identity.sessions)

	_, err = svc.UploadAvatar(ctx, sales, "acc-9", "x.png", 4, strings.NewReader("data"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.UploadAvatar(ctx, admin, "acc-9", "x.png", 4, strings.NewReader("data"))
	require.NoError(t, err)

	_, err = svc.UploadAvatar(ctx, sales, "", "notes.pdf", 4, strings.NewReader("data"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	big := bytes.Repeat([]byte{1}, MaxAvatarBytes+1)
	_, err = svc.UploadAvatar(ctx, sales, "", "big.jpg", int64(len(big)), bytes.NewReader(big))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, []string{"/me.PNG:4", "acc-9/x.png:4"}, crm.avatars)
}

func TestRecordsStatusChangeIsAudited(t *testing.T) {
	crm := newFakeCRM()
	crm.leads = []models.Lead{{ID: "lead-1", Status: models.LeadPending}}
	sessions := newTestSessions()
	repo := &auditRepoStub{}
	audit := NewAuditService(repo, nil, nil, AuditConfig{RetryDelay: time.Millisecond})
	audit.Start(context.Background())
	defer audit.Stop()
	svc := NewRecordsService(crm, sessions, nil, nil, nil, audit, nil)
	sales := newTestSession(sessions, models.RoleSales)

	_, err := svc.UpdateLeadStatus(context.Background(), sales, "lead-1", "contacted", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.AuditActionLeadStatus, repo.created[0].Action)
	require.NotNil(t, repo.created[0].UserID)
	assert.Equal(t, sales.Identity.ID, *repo.created[0].UserID)
}
