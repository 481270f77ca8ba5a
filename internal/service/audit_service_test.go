package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

type auditRepoStub struct {
	mu      sync.Mutex
	created []*models.AuditLog
	fails   int
}

func (s *auditRepoStub) Create(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return assert.AnError
	}
	s.created = append(s.created, log)
	return nil
}

func (s *auditRepoStub) List(_ context.Context, _ models.AuditFilter) ([]models.AuditLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, 0, len(s.created))
	for _, l := range s.created {
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (s *auditRepoStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func TestAuditServiceRecordsAndRedacts(t *testing.T) {
	repo := &auditRepoStub{fails: 1}
	svc := NewAuditService(repo, NewMetricsService(), nil, AuditConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Record(AuditEntry{
		UserID:     "u1",
		Action:     models.AuditActionAccountCreate,
		Resource:   "account",
		ResourceID: "acc-1",
		Values:     map[string]interface{}{"email": "a@b.co", "password": "secret1"},
	})

	require.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	logs, total, err := svc.List(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.AuditOutcomeSuccess, logs[0].Outcome)
	assert.Equal(t, "acc-1", *logs[0].ResourceID)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].NewValues, &values))
	assert.Equal(t, "a@b.co", values["email"])
	assert.NotContains(t, values, "password")
}

func TestAuditServiceDisabled(t *testing.T) {
	svc := NewAuditService(nil, nil, nil, AuditConfig{})
	svc.Start(context.Background())
	svc.Record(AuditEntry{Action: models.AuditActionLogin})
	svc.Stop()

	assert.False(t, svc.Enabled())
	_, _, err := svc.List(context.Background(), models.AuditFilter{})
	assert.Error(t, err)

	var nilSvc *AuditService
	nilSvc.Record(AuditEntry{Action: models.AuditActionLogin})
}
