package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/jobs"
)

const auditJobType = "audit.record"

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditEntry describes one mutation performed through the dashboard.
type AuditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Outcome    string
	Values     interface{}
	IP         string
	UserAgent  string
}

// AuditService records mutations asynchronously. A nil service or one without a
// repository silently drops entries so callers never branch on configuration.
type AuditService struct {
	repo    auditRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// AuditConfig tunes the background writer.
type AuditConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewAuditService constructs the service and its worker queue. Start must be called
// before entries are persisted.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger}
	if repo != nil {
		s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return s
}

// Start launches the writers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop flushes buffered entries.
func (s *AuditService) Stop() {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.Stop()
}

// Enabled reports whether entries are persisted.
func (s *AuditService) Enabled() bool {
	return s != nil && s.queue != nil
}

// Record enqueues an entry without blocking the request.
func (s *AuditService) Record(entry AuditEntry) {
	if !s.Enabled() {
		return
	}
	log := toAuditLog(entry)
	if err := s.queue.TryEnqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}); err != nil {
		s.metrics.RecordAuditDropped()
		s.logger.Warn("audit entry dropped", zap.String("action", entry.Action), zap.Error(err))
	}
}

// List returns stored entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, appErrors.Clone(appErrors.ErrUnavailable, "audit trail is disabled")
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, total, nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return errors.New("unexpected audit payload")
	}
	return s.repo.Create(ctx, log)
}

func toAuditLog(entry AuditEntry) *models.AuditLog {
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		Outcome:   entry.Outcome,
		IPAddress: entry.IP,
		UserAgent: entry.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if log.Outcome == "" {
		log.Outcome = models.AuditOutcomeSuccess
	}
	if entry.UserID != "" {
		id := entry.UserID
		log.UserID = &id
	}
	if entry.ResourceID != "" {
		id := entry.ResourceID
		log.ResourceID = &id
	}
	if entry.Values != nil {
		if raw, err := json.Marshal(redact(entry.Values)); err == nil {
			log.NewValues = raw
		}
	}
	return log
}

var secretFields = map[string]bool{
	"password":        true,
	"currentPassword": true,
	"newPassword":     true,
	"confirmPassword": true,
}

// redact removes credentials from map payloads before they are stored.
func redact(values interface{}) interface{} {
	m, ok := values.(map[string]interface{})
	if !ok {
		return values
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if secretFields[k] {
			continue
		}
		out[k] = v
	}
	return out
}
