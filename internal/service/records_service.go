package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

// MaxAvatarBytes bounds avatar uploads.
const MaxAvatarBytes = 2 << 20

var avatarExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

type recordsUpstream interface {
	GetUser(ctx context.Context, ts client.TokenSource, id string) (*models.Account, error)
	UserActivities(ctx context.Context, ts client.TokenSource, id string, limit int) ([]models.Activity, error)
	GetCampaign(ctx context.Context, ts client.TokenSource, id string) (*models.Campaign, error)
	CampaignDropdown(ctx context.Context, ts client.TokenSource) ([]models.CampaignOption, error)
	GetLead(ctx context.Context, ts client.TokenSource, id, campaignID string) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, ts client.TokenSource, id string, status models.LeadStatus, campaignID string) error
	ListNotes(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Note, error)
	DeleteNote(ctx context.Context, ts client.TokenSource, id string) error
	GetProfile(ctx context.Context, ts client.TokenSource) (*models.Profile, error)
	UploadAvatar(ctx context.Context, ts client.TokenSource, userID, filename string, image io.Reader) (string, error)
}

// AccountDetail is an account with its recent activity.
type AccountDetail struct {
	Account    *models.Account   `json:"account"`
	Activities []models.Activity `json:"activities"`
}

// RecordsService serves the single-record views around the list screens: account and
// lead details, lead notes, the campaign dropdown, the profile and avatars.
type RecordsService struct {
	upstream recordsUpstream
	sessions *session.Manager
	identity identityReloader
	screens  *ScreensService
	stats    *StatsService
	audit    *AuditService
	logger   *zap.Logger
}

// NewRecordsService constructs the service.
func NewRecordsService(upstream recordsUpstream, sessions *session.Manager, identity identityReloader, screens *ScreensService, stats *StatsService, audit *AuditService, logger *zap.Logger) *RecordsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsService{upstream: upstream, sessions: sessions, identity: identity, screens: screens, stats: stats, audit: audit, logger: logger}
}

// AccountDetail loads an account and its last activities.
func (s *RecordsService) AccountDetail(ctx context.Context, actor Actor, id string, limit int) (*AccountDetail, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	ts := s.sessions.For(actor.SessionID)
	account, err := s.upstream.GetUser(ctx, ts, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	activities, err := s.upstream.UserActivities(ctx, ts, id, limit)
	if err != nil {
		s.logger.Warn("account activities unavailable", zap.String("account_id", id), zap.Error(err))
		activities = []models.Activity{}
	}
	return &AccountDetail{Account: account, Activities: activities}, nil
}

// Campaign loads one campaign.
func (s *RecordsService) Campaign(ctx context.Context, actor Actor, id string) (*models.Campaign, error) {
	if err := requireRole(actor, models.RoleManager, models.RoleSales); err != nil {
		return nil, err
	}
	return s.upstream.GetCampaign(ctx, s.sessions.For(actor.SessionID), id)
}

// CampaignOptions feeds the campaign selector of the leads screen.
func (s *RecordsService) CampaignOptions(ctx context.Context, actor Actor) ([]models.CampaignOption, error) {
	if err := requireRole(actor, models.RoleManager, models.RoleSales); err != nil {
		return nil, err
	}
	return s.upstream.CampaignDropdown(ctx, s.sessions.For(actor.SessionID))
}

// Lead loads a lead in the context of a campaign.
func (s *RecordsService) Lead(ctx context.Context, actor Actor, id, campaignID string) (*models.Lead, error) {
	if err := requireRole(actor, models.RoleSales); err != nil {
		return nil, err
	}
	return s.upstream.GetLead(ctx, s.sessions.For(actor.SessionID), id, campaignID)
}

// UpdateLeadStatus changes a lead's follow-up status and refreshes the leads screen.
func (s *RecordsService) UpdateLeadStatus(ctx context.Context, actor Actor, id, rawStatus, campaignID string) (*models.Lead, error) {
	if err := requireRole(actor, models.RoleSales); err != nil {
		return nil, err
	}
	status, ok := models.ParseLeadStatus(rawStatus)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of: pending, contacted, converted, failed")
	}
	ts := s.sessions.For(actor.SessionID)
	if err := s.upstream.UpdateLeadStatus(ctx, ts, id, status, campaignID); err != nil {
		s.audit.Record(actor.entry(models.AuditActionLeadStatus, "lead", id, models.AuditOutcomeRejected, map[string]interface{}{"status": status}))
		return nil, err
	}
	s.audit.Record(actor.entry(models.AuditActionLeadStatus, "lead", id, models.AuditOutcomeSuccess, map[string]interface{}{"status": status}))
	s.screens.Refresh(actor.SessionID, ScreenLeads)
	s.stats.Invalidate(ctx)

	lead, err := s.upstream.GetLead(ctx, ts, id, campaignID)
	if err != nil {
		s.logger.Warn("reload lead after status change failed", zap.String("lead_id", id), zap.Error(err))
		return &models.Lead{ID: id, Status: status, CampaignID: campaignID}, nil
	}
	return lead, nil
}

// Notes lists the notes of a lead.
func (s *RecordsService) Notes(ctx context.Context, actor Actor, leadID, campaignID string) ([]models.Note, error) {
	if err := requireRole(actor, models.RoleSales); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("leadId", leadID)
	if campaignID != "" {
		q.Set("campaignId", campaignID)
	}
	return s.upstream.ListNotes(ctx, s.sessions.For(actor.SessionID), q)
}

// DeleteNote removes a note.
func (s *RecordsService) DeleteNote(ctx context.Context, actor Actor, id string) error {
	if err := requireRole(actor, models.RoleSales); err != nil {
		return err
	}
	if err := s.upstream.DeleteNote(ctx, s.sessions.For(actor.SessionID), id); err != nil {
		s.audit.Record(actor.entry(models.AuditActionNoteDelete, "note", id, models.AuditOutcomeRejected, nil))
		return err
	}
	s.audit.Record(actor.entry(models.AuditActionNoteDelete, "note", id, models.AuditOutcomeSuccess, nil))
	return nil
}

// Profile returns the signed-in user's own record.
func (s *RecordsService) Profile(ctx context.Context, actor Actor) (*models.Profile, error) {
	return s.upstream.GetProfile(ctx, s.sessions.For(actor.SessionID))
}

// UploadAvatar forwards an avatar image. An empty userID targets the actor; admins
// may replace another account's avatar.
func (s *RecordsService) UploadAvatar(ctx context.Context, actor Actor, userID, filename string, size int64, image io.Reader) (string, error) {
	if userID != "" && userID != actor.Identity.ID {
		if err := requireRole(actor, models.RoleAdmin); err != nil {
			return "", err
		}
	}
	if size > MaxAvatarBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("avatar must be at most %d MB", MaxAvatarBytes>>20))
	}
	if !avatarExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "", appErrors.Clone(appErrors.ErrValidation, "avatar must be a JPG, PNG, WEBP or GIF image")
	}

	target := userID
	if target == actor.Identity.ID {
		target = ""
	}
	avatarURL, err := s.upstream.UploadAvatar(ctx, s.sessions.For(actor.SessionID), target, filepath.Base(filename), io.LimitReader(image, MaxAvatarBytes+1))
	if err != nil {
		return "", err
	}
	resourceID := userID
	if resourceID == "" {
		resourceID = actor.Identity.ID
	}
	s.audit.Record(actor.entry(models.AuditActionProfileUpdate, "avatar", resourceID, models.AuditOutcomeSuccess, map[string]interface{}{"avatarUrl": avatarURL}))

	if target == "" && s.identity != nil {
		if _, err := s.identity.ReloadIdentity(ctx, actor.SessionID); err != nil {
			s.logger.Warn("identity reload after avatar upload failed", zap.Error(err))
		}
	} else {
		s.screens.Refresh(actor.SessionID, ScreenAccounts)
	}
	return avatarURL, nil
}

func requireRole(actor Actor, allowed ...models.Role) error {
	if !models.Authorized(actor.Identity.Role, allowed...) {
		return appErrors.Clone(appErrors.ErrForbidden, "not available for this role")
	}
	return nil
}
