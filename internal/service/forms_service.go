package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/form"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

// DraftView is an open form as served to the dashboard.
type DraftView struct {
	ID           string            `json:"id"`
	Form         form.Name         `json:"form"`
	RecordID     string            `json:"recordId,omitempty"`
	Schema       form.Schema       `json:"schema"`
	Fields       map[string]any    `json:"fields"`
	GeneralError string            `json:"generalError,omitempty"`
	FieldErrors  map[string]string `json:"fieldErrors"`
	State        form.State        `json:"state"`
}

// OpenForm asks for a new draft. RecordID selects edit mode for forms that support it;
// for lead notes it is the lead id and CampaignID its campaign.
type OpenForm struct {
	Form       form.Name
	RecordID   string
	CampaignID string
}

type formsUpstream interface {
	GetUser(ctx context.Context, ts client.TokenSource, id string) (*models.Account, error)
	CreateUser(ctx context.Context, ts client.TokenSource, payload map[string]any) (*models.Account, error)
	UpdateUser(ctx context.Context, ts client.TokenSource, id string, payload map[string]any) (*models.Account, error)
	GetCampaign(ctx context.Context, ts client.TokenSource, id string) (*models.Campaign, error)
	CreateCampaign(ctx context.Context, ts client.TokenSource, payload map[string]any) error
	UpdateCampaign(ctx context.Context, ts client.TokenSource, id string, payload map[string]any) error
	GetProfile(ctx context.Context, ts client.TokenSource) (*models.Profile, error)
	UpdateProfile(ctx context.Context, ts client.TokenSource, payload map[string]any) error
	ChangePassword(ctx context.Context, ts client.TokenSource, payload map[string]any) error
	CreateNote(ctx context.Context, ts client.TokenSource, payload map[string]any) (*models.Note, error)
}

type identityReloader interface {
	ReloadIdentity(ctx context.Context, sessionID string) (*models.Identity, error)
}

var formRoles = map[form.Name][]models.Role{
	form.AccountCreate:  {models.RoleAdmin},
	form.AccountEdit:    {models.RoleAdmin},
	form.Campaign:       {models.RoleManager},
	form.Profile:        nil,
	form.ChangePassword: nil,
	form.LeadNote:       {models.RoleSales},
}

type draft struct {
	id         string
	owner      string
	name       form.Name
	recordID   string
	campaignID string
	rec        *form.Reconciler
	lastUsed   time.Time
}

// FormsService keeps the open form drafts of every session and submits them upstream.
type FormsService struct {
	upstream  formsUpstream
	sessions  *session.Manager
	identity  identityReloader
	screens   *ScreensService
	stats     *StatsService
	audit     *AuditService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	idleTTL   time.Duration
	now       func() time.Time

	mu          sync.Mutex
	drafts      map[string]*draft
	unsubscribe func()
}

// NewFormsService constructs the draft registry and subscribes it to session logouts.
func NewFormsService(upstream formsUpstream, sessions *session.Manager, identity identityReloader, screens *ScreensService, stats *StatsService,
	audit *AuditService, metrics *MetricsService, logger *zap.Logger, idleTTL time.Duration) *FormsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	s := &FormsService{
		upstream:  upstream,
		sessions:  sessions,
		identity:  identity,
		screens:   screens,
		stats:     stats,
		audit:     audit,
		metrics:   metrics,
		validator: form.NewValidator(),
		logger:    logger,
		idleTTL:   idleTTL,
		now:       time.Now,
		drafts:    map[string]*draft{},
	}
	s.unsubscribe = sessions.Subscribe(func(_ context.Context, id, _ string) {
		s.Drop(id)
	})
	return s
}

// Open creates a draft, preloading the record in edit mode.
func (s *FormsService) Open(ctx context.Context, actor Actor, req OpenForm) (*DraftView, error) {
	schema, ok := form.Lookup(req.Form)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown form %q", req.Form))
	}
	if !models.Authorized(actor.Identity.Role, formRoles[req.Form]...) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "form is not available for this role")
	}

	initial, err := s.initialFields(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	d := &draft{
		id:         uuid.NewString(),
		owner:      actor.SessionID,
		name:       req.Form,
		recordID:   req.RecordID,
		campaignID: req.CampaignID,
		rec:        form.NewReconciler(schema, initial, form.WithValidator(s.validator), form.WithLogger(s.logger)),
		lastUsed:   s.now(),
	}
	s.mu.Lock()
	s.drafts[d.id] = d
	s.mu.Unlock()
	return d.view(), nil
}

// Get returns a draft of the actor's session.
func (s *FormsService) Get(actor Actor, id string) (*DraftView, error) {
	d, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	return d.view(), nil
}

// Update applies field edits. Unknown fields are rejected before any edit is applied.
func (s *FormsService) Update(actor Actor, id string, fields map[string]any) (*DraftView, error) {
	d, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	schema := d.rec.Schema()
	for name := range fields {
		if _, ok := schema.Field(name); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field %q", name))
		}
	}
	for name, value := range fields {
		d.rec.UpdateField(name, value)
	}
	return d.view(), nil
}

// Validate runs the local rules without changing the draft.
func (s *FormsService) Validate(actor Actor, id string) (map[string]string, error) {
	d, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	return d.rec.ValidateLocally(), nil
}

// Submit validates the draft and saves it upstream. A saved draft is closed.
// Invalid or rejected drafts come back with ErrUnprocessable and their errors.
func (s *FormsService) Submit(ctx context.Context, actor Actor, id string) (*DraftView, error) {
	d, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}

	outcome, saveErr := d.rec.Submit(ctx, s.saveFunc(actor, d))
	s.metrics.ObserveFormSubmit(string(d.name), string(outcome))
	view := d.view()

	switch outcome {
	case form.OutcomeBusy:
		return view, appErrors.ErrBusy
	case form.OutcomeInvalid:
		return view, appErrors.Clone(appErrors.ErrUnprocessable, view.GeneralError)
	case form.OutcomeRejected:
		s.audit.Record(actor.entry(d.action(), d.resource(), d.recordID, models.AuditOutcomeRejected, view.Fields))
		if errors.Is(saveErr, appErrors.ErrSessionExpired) {
			return view, appErrors.ErrSessionExpired
		}
		return view, appErrors.Clone(appErrors.ErrUnprocessable, view.GeneralError)
	}

	s.audit.Record(actor.entry(d.action(), d.resource(), d.recordID, models.AuditOutcomeSuccess, view.Fields))
	s.afterSave(ctx, actor, d)
	s.Close(actor, id)
	return view, nil
}

// Close discards a draft. Closing an unknown draft is not an error.
func (s *FormsService) Close(actor Actor, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[id]; ok && d.owner == actor.SessionID {
		delete(s.drafts, id)
	}
}

// Drop discards every draft of a session.
func (s *FormsService) Drop(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.drafts {
		if d.owner == sessionID {
			delete(s.drafts, id)
			n++
		}
	}
	return n
}

// Sweep discards drafts untouched for longer than the idle TTL.
func (s *FormsService) Sweep() int {
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.drafts {
		if d.lastUsed.Before(cutoff) && d.rec.State() != form.StateSubmitting {
			delete(s.drafts, id)
			n++
		}
	}
	return n
}

// Shutdown unsubscribes from the session manager.
func (s *FormsService) Shutdown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *FormsService) lookup(actor Actor, id string) (*draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok || d.owner != actor.SessionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
	}
	d.lastUsed = s.now()
	return d, nil
}

func (s *FormsService) initialFields(ctx context.Context, actor Actor, req OpenForm) (map[string]any, error) {
	ts := s.sessions.For(actor.SessionID)
	switch req.Form {
	case form.AccountEdit:
		if req.RecordID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recordId is required to edit an account")
		}
		a, err := s.upstream.GetUser(ctx, ts, req.RecordID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"fullname": a.FullName,
			"email":    a.Email,
			"phone":    a.Phone,
			"role":     string(a.Role),
			"address":  a.Address,
			"status":   string(a.Status),
		}, nil
	case form.AccountCreate:
		return map[string]any{"role": string(models.RoleSales)}, nil
	case form.Campaign:
		if req.RecordID == "" {
			return nil, nil
		}
		c, err := s.upstream.GetCampaign(ctx, ts, req.RecordID)
		if err != nil {
			return nil, err
		}
		emails := c.InvitedEmails
		if emails == nil {
			emails = []string{}
		}
		return map[string]any{
			"name":          c.Name,
			"description":   c.Description,
			"targetLead":    c.TargetLead,
			"periodStart":   c.PeriodStart,
			"periodEnd":     c.PeriodEnd,
			"invitedEmails": emails,
		}, nil
	case form.Profile:
		p, err := s.upstream.GetProfile(ctx, ts)
		if err != nil {
			return nil, err
		}
		return map[string]any{"fullname": p.FullName, "phone": p.Phone, "address": p.Address}, nil
	case form.LeadNote:
		if req.RecordID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recordId (lead id) is required for a note")
		}
	}
	return nil, nil
}

func (s *FormsService) saveFunc(actor Actor, d *draft) form.SaveFunc {
	ts := s.sessions.For(actor.SessionID)
	return func(ctx context.Context, fields map[string]any) error {
		switch d.name {
		case form.AccountCreate:
			_, err := s.upstream.CreateUser(ctx, ts, accountPayload(fields, true))
			return err
		case form.AccountEdit:
			_, err := s.upstream.UpdateUser(ctx, ts, d.recordID, accountPayload(fields, false))
			return err
		case form.Campaign:
			payload := campaignPayload(fields)
			if d.recordID == "" {
				return s.upstream.CreateCampaign(ctx, ts, payload)
			}
			return s.upstream.UpdateCampaign(ctx, ts, d.recordID, payload)
		case form.Profile:
			return s.upstream.UpdateProfile(ctx, ts, stringPayload(fields, "fullname", "phone", "address"))
		case form.ChangePassword:
			return s.upstream.ChangePassword(ctx, ts, stringPayload(fields, "currentPassword", "newPassword", "confirmPassword"))
		case form.LeadNote:
			payload := stringPayload(fields, "content")
			payload["leadId"] = d.recordID
			if d.campaignID != "" {
				payload["campaignId"] = d.campaignID
			}
			_, err := s.upstream.CreateNote(ctx, ts, payload)
			return err
		}
		return fmt.Errorf("no save operation for form %s", d.name)
	}
}

func (s *FormsService) afterSave(ctx context.Context, actor Actor, d *draft) {
	switch d.name {
	case form.AccountCreate, form.AccountEdit:
		s.screens.Refresh(actor.SessionID, ScreenAccounts)
		s.stats.Invalidate(ctx)
	case form.Campaign:
		s.screens.Refresh(actor.SessionID, ScreenCampaigns)
		s.stats.Invalidate(ctx)
	case form.Profile:
		if s.identity != nil {
			if _, err := s.identity.ReloadIdentity(ctx, actor.SessionID); err != nil {
				s.logger.Warn("identity reload after profile update failed", zap.Error(err))
			}
		}
	}
}

func (d *draft) view() *DraftView {
	snap := d.rec.Draft()
	return &DraftView{
		ID:           d.id,
		Form:         d.name,
		RecordID:     d.recordID,
		Schema:       d.rec.Schema(),
		Fields:       snap.Fields,
		GeneralError: snap.GeneralError,
		FieldErrors:  snap.FieldErrors,
		State:        snap.State,
	}
}

func (d *draft) resource() string {
	switch d.name {
	case form.AccountCreate, form.AccountEdit:
		return "account"
	case form.Campaign:
		return "campaign"
	case form.LeadNote:
		return "note"
	default:
		return "profile"
	}
}

func (d *draft) action() string {
	switch d.name {
	case form.AccountCreate:
		return models.AuditActionAccountCreate
	case form.AccountEdit:
		return models.AuditActionAccountUpdate
	case form.Campaign:
		if d.recordID == "" {
			return models.AuditActionCampaignCreate
		}
		return models.AuditActionCampaignUpdate
	case form.LeadNote:
		return models.AuditActionNoteCreate
	case form.ChangePassword:
		return models.AuditActionPasswordChange
	default:
		return models.AuditActionProfileUpdate
	}
}

// accountPayload renders account fields in the CRM API's vocabulary: upstream role
// casing and an isActive flag instead of a status tag.
func accountPayload(fields map[string]any, create bool) map[string]any {
	keys := []string{"fullname", "email", "phone", "address"}
	if create {
		keys = append(keys, "password")
	}
	payload := stringPayload(fields, keys...)
	if role, ok := models.ParseRole(fmt.Sprint(fields["role"])); ok {
		payload["role"] = role.Upstream()
	}
	if !create {
		if status, ok := models.ParseAccountStatus(fmt.Sprint(fields["status"])); ok {
			payload["isActive"] = status == models.AccountActive
		}
	}
	return payload
}

func campaignPayload(fields map[string]any) map[string]any {
	payload := stringPayload(fields, "name", "description", "periodStart", "periodEnd")
	if n, ok := fields["targetLead"].(float64); ok {
		payload["targetLead"] = int(math.Round(n))
	}
	emails := []string{}
	var raw []string
	switch list := fields["invitedEmails"].(type) {
	case []string:
		raw = list
	case []any:
		for _, e := range list {
			raw = append(raw, fmt.Sprint(e))
		}
	}
	for _, e := range raw {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	payload["invitedEmails"] = emails
	return payload
}

func stringPayload(fields map[string]any, keys ...string) map[string]any {
	payload := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			payload[k] = strings.TrimSpace(s)
			continue
		}
		payload[k] = v
	}
	return payload
}
