package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/listing"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/export"
	"github.com/noah-isme/crm-dashboard/pkg/pagination"
)

// ScreenView is the state of one list screen as served to the dashboard.
type ScreenView struct {
	Screen     Screen            `json:"screen"`
	Query      listing.Query     `json:"query"`
	Items      interface{}       `json:"items"`
	TotalItems int               `json:"totalItems"`
	Window     pagination.Window `json:"window"`
	Loading    bool              `json:"loading"`
	Loaded     bool              `json:"loaded"`
	Error      string            `json:"error,omitempty"`
}

// ScreenChange is a batch of query edits coming from the dashboard.
type ScreenChange struct {
	Search   *string
	Filters  map[string]listing.FilterValue
	Page     *int
	PageSize *int
}

// ScreensConfig tunes the list controllers.
type ScreensConfig struct {
	PageSize   int
	Debounce   time.Duration
	MaxVisible int
	IdleTTL    time.Duration
	// WaitTimeout bounds how long a request waits for a fetch to settle before the
	// current, still loading, state is returned.
	WaitTimeout time.Duration
}

type screenHandle interface {
	apply(listing.Change)
	refresh()
	query() listing.Query
	view() ScreenView
	wait(ctx context.Context) (ScreenView, error)
	close()
}

type controllerHandle[T any] struct {
	screen Screen
	c      *listing.Controller[T]
}

func (h *controllerHandle[T]) apply(ch listing.Change) { h.c.Apply(ch) }
func (h *controllerHandle[T]) refresh()                { h.c.Refresh() }
func (h *controllerHandle[T]) query() listing.Query    { return h.c.Query() }
func (h *controllerHandle[T]) close()                  { h.c.Close() }

func (h *controllerHandle[T]) view() ScreenView {
	return toScreenView(h.screen, h.c.Snapshot())
}

func (h *controllerHandle[T]) wait(ctx context.Context) (ScreenView, error) {
	state, err := h.c.Wait(ctx)
	return toScreenView(h.screen, state), err
}

func toScreenView[T any](screen Screen, s listing.State[T]) ScreenView {
	return ScreenView{
		Screen:     screen,
		Query:      s.Query,
		Items:      s.Items,
		TotalItems: s.TotalItems,
		Window:     s.Window,
		Loading:    s.Loading,
		Loaded:     s.Loaded,
		Error:      s.Error,
	}
}

type screenKey struct {
	session string
	screen  Screen
}

type screenEntry struct {
	handle   screenHandle
	lastUsed time.Time
}

// ScreensService keeps one list controller per session and screen. Controllers are
// created on first use, dropped when their session ends and swept when idle.
type ScreensService struct {
	kinds    map[Screen]screenKind
	sessions *session.Manager
	cache    *CacheService
	audit    *AuditService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ScreensConfig
	now      func() time.Time

	mu          sync.Mutex
	entries     map[screenKey]*screenEntry
	unsubscribe func()
}

// NewScreensService constructs the registry and subscribes it to session logouts.
func NewScreensService(upstream screensUpstream, sessions *session.Manager, cache *CacheService, audit *AuditService, metrics *MetricsService, logger *zap.Logger, cfg ScreensConfig) *ScreensService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = listing.DefaultPageSize
	}
	if cfg.MaxVisible <= 0 {
		cfg.MaxVisible = pagination.DefaultMaxVisible
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	s := &ScreensService{
		kinds:    screenKinds(upstream),
		sessions: sessions,
		cache:    cache,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		entries:  map[screenKey]*screenEntry{},
	}
	s.unsubscribe = sessions.Subscribe(func(_ context.Context, id, reason string) {
		if n := s.Drop(id); n > 0 {
			s.logger.Debug("dropped screens of ended session", zap.String("session_id", id), zap.String("reason", reason), zap.Int("screens", n))
		}
	})
	return s
}

// Spec returns the description of a screen.
func (s *ScreensService) Spec(name string) (ScreenSpec, error) {
	return LookupScreen(name)
}

// View returns the screen state, loading it on first access and waiting for the
// current fetch to settle.
func (s *ScreensService) View(ctx context.Context, sessionID string, role models.Role, name string) (*ScreenView, error) {
	h, err := s.handle(sessionID, role, name)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, h)
}

// Apply edits the query of a screen and returns the resulting state.
func (s *ScreensService) Apply(ctx context.Context, sessionID string, role models.Role, name string, change ScreenChange) (*ScreenView, error) {
	spec, err := LookupScreen(name)
	if err != nil {
		return nil, err
	}
	ch := listing.Change{Search: change.Search, Page: change.Page}
	if change.PageSize != nil {
		size := pagination.SnapPageSize(*change.PageSize)
		ch.PageSize = &size
	}
	if len(change.Filters) > 0 {
		ch.Filters = make(map[string]listing.FilterValue, len(change.Filters))
		for id, v := range change.Filters {
			normalized, err := spec.normalize(id, v)
			if err != nil {
				return nil, err
			}
			ch.Filters[id] = normalized
		}
	}

	h, err := s.handle(sessionID, role, name)
	if err != nil {
		return nil, err
	}
	h.apply(ch)
	return s.settle(ctx, h)
}

// Retry re-issues the current query of a screen unchanged.
func (s *ScreensService) Retry(ctx context.Context, sessionID string, role models.Role, name string) (*ScreenView, error) {
	h, err := s.handle(sessionID, role, name)
	if err != nil {
		return nil, err
	}
	h.refresh()
	return s.settle(ctx, h)
}

// DeleteItem removes a record upstream and refreshes the screen. When the deleted
// record was the last one of the last page the controller clamps to the new last page.
func (s *ScreensService) DeleteItem(ctx context.Context, actor Actor, name, id string) (*ScreenView, error) {
	h, err := s.handle(actor.SessionID, actor.Identity.Role, name)
	if err != nil {
		return nil, err
	}
	kind := s.kinds[Screen(name)]
	if err := kind.remove(ctx, s.sessions.For(actor.SessionID), id); err != nil {
		s.audit.Record(actor.entry(deleteAction(Screen(name)), kind.spec().resource(), id, models.AuditOutcomeRejected, nil))
		return nil, err
	}
	s.audit.Record(actor.entry(deleteAction(Screen(name)), kind.spec().resource(), id, models.AuditOutcomeSuccess, nil))
	_ = s.cache.Invalidate(ctx, statsCachePattern)

	h.refresh()
	return s.settle(ctx, h)
}

// Refresh reloads a screen of a session if it is open, e.g. after a form saved a record.
func (s *ScreensService) Refresh(sessionID string, name Screen) {
	if s == nil {
		return
	}
	s.mu.Lock()
	e, ok := s.entries[screenKey{session: sessionID, screen: name}]
	s.mu.Unlock()
	if ok {
		e.handle.refresh()
	}
}

// Dataset collects every page of the screen's current query, up to maxRows, for export.
func (s *ScreensService) Dataset(ctx context.Context, sessionID string, role models.Role, name string, maxRows, pageSize int) (export.Dataset, error) {
	h, err := s.handle(sessionID, role, name)
	if err != nil {
		return export.Dataset{}, err
	}
	kind := s.kinds[Screen(name)]
	spec := kind.spec()
	if maxRows <= 0 {
		maxRows = 5000
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	req := h.query().Request()
	req.Limit = pageSize
	ts := s.sessions.For(sessionID)
	data := export.Dataset{Title: spec.Title, Columns: spec.Columns}
	for page := 1; len(data.Rows) < maxRows; page++ {
		req.Page = page
		rows, total, err := kind.rows(ctx, ts, req)
		if err != nil {
			return export.Dataset{}, err
		}
		if len(rows) > pageSize {
			// the source ignored the limit and returned everything
			data.Rows = append(data.Rows, rows...)
			break
		}
		data.Rows = append(data.Rows, rows...)
		if len(rows) < pageSize || page*pageSize >= total {
			break
		}
	}
	if len(data.Rows) > maxRows {
		data.Rows = data.Rows[:maxRows]
	}
	return data, nil
}

// Drop closes every screen of a session and returns how many were open.
func (s *ScreensService) Drop(sessionID string) int {
	s.mu.Lock()
	var closing []screenHandle
	for k, e := range s.entries {
		if k.session == sessionID {
			closing = append(closing, e.handle)
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()

	for _, h := range closing {
		h.close()
	}
	return len(closing)
}

// Sweep closes screens unused for longer than the idle TTL.
func (s *ScreensService) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	s.mu.Lock()
	var closing []screenHandle
	for k, e := range s.entries {
		if e.lastUsed.Before(cutoff) {
			closing = append(closing, e.handle)
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()

	for _, h := range closing {
		h.close()
	}
	return len(closing)
}

// Run sweeps idle screens every interval until the context ends.
func (s *ScreensService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("swept idle screens", zap.Int("screens", n))
			}
		}
	}
}

// Open reports how many controllers are alive.
func (s *ScreensService) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close unsubscribes from the session manager and closes every controller.
func (s *ScreensService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	entries := s.entries
	s.entries = map[screenKey]*screenEntry{}
	s.mu.Unlock()
	for _, e := range entries {
		e.handle.close()
	}
}

func (s *ScreensService) handle(sessionID string, role models.Role, name string) (screenHandle, error) {
	kind, ok := s.kinds[Screen(name)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown screen %q", name))
	}
	spec := kind.spec()
	if !models.Authorized(role, spec.Roles...) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s is not available for this role", spec.Title))
	}

	key := screenKey{session: sessionID, screen: spec.Name}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.lastUsed = s.now()
		return e.handle, nil
	}

	h := kind.open(s.sessions.For(sessionID),
		listing.WithPageSize(s.cfg.PageSize),
		listing.WithDebounce(s.cfg.Debounce),
		listing.WithMaxVisible(s.cfg.MaxVisible),
		listing.WithLogger(s.logger.With(zap.String("screen", string(spec.Name)), zap.String("session_id", sessionID))),
		listing.WithObserver(s.metrics.ListObserver(string(spec.Name))),
		listing.WithErrorMessage(listErrorMessage(spec.Title)),
	)
	s.entries[key] = &screenEntry{handle: h, lastUsed: s.now()}
	h.refresh()
	return h, nil
}

// settle waits for the screen to finish loading. A request deadline is not an error:
// the caller gets the still-loading state and polls again.
func (s *ScreensService) settle(ctx context.Context, h screenHandle) (*ScreenView, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
	defer cancel()
	view, err := h.wait(waitCtx)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &view, nil
}

// listErrorMessage turns fetch failures into the inline message shown above a table.
func listErrorMessage(title string) func(error) string {
	return func(err error) string {
		var apiErr *client.APIError
		switch {
		case errors.Is(err, appErrors.ErrSessionExpired):
			return "Your session has expired. Please sign in again."
		case errors.Is(err, appErrors.ErrUnavailable):
			return "The CRM service is not responding. Please try again."
		case errors.As(err, &apiErr) && apiErr.Message != "":
			return apiErr.Message
		default:
			return fmt.Sprintf("Failed to load %s.", title)
		}
	}
}

func (s ScreenSpec) resource() string {
	switch s.Name {
	case ScreenAccounts:
		return "account"
	case ScreenCampaigns:
		return "campaign"
	default:
		return "lead"
	}
}

func deleteAction(screen Screen) string {
	switch screen {
	case ScreenAccounts:
		return models.AuditActionAccountDelete
	case ScreenCampaigns:
		return models.AuditActionCampaignDelete
	default:
		return "DELETE"
	}
}
