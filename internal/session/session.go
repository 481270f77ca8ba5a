// Package session stores the upstream tokens and identity of each signed-in user and
// is the only place those tokens are read, replaced or invalidated.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Reasons passed to logout subscribers.
const (
	ReasonLogout        = "logout"
	ReasonRefreshFailed = "refresh_failed"
	ReasonExpired       = "expired"
	ReasonRejectedTwice = "unauthorized_after_refresh"
)

// Session is the server-side state behind one session cookie.
type Session struct {
	ID           string          `json:"id"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	Identity     models.Identity `json:"identity"`
	CreatedAt    time.Time       `json:"createdAt"`
	RefreshedAt  time.Time       `json:"refreshedAt,omitempty"`
}

// Backend persists sessions.
type Backend interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	// Delete removes id and reports whether a live session was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// Listener is notified once for every cleared session.
type Listener func(ctx context.Context, id, reason string)

// Manager is the single accessor for session state.
type Manager struct {
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewManager constructs a manager.
func NewManager(backend Backend, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		backend:   backend,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		listeners: map[uint64]Listener{},
	}
}

// TTL returns the lifetime applied on every write.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create stores a new session for a successful login.
func (m *Manager) Create(ctx context.Context, accessToken, refreshToken string, identity models.Identity) (*Session, error) {
	s := &Session{
		ID:           uuid.NewString(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Identity:     identity,
		CreatedAt:    m.now().UTC(),
	}
	if err := m.Set(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads a session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return m.backend.Load(ctx, id)
}

// Set writes a session and renews its TTL.
func (m *Manager) Set(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session id is required")
	}
	return m.backend.Save(ctx, s, m.ttl)
}

// UpdateAccessToken replaces the access token after a refresh.
func (m *Manager) UpdateAccessToken(ctx context.Context, id, token string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.AccessToken = token
	s.RefreshedAt = m.now().UTC()
	return m.Set(ctx, s)
}

// UpdateIdentity replaces the cached identity, e.g. after a profile edit.
func (m *Manager) UpdateIdentity(ctx context.Context, id string, identity models.Identity) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Identity = identity
	return m.Set(ctx, s)
}

// Clear deletes a session and notifies every listener. Clearing an unknown session
// is not an error and does not notify. Only the caller whose delete removed the
// session notifies, so concurrent clears notify once.
func (m *Manager) Clear(ctx context.Context, id, reason string) error {
	if id == "" {
		return nil
	}
	removed, err := m.backend.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	m.logger.Info("session cleared", zap.String("session_id", id), zap.String("reason", reason))

	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, id, reason)
	}
	return nil
}

// Subscribe registers a logout listener and returns a function removing it.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Accessor binds the manager to one session id. It reads through the manager on
// every call and never caches tokens.
type Accessor struct {
	manager *Manager
	id      string
}

// For returns the accessor of session id.
func (m *Manager) For(id string) *Accessor {
	return &Accessor{manager: m, id: id}
}

// Key identifies the session.
func (a *Accessor) Key() string {
	return a.id
}

// AccessToken returns the current access token.
func (a *Accessor) AccessToken(ctx context.Context) (string, error) {
	s, err := a.manager.Get(ctx, a.id)
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

// RefreshToken returns the current refresh token.
func (a *Accessor) RefreshToken(ctx context.Context) (string, error) {
	s, err := a.manager.Get(ctx, a.id)
	if err != nil {
		return "", err
	}
	return s.RefreshToken, nil
}

// SetAccessToken stores a refreshed access token.
func (a *Accessor) SetAccessToken(ctx context.Context, token string) error {
	return a.manager.UpdateAccessToken(ctx, a.id, token)
}

// Clear ends the session.
func (a *Accessor) Clear(ctx context.Context, reason string) error {
	return a.manager.Clear(ctx, a.id, reason)
}
