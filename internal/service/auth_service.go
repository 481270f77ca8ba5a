package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

type authUpstream interface {
	Login(ctx context.Context, email, password string) (*client.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, ts client.TokenSource) (*models.Identity, error)
}

// AuthConfig defines configuration for the session cookie.
type AuthConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// LoginResult is returned to the handler after a successful sign in.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  models.Identity
}

// AuthService signs users in against the CRM API and binds the upstream tokens to a
// server-side session referenced by a signed cookie.
type AuthService struct {
	upstream  authUpstream
	sessions  *session.Manager
	validator *validator.Validate
	audit     *AuditService
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(upstream authUpstream, sessions *session.Manager, validate *validator.Validate, audit *AuditService, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TTL <= 0 {
		config.TTL = sessions.TTL()
	}
	if config.Issuer == "" {
		config.Issuer = "crm-dashboard"
	}
	return &AuthService{upstream: upstream, sessions: sessions, validator: validate, audit: audit, logger: logger, config: config}
}

// Login authenticates the user upstream and opens a session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*LoginResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	res, err := s.upstream.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.audit.Record(AuditEntry{Action: models.AuditActionLogin, Resource: "auth", Outcome: models.AuditOutcomeRejected,
			Values: map[string]interface{}{"email": req.Email}, IP: req.IP, UserAgent: req.UserAgent})
		return nil, err
	}

	identity := models.Identity{
		ID:          res.UserID,
		Role:        res.Role,
		DisplayName: res.FullName,
		Email:       req.Email,
		AvatarURL:   res.AvatarURL,
	}
	fillFromToken(&identity, res.AccessToken)

	sess, err := s.sessions.Create(ctx, res.AccessToken, res.RefreshToken, identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store session")
	}

	if !identity.Authenticated() || identity.DisplayName == "" {
		me, err := s.upstream.Me(ctx, s.sessions.For(sess.ID))
		if err != nil {
			s.logger.Warn("identity lookup after login failed", zap.Error(err))
		} else {
			identity = mergeIdentity(identity, *me)
			if err := s.sessions.UpdateIdentity(ctx, sess.ID, identity); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store session")
			}
		}
	}
	if !identity.Authenticated() {
		_ = s.sessions.Clear(ctx, sess.ID, session.ReasonLogout)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account role is not supported by the dashboard")
	}

	token, expiresAt, err := s.SignSession(sess.ID, identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session")
	}

	s.audit.Record(AuditEntry{UserID: identity.ID, Action: models.AuditActionLogin, Resource: "auth", ResourceID: identity.ID, IP: req.IP, UserAgent: req.UserAgent})
	s.logger.Info("user signed in", zap.String("user_id", identity.ID), zap.String("role", string(identity.Role)))

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

// Logout revokes the refresh token upstream and clears the session. Upstream
// failures are logged; the local session is always cleared.
func (s *AuthService) Logout(ctx context.Context, sessionID, ip, userAgent string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load session")
	}
	if sess.RefreshToken != "" {
		if err := s.upstream.Logout(ctx, sess.RefreshToken); err != nil {
			s.logger.Warn("upstream logout failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if err := s.sessions.Clear(ctx, sessionID, session.ReasonLogout); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to clear session")
	}
	s.audit.Record(AuditEntry{UserID: sess.Identity.ID, Action: models.AuditActionLogout, Resource: "auth", ResourceID: sess.Identity.ID, IP: ip, UserAgent: userAgent})
	return nil
}

// Me returns the identity bound to a session.
func (s *AuthService) Me(ctx context.Context, sessionID string) (*models.Identity, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, appErrors.ErrSessionExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load session")
	}
	identity := sess.Identity
	return &identity, nil
}

// ReloadIdentity refreshes the cached identity from the CRM API, e.g. after a profile edit.
func (s *AuthService) ReloadIdentity(ctx context.Context, sessionID string) (*models.Identity, error) {
	current, err := s.Me(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	me, err := s.upstream.Me(ctx, s.sessions.For(sessionID))
	if err != nil {
		return nil, err
	}
	identity := mergeIdentity(*current, *me)
	if err := s.sessions.UpdateIdentity(ctx, sessionID, identity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store session")
	}
	return &identity, nil
}

// SignSession issues the cookie value for a session.
func (s *AuthService) SignSession(sessionID string, identity models.Identity) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.config.TTL)
	claims := models.SessionClaims{
		SessionID: sessionID,
		Role:      identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseSession validates a cookie value and returns its claims.
func (s *AuthService) ParseSession(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.SessionID == "" {
		return nil, appErrors.ErrSessionExpired
	}
	return claims, nil
}

// fillFromToken completes missing identity fields from the upstream access token.
// The token is only read, never trusted for authorization: the CRM API verifies it.
func fillFromToken(identity *models.Identity, accessToken string) {
	if identity.ID != "" && identity.Role.Valid() {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return
	}
	if identity.ID == "" {
		for _, key := range []string{"id", "userId", "sub"} {
			if v, ok := claims[key].(string); ok && v != "" {
				identity.ID = v
				break
			}
		}
	}
	if !identity.Role.Valid() {
		if v, ok := claims["role"].(string); ok {
			if role, ok := models.ParseRole(v); ok {
				identity.Role = role
			}
		}
	}
}

func mergeIdentity(base, fresh models.Identity) models.Identity {
	if fresh.ID != "" {
		base.ID = fresh.ID
	}
	if fresh.Role.Valid() {
		base.Role = fresh.Role
	}
	if fresh.DisplayName != "" {
		base.DisplayName = fresh.DisplayName
	}
	if fresh.Email != "" {
		base.Email = fresh.Email
	}
	if fresh.AvatarURL != "" {
		base.AvatarURL = fresh.AvatarURL
	}
	return base
}
