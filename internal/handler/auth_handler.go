package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/dto"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*service.LoginResult, error)
	Logout(ctx context.Context, sessionID, ip, userAgent string) error
	Me(ctx context.Context, sessionID string) (*models.Identity, error)
}

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookie  CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "crm_session"
	}
	return &AuthHandler{service: svc, cookie: cookie}
}

// Login godoc
// @Summary Sign in
// @Description Authenticate against the CRM API and open a dashboard session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, res.Token, maxAge, "/", "", h.cookie.Secure, true)

	expiresAt := res.ExpiresAt
	response.JSON(c, http.StatusOK, dto.SessionResponse{
		Identity:  res.Identity,
		Home:      res.Identity.Role.HomePath(),
		ExpiresAt: &expiresAt,
	}, nil)
}

// Logout godoc
// @Summary Sign out
// @Description Revoke the upstream refresh token and clear the session cookie
// @Tags Authentication
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if actor, ok := actorFromContext(c); ok {
		if err := h.service.Logout(c.Request.Context(), actor.SessionID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
			response.Error(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Description Returns the identity bound to the session cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}
	identity, err := h.service.Me(c.Request.Context(), actor.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SessionResponse{Identity: *identity, Home: identity.Role.HomePath()}, nil)
}
