package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

// LoginResult is what the upstream returns for valid credentials.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Role         models.Role
	FullName     string
	AvatarURL    string
}

type wireLogin struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	FullName     string `json:"fullname"`
	AvatarURL    string `json:"avatarUrl"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req, err := newRequest(http.MethodPost, "POST /api/authentications", "/api/authentications").
		withJSON(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req.anonymous = true

	body, err := c.call(ctx, nil, req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			return nil, appErrors.Wrap(apiErr, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, apiErr.Message)
		}
		return nil, err
	}

	w, err := decodeObject[wireLogin](body, "")
	if err != nil {
		return nil, err
	}
	if w.AccessToken == "" {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "login response carried no access token")
	}
	role, _ := models.ParseRole(w.Role)
	return &LoginResult{
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		UserID:       firstNonEmpty(w.ID, w.UserID),
		Role:         role,
		FullName:     strings.TrimSpace(w.FullName),
		AvatarURL:    strings.TrimSpace(w.AvatarURL),
	}, nil
}

// Logout revokes the refresh token upstream.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	req, err := newRequest(http.MethodDelete, "DELETE /api/authentications", "/api/authentications").
		withJSON(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return err
	}
	req.anonymous = true
	_, err = c.call(ctx, nil, req)
	return err
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	req, err := newRequest(http.MethodPut, "PUT /api/authentications", "/api/authentications").
		withJSON(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", err
	}
	req.anonymous = true

	body, err := c.call(ctx, nil, req)
	if err != nil {
		return "", err
	}
	var w struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(unwrap(body), &w); err != nil || w.AccessToken == "" {
		return "", appErrors.Clone(appErrors.ErrUpstream, "refresh response carried no access token")
	}
	return w.AccessToken, nil
}
