package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

type wireAvatar struct {
	AvatarURL    string `json:"avatarUrl"`
	AvatarURLAlt string `json:"avatar_url"`
	URL          string `json:"url"`
}

func (c *Client) profileUser(ctx context.Context, ts TokenSource) (wireUser, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/users/profile", "/api/users/profile"))
	if err != nil {
		return wireUser{}, err
	}
	return decodeObject[wireUser](body, "user")
}

// GetProfile loads the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context, ts TokenSource) (*models.Profile, error) {
	w, err := c.profileUser(ctx, ts)
	if err != nil {
		return nil, err
	}
	p := w.profile()
	return &p, nil
}

// Me resolves the identity behind the session's access token.
func (c *Client) Me(ctx context.Context, ts TokenSource) (*models.Identity, error) {
	w, err := c.profileUser(ctx, ts)
	if err != nil {
		return nil, err
	}
	id := w.identity()
	return &id, nil
}

// UpdateProfile updates the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, ts TokenSource, payload map[string]any) error {
	req, err := newRequest(http.MethodPut, "PUT /api/users/profile", "/api/users/profile").withJSON(payload)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, ts, req)
	return err
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, ts TokenSource, payload map[string]any) error {
	req, err := newRequest(http.MethodPut, "PUT /api/users/change-password", "/api/users/change-password").withJSON(payload)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, ts, req)
	return err
}

// UploadAvatar uploads an avatar image for userID, or for the signed-in user when
// userID is empty, and returns the new avatar URL.
func (c *Client) UploadAvatar(ctx context.Context, ts TokenSource, userID, filename string, image io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", filename)
	if err != nil {
		return "", fmt.Errorf("client: build multipart: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return "", fmt.Errorf("client: read avatar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("client: build multipart: %w", err)
	}

	route, path := "POST /api/upload/avatar", "/api/upload/avatar"
	if userID != "" {
		route, path = "POST /api/upload/avatar/:userId", "/api/upload/avatar/"+url.PathEscape(userID)
	}
	req := newRequest(http.MethodPost, route, path)
	req.body = buf.Bytes()
	req.contentType = mw.FormDataContentType()

	body, err := c.call(ctx, ts, req)
	if err != nil {
		return "", err
	}
	w, err := decodeObject[wireAvatar](body, "")
	if err != nil {
		return "", err
	}
	return firstNonEmpty(w.AvatarURL, w.AvatarURLAlt, w.URL), nil
}
