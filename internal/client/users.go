package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

// ListUsers returns one page of accounts and the size of the full matching set.
func (c *Client) ListUsers(ctx context.Context, ts TokenSource, q url.Values) ([]models.Account, int, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/users", "/api/users").withQuery(q))
	if err != nil {
		return nil, 0, err
	}
	items, total, err := decodeList[wireUser](body, "users")
	if err != nil {
		return nil, 0, err
	}
	return mapAll(items, wireUser.account), total, nil
}

// GetUser loads one account.
func (c *Client) GetUser(ctx context.Context, ts TokenSource, id string) (*models.Account, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/users/:id", "/api/users/"+url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireUser](body, "user")
	if err != nil {
		return nil, err
	}
	a := w.account()
	return &a, nil
}

// CreateUser creates an account from an upstream payload.
func (c *Client) CreateUser(ctx context.Context, ts TokenSource, payload map[string]any) (*models.Account, error) {
	return c.writeUser(ctx, ts, http.MethodPost, "POST /api/users", "/api/users", payload)
}

// UpdateUser updates an account.
func (c *Client) UpdateUser(ctx context.Context, ts TokenSource, id string, payload map[string]any) (*models.Account, error) {
	return c.writeUser(ctx, ts, http.MethodPut, "PUT /api/users/:id", "/api/users/"+url.PathEscape(id), payload)
}

func (c *Client) writeUser(ctx context.Context, ts TokenSource, method, route, path string, payload map[string]any) (*models.Account, error) {
	req, err := newRequest(method, route, path).withJSON(payload)
	if err != nil {
		return nil, err
	}
	body, err := c.call(ctx, ts, req)
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireUser](body, "user")
	if err != nil {
		// Some endpoints answer with a bare status envelope.
		return &models.Account{}, nil
	}
	a := w.account()
	return &a, nil
}

// DeleteUser deletes an account.
func (c *Client) DeleteUser(ctx context.Context, ts TokenSource, id string) error {
	_, err := c.call(ctx, ts, newRequest(http.MethodDelete, "DELETE /api/users/:id", "/api/users/"+url.PathEscape(id)))
	return err
}

// UserActivities returns the latest activity entries of an account.
func (c *Client) UserActivities(ctx context.Context, ts TokenSource, id string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	path := fmt.Sprintf("/api/users/%s/activities", url.PathEscape(id))
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/users/:id/activities", path).withQuery(q))
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[wireActivity](body, "activities")
	if err != nil {
		return nil, err
	}
	return mapAll(items, wireActivity.activity), nil
}

// UserStats returns the admin dashboard statistics.
func (c *Client) UserStats(ctx context.Context, ts TokenSource) (models.Stats, error) {
	return c.stats(ctx, ts, "GET /api/users/dashboard/stats", "/api/users/dashboard/stats", nil)
}

func (c *Client) stats(ctx context.Context, ts TokenSource, route, path string, q url.Values) (models.Stats, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, route, path).withQuery(q))
	if err != nil {
		return nil, err
	}
	return decodeObject[models.Stats](body, "")
}
