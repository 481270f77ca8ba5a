package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

// ListCampaigns returns one page of campaigns.
func (c *Client) ListCampaigns(ctx context.Context, ts TokenSource, q url.Values) ([]models.Campaign, int, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/campaigns", "/api/campaigns").withQuery(q))
	if err != nil {
		return nil, 0, err
	}
	items, total, err := decodeList[wireCampaign](body, "campaigns")
	if err != nil {
		return nil, 0, err
	}
	return mapAll(items, wireCampaign.campaign), total, nil
}

// GetCampaign loads one campaign.
func (c *Client) GetCampaign(ctx context.Context, ts TokenSource, id string) (*models.Campaign, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/campaigns/:id", "/api/campaigns/"+url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireCampaign](body, "campaign")
	if err != nil {
		return nil, err
	}
	m := w.campaign()
	return &m, nil
}

// CreateCampaign creates a campaign.
func (c *Client) CreateCampaign(ctx context.Context, ts TokenSource, payload map[string]any) error {
	req, err := newRequest(http.MethodPost, "POST /api/campaigns", "/api/campaigns").withJSON(payload)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, ts, req)
	return err
}

// UpdateCampaign updates a campaign.
func (c *Client) UpdateCampaign(ctx context.Context, ts TokenSource, id string, payload map[string]any) error {
	req, err := newRequest(http.MethodPut, "PUT /api/campaigns/:id", "/api/campaigns/"+url.PathEscape(id)).withJSON(payload)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, ts, req)
	return err
}

// DeleteCampaign deletes a campaign.
func (c *Client) DeleteCampaign(ctx context.Context, ts TokenSource, id string) error {
	_, err := c.call(ctx, ts, newRequest(http.MethodDelete, "DELETE /api/campaigns/:id", "/api/campaigns/"+url.PathEscape(id)))
	return err
}

// CampaignDropdown lists campaign ids and names for selectors.
func (c *Client) CampaignDropdown(ctx context.Context, ts TokenSource) ([]models.CampaignOption, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/campaigns/dropdown", "/api/campaigns/dropdown"))
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[wireOption](body, "campaigns")
	if err != nil {
		return nil, err
	}
	return mapAll(items, func(w wireOption) models.CampaignOption {
		return models.CampaignOption{ID: w.ID, Name: w.Name}
	}), nil
}

// CampaignStats returns the manager dashboard statistics.
func (c *Client) CampaignStats(ctx context.Context, ts TokenSource) (models.Stats, error) {
	return c.stats(ctx, ts, "GET /api/campaigns/dashboard/stats", "/api/campaigns/dashboard/stats", nil)
}
