package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

// ListLeads returns one page of scored leads.
func (c *Client) ListLeads(ctx context.Context, ts TokenSource, q url.Values) ([]models.Lead, int, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/leads", "/api/leads").withQuery(q))
	if err != nil {
		return nil, 0, err
	}
	items, total, err := decodeList[wireLead](body, "leads")
	if err != nil {
		return nil, 0, err
	}
	return mapAll(items, wireLead.lead), total, nil
}

// GetLead loads a lead in the context of a campaign.
func (c *Client) GetLead(ctx context.Context, ts TokenSource, id, campaignID string) (*models.Lead, error) {
	req := newRequest(http.MethodGet, "GET /api/leads/:id", "/api/leads/"+url.PathEscape(id)).
		withQuery(campaignQuery(campaignID))
	body, err := c.call(ctx, ts, req)
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireLead](body, "lead")
	if err != nil {
		return nil, err
	}
	l := w.lead()
	return &l, nil
}

// UpdateLeadStatus changes the follow-up status of a lead.
func (c *Client) UpdateLeadStatus(ctx context.Context, ts TokenSource, id string, status models.LeadStatus, campaignID string) error {
	path := fmt.Sprintf("/api/leads/%s/status", url.PathEscape(id))
	req, err := newRequest(http.MethodPatch, "PATCH /api/leads/:id/status", path).
		withQuery(campaignQuery(campaignID)).
		withJSON(map[string]string{"status": models.Upstream(status)})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, ts, req)
	return err
}

// LeadStats returns the sales dashboard statistics.
func (c *Client) LeadStats(ctx context.Context, ts TokenSource, q url.Values) (models.Stats, error) {
	return c.stats(ctx, ts, "GET /api/leads/dashboard/stats", "/api/leads/dashboard/stats", q)
}

// ListNotes returns the notes matching q (typically leadId and campaignId).
func (c *Client) ListNotes(ctx context.Context, ts TokenSource, q url.Values) ([]models.Note, error) {
	body, err := c.call(ctx, ts, newRequest(http.MethodGet, "GET /api/notes", "/api/notes").withQuery(q))
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[wireNote](body, "notes")
	if err != nil {
		return nil, err
	}
	return mapAll(items, wireNote.note), nil
}

// CreateNote attaches a note to a lead.
func (c *Client) CreateNote(ctx context.Context, ts TokenSource, payload map[string]any) (*models.Note, error) {
	req, err := newRequest(http.MethodPost, "POST /api/notes", "/api/notes").withJSON(payload)
	if err != nil {
		return nil, err
	}
	body, err := c.call(ctx, ts, req)
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireNote](body, "note")
	if err != nil {
		return &models.Note{}, nil
	}
	n := w.note()
	return &n, nil
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, ts TokenSource, id string) error {
	_, err := c.call(ctx, ts, newRequest(http.MethodDelete, "DELETE /api/notes/:id", "/api/notes/"+url.PathEscape(id)))
	return err
}

func campaignQuery(campaignID string) url.Values {
	if campaignID == "" {
		return nil
	}
	return url.Values{"campaignId": {campaignID}}
}
