package models

import "time"

// Lead is a scored prospect attached to a campaign.
type Lead struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Age        int        `json:"age,omitempty"`
	Job        string     `json:"job,omitempty"`
	Marital    string     `json:"marital,omitempty"`
	Education  string     `json:"education,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Email      string     `json:"email,omitempty"`
	Status     LeadStatus `json:"status"`
	Score      float64    `json:"score"`
	CampaignID string     `json:"campaignId,omitempty"`
}

// Note is a free-text remark a salesperson left on a lead.
type Note struct {
	ID         string     `json:"id"`
	LeadID     string     `json:"leadId"`
	CampaignID string     `json:"campaignId,omitempty"`
	Content    string     `json:"content"`
	AuthorName string     `json:"authorName,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// Stats is a dashboard statistics payload passed through from the CRM API.
type Stats map[string]interface{}
