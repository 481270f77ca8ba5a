package models

// Campaign is a sales campaign owned by a manager.
type Campaign struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	TargetLead    int            `json:"targetLead"`
	PeriodStart   string         `json:"periodStart,omitempty"`
	PeriodEnd     string         `json:"periodEnd,omitempty"`
	Status        CampaignStatus `json:"status"`
	InvitedEmails []string       `json:"invitedEmails,omitempty"`
	OwnerID       string         `json:"ownerId,omitempty"`
	OwnerName     string         `json:"ownerName,omitempty"`
	TotalLeads    int            `json:"totalLeads,omitempty"`
}

// CampaignOption is an entry of the campaign dropdown.
type CampaignOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
