package dto

// OpenFormRequest opens a draft. RecordID selects edit mode; for lead notes it is the
// lead and CampaignID its campaign.
type OpenFormRequest struct {
	Kind       string `json:"kind" binding:"required"`
	RecordID   string `json:"recordId"`
	CampaignID string `json:"campaignId"`
}
