package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionAccountCreate  = "ACCOUNT_CREATE"
	AuditActionAccountUpdate  = "ACCOUNT_UPDATE"
	AuditActionAccountDelete  = "ACCOUNT_DELETE"
	AuditActionCampaignCreate = "CAMPAIGN_CREATE"
	AuditActionCampaignUpdate = "CAMPAIGN_UPDATE"
	AuditActionCampaignDelete = "CAMPAIGN_DELETE"
	AuditActionLeadStatus     = "LEAD_STATUS_UPDATE"
	AuditActionNoteCreate     = "NOTE_CREATE"
	AuditActionNoteDelete     = "NOTE_DELETE"
	AuditActionProfileUpdate  = "PROFILE_UPDATE"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionExport         = "EXPORT"
)

// AuditLog represents an audit trail record of a mutation made through the dashboard.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Outcome    string    `db:"outcome" json:"outcome"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Audit outcomes.
const (
	AuditOutcomeSuccess  = "success"
	AuditOutcomeRejected = "rejected"
)

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	UserID   string
	Action   string
	Resource string
	Page     int
	PageSize int
}
