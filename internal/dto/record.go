package dto

import (
	"time"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

// SessionResponse describes the signed-in user after login or on /auth/me.
type SessionResponse struct {
	Identity  models.Identity `json:"identity"`
	Home      string          `json:"home"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

// LeadStatusRequest changes the follow-up status of a lead.
type LeadStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	CampaignID string `json:"campaignId"`
}

// NoteRequest adds a note to a lead.
type NoteRequest struct {
	Content    string `json:"content"`
	CampaignID string `json:"campaignId"`
}

// AvatarResponse carries the new avatar location.
type AvatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}
