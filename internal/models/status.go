package models

import "strings"

// AccountStatus is the canonical account activity tag.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// CampaignStatus is the canonical campaign lifecycle tag.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
)

// LeadStatus is the canonical lead follow-up tag.
type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadContacted LeadStatus = "contacted"
	LeadConverted LeadStatus = "converted"
	LeadFailed    LeadStatus = "failed"
)

// AccountStatusFromActive maps the upstream isActive flag.
func AccountStatusFromActive(active bool) AccountStatus {
	if active {
		return AccountActive
	}
	return AccountInactive
}

// ParseAccountStatus accepts "Active", "inactive", "true", "false".
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	switch normalizeTag(raw) {
	case "active", "true":
		return AccountActive, true
	case "inactive", "false":
		return AccountInactive, true
	}
	return "", false
}

// ParseCampaignStatus normalises campaign status casing.
func ParseCampaignStatus(raw string) (CampaignStatus, bool) {
	s := CampaignStatus(normalizeTag(raw))
	switch s {
	case CampaignActive, CampaignCompleted:
		return s, true
	}
	return "", false
}

// ParseLeadStatus normalises lead status casing.
func ParseLeadStatus(raw string) (LeadStatus, bool) {
	s := LeadStatus(normalizeTag(raw))
	switch s {
	case LeadPending, LeadContacted, LeadConverted, LeadFailed:
		return s, true
	}
	return "", false
}

// Upstream renders a tag in the title casing used by the CRM API.
func Upstream[T ~string](tag T) string {
	s := string(tag)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func normalizeTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
