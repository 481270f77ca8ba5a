package service

import "github.com/noah-isme/crm-dashboard/internal/models"

// Actor identifies who performs an operation: the session, its identity and the
// request origin used for auditing.
type Actor struct {
	SessionID string
	Identity  models.Identity
	IP        string
	UserAgent string
}

func (a Actor) entry(action, resource, resourceID, outcome string, values interface{}) AuditEntry {
	return AuditEntry{
		UserID:     a.Identity.ID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Outcome:    outcome,
		Values:     values,
		IP:         a.IP,
		UserAgent:  a.UserAgent,
	}
}
