package client

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/crm-dashboard/internal/models"
)

// The upstream API is not consistent about field names and scalar types across
// endpoints; the wire types below accept every spelling seen in practice and
// normalize into the canonical models.

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNumber(f)
	return nil
}

// flexBool accepts true/false, "true"/"false" and 1/0.
type flexBool struct {
	set   bool
	value bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`)) {
	case "true", "1", "active":
		*f = flexBool{set: true, value: true}
	case "false", "0", "inactive":
		*f = flexBool{set: true, value: false}
	}
	return nil
}

// flexTime accepts RFC3339 and a few common SQL layouts; anything else is dropped.
type flexTime struct {
	t *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			f.t = &t
			return nil
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstTime(values ...flexTime) *time.Time {
	for _, v := range values {
		if v.t != nil {
			return v.t
		}
	}
	return nil
}

// dateOnly trims an ISO timestamp to its date part.
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return s[:10]
		}
	}
	return s
}

type wireUser struct {
	ID           string   `json:"id"`
	FullName     string   `json:"fullname"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	PhoneNumber  string   `json:"phoneNumber"`
	Role         string   `json:"role"`
	Address      string   `json:"address"`
	Status       string   `json:"status"`
	IsActive     flexBool `json:"isActive"`
	IsActiveAlt  flexBool `json:"is_active"`
	AvatarURL    string   `json:"avatarUrl"`
	AvatarURLAlt string   `json:"avatar_url"`
	Avatar       string   `json:"avatar"`
	ProfileImage string   `json:"profileImage"`
	LastActivity flexTime `json:"lastActivity"`
	LastLogin    flexTime `json:"lastLogin"`
	CreatedAt    flexTime `json:"createdAt"`
	RegisteredAt flexTime `json:"registeredAt"`
}

func (w wireUser) account() models.Account {
	role, _ := models.ParseRole(w.Role)
	return models.Account{
		ID:           w.ID,
		FullName:     firstNonEmpty(w.FullName, w.Name),
		Email:        strings.TrimSpace(w.Email),
		Phone:        firstNonEmpty(w.Phone, w.PhoneNumber),
		Role:         role,
		Address:      strings.TrimSpace(w.Address),
		Status:       w.status(),
		AvatarURL:    firstNonEmpty(w.AvatarURL, w.AvatarURLAlt, w.Avatar, w.ProfileImage),
		LastActivity: firstTime(w.LastActivity, w.LastLogin),
		CreatedAt:    firstTime(w.CreatedAt, w.RegisteredAt),
	}
}

func (w wireUser) status() models.AccountStatus {
	if w.IsActive.set {
		return models.AccountStatusFromActive(w.IsActive.value)
	}
	if w.IsActiveAlt.set {
		return models.AccountStatusFromActive(w.IsActiveAlt.value)
	}
	if s, ok := models.ParseAccountStatus(w.Status); ok {
		return s
	}
	return models.AccountActive
}

func (w wireUser) profile() models.Profile {
	a := w.account()
	return models.Profile{
		ID:        a.ID,
		FullName:  a.FullName,
		Email:     a.Email,
		Phone:     a.Phone,
		Address:   a.Address,
		Role:      a.Role,
		AvatarURL: a.AvatarURL,
	}
}

func (w wireUser) identity() models.Identity {
	a := w.account()
	return models.Identity{
		ID:          a.ID,
		Role:        a.Role,
		DisplayName: a.FullName,
		Email:       a.Email,
		AvatarURL:   a.AvatarURL,
	}
}

type wireActivity struct {
	ID          string   `json:"id"`
	Action      string   `json:"action"`
	Activity    string   `json:"activity"`
	Description string   `json:"description"`
	CreatedAt   flexTime `json:"createdAt"`
	Timestamp   flexTime `json:"timestamp"`
}

func (w wireActivity) activity() models.Activity {
	return models.Activity{
		ID:          w.ID,
		Action:      firstNonEmpty(w.Action, w.Activity),
		Description: strings.TrimSpace(w.Description),
		CreatedAt:   firstTime(w.CreatedAt, w.Timestamp),
	}
}

type wireCampaign struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	TargetLead    flexNumber `json:"targetLead"`
	PeriodStart   string     `json:"periodStart"`
	PeriodEnd     string     `json:"periodEnd"`
	Status        string     `json:"status"`
	InvitedEmails []string   `json:"invitedEmails"`
	OwnerID       string     `json:"ownerId"`
	MadeBy        string     `json:"madeBy"`
	OwnerName     string     `json:"ownerName"`
	TotalLeads    flexNumber `json:"totalLeads"`
}

func (w wireCampaign) campaign() models.Campaign {
	status, ok := models.ParseCampaignStatus(w.Status)
	if !ok {
		status = models.CampaignActive
	}
	return models.Campaign{
		ID:            w.ID,
		Name:          strings.TrimSpace(w.Name),
		Description:   strings.TrimSpace(w.Description),
		TargetLead:    int(w.TargetLead),
		PeriodStart:   dateOnly(w.PeriodStart),
		PeriodEnd:     dateOnly(w.PeriodEnd),
		Status:        status,
		InvitedEmails: w.InvitedEmails,
		OwnerID:       w.OwnerID,
		OwnerName:     firstNonEmpty(w.OwnerName, w.MadeBy),
		TotalLeads:    int(w.TotalLeads),
	}
}

type wireOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireLead struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Age         flexNumber `json:"age"`
	Job         string     `json:"job"`
	Marital     string     `json:"marital"`
	Education   string     `json:"education"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	Score       flexNumber `json:"score"`
	Probability flexNumber `json:"probability"`
	CampaignID  string     `json:"campaignId"`
}

func (w wireLead) lead() models.Lead {
	status, ok := models.ParseLeadStatus(w.Status)
	if !ok {
		status = models.LeadPending
	}
	score := float64(w.Score)
	if score == 0 {
		score = float64(w.Probability)
	}
	return models.Lead{
		ID:         w.ID,
		Name:       strings.TrimSpace(w.Name),
		Age:        int(w.Age),
		Job:        strings.TrimSpace(w.Job),
		Marital:    strings.TrimSpace(w.Marital),
		Education:  strings.TrimSpace(w.Education),
		Phone:      strings.TrimSpace(w.Phone),
		Email:      strings.TrimSpace(w.Email),
		Status:     status,
		Score:      score,
		CampaignID: w.CampaignID,
	}
}

type wireNote struct {
	ID         string   `json:"id"`
	LeadID     string   `json:"leadId"`
	CampaignID string   `json:"campaignId"`
	Content    string   `json:"content"`
	Note       string   `json:"note"`
	AuthorName string   `json:"authorName"`
	Author     string   `json:"author"`
	CreatedAt  flexTime `json:"createdAt"`
}

func (w wireNote) note() models.Note {
	return models.Note{
		ID:         w.ID,
		LeadID:     w.LeadID,
		CampaignID: w.CampaignID,
		Content:    firstNonEmpty(w.Content, w.Note),
		AuthorName: firstNonEmpty(w.AuthorName, w.Author),
		CreatedAt:  firstTime(w.CreatedAt),
	}
}

func mapAll[W any, M any](in []W, fn func(W) M) []M {
	out := make([]M, len(in))
	for i, w := range in {
		out[i] = fn(w)
	}
	return out
}
