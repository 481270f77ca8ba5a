package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/listing"
	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/export"
)

// Screen names a list screen of the dashboard.
type Screen string

const (
	ScreenAccounts  Screen = "accounts"
	ScreenCampaigns Screen = "campaigns"
	ScreenLeads     Screen = "leads"
)

// FilterKind tells how a filter value is validated and sent upstream.
type FilterKind string

const (
	FilterText   FilterKind = "text"
	FilterChoice FilterKind = "choice"
	FilterDate   FilterKind = "date"
	FilterRange  FilterKind = "range"
)

const filterDateLayout = "2006-01-02"

// FilterSpec describes one filter of a screen.
type FilterSpec struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Kind    FilterKind `json:"kind"`
	Options []string   `json:"options,omitempty"`

	param    string
	minParam string
	maxParam string
	encode   func(string) string
}

// ScreenSpec is the static description of a list screen.
type ScreenSpec struct {
	Name      Screen          `json:"name"`
	Title     string          `json:"title"`
	Roles     []models.Role   `json:"roles"`
	Filters   []FilterSpec    `json:"filters"`
	Columns   []export.Column `json:"columns"`
	Deletable bool            `json:"deletable"`

	searchParam string
}

// Filter looks up a filter by id.
func (s ScreenSpec) Filter(id string) (FilterSpec, bool) {
	for _, f := range s.Filters {
		if f.ID == id {
			return f, true
		}
	}
	return FilterSpec{}, false
}

// normalize validates a user supplied filter value and returns its canonical form.
// An empty value is valid and means "unset".
func (s ScreenSpec) normalize(id string, v listing.FilterValue) (listing.FilterValue, error) {
	f, ok := s.Filter(id)
	if !ok {
		return v, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown filter %q for %s", id, s.Name))
	}
	if v.IsEmpty() {
		return listing.FilterValue{}, nil
	}
	text := strings.TrimSpace(v.Text)
	switch f.Kind {
	case FilterRange:
		if text != "" {
			return v, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects a numeric range", f.Label))
		}
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			return v, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s minimum must not exceed maximum", f.Label))
		}
		return listing.Range(v.Min, v.Max), nil
	case FilterChoice:
		for _, opt := range f.Options {
			if strings.EqualFold(opt, text) {
				return listing.Text(opt), nil
			}
		}
		return v, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be one of: %s", f.Label, strings.Join(f.Options, ", ")))
	case FilterDate:
		if _, err := time.Parse(filterDateLayout, text); err != nil {
			return v, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", f.Label))
		}
		return listing.Text(text), nil
	default:
		if v.IsRange() {
			return v, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects text", f.Label))
		}
		return listing.Text(text), nil
	}
}

// params renders a fetch request as the upstream query string.
func (s ScreenSpec) params(req listing.Request) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("limit", strconv.Itoa(req.Limit))
	if req.Search != "" {
		q.Set(s.searchParam, req.Search)
	}
	for id, v := range req.Filters {
		f, ok := s.Filter(id)
		if !ok || v.IsEmpty() {
			continue
		}
		if f.Kind == FilterRange {
			if v.Min != nil {
				q.Set(f.minParam, formatBound(*v.Min))
			}
			if v.Max != nil {
				q.Set(f.maxParam, formatBound(*v.Max))
			}
			continue
		}
		value := v.Text
		if f.encode != nil {
			value = f.encode(value)
		}
		q.Set(f.param, value)
	}
	return q
}

func formatBound(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func upstreamTag(v string) string {
	return models.Upstream(v)
}

var accountsSpec = ScreenSpec{
	Name:  ScreenAccounts,
	Title: "Accounts",
	Roles: []models.Role{models.RoleAdmin},
	Filters: []FilterSpec{
		{ID: "role", Label: "Role", Kind: FilterChoice, Options: []string{"admin", "manager", "sales"}, param: "role", encode: upstreamTag},
		{ID: "status", Label: "Status", Kind: FilterChoice, Options: []string{"active", "inactive"}, param: "isActive", encode: func(v string) string {
			return strconv.FormatBool(v == string(models.AccountActive))
		}},
	},
	Columns: []export.Column{
		{Key: "fullname", Title: "Name"},
		{Key: "email", Title: "Email"},
		{Key: "phone", Title: "Phone"},
		{Key: "role", Title: "Role"},
		{Key: "status", Title: "Status"},
		{Key: "lastActivity", Title: "Last Activity"},
	},
	Deletable:   true,
	searchParam: "search",
}

var campaignsSpec = ScreenSpec{
	Name:  ScreenCampaigns,
	Title: "Campaigns",
	Roles: []models.Role{models.RoleManager, models.RoleSales},
	Filters: []FilterSpec{
		{ID: "status", Label: "Status", Kind: FilterChoice, Options: []string{"active", "completed"}, param: "status", encode: upstreamTag},
		{ID: "startDate", Label: "Start date", Kind: FilterDate, param: "startDate"},
		{ID: "endDate", Label: "End date", Kind: FilterDate, param: "endDate"},
	},
	Columns: []export.Column{
		{Key: "name", Title: "Campaign"},
		{Key: "description", Title: "Description"},
		{Key: "targetLead", Title: "Target Leads"},
		{Key: "periodStart", Title: "Start"},
		{Key: "periodEnd", Title: "End"},
		{Key: "status", Title: "Status"},
	},
	Deletable:   true,
	searchParam: "search",
}

var leadsSpec = ScreenSpec{
	Name:  ScreenLeads,
	Title: "Leads",
	Roles: []models.Role{models.RoleSales},
	Filters: []FilterSpec{
		{ID: "campaignId", Label: "Campaign", Kind: FilterText, param: "campaignId"},
		{ID: "status", Label: "Status", Kind: FilterChoice, Options: []string{"pending", "contacted", "converted", "failed"}, param: "status", encode: upstreamTag},
		{ID: "job", Label: "Job", Kind: FilterText, param: "job"},
		{ID: "age", Label: "Age", Kind: FilterRange, minParam: "ageMin", maxParam: "ageMax"},
		{ID: "score", Label: "Score", Kind: FilterRange, minParam: "scoreMin", maxParam: "scoreMax"},
	},
	Columns: []export.Column{
		{Key: "name", Title: "Lead"},
		{Key: "age", Title: "Age"},
		{Key: "job", Title: "Job"},
		{Key: "education", Title: "Education"},
		{Key: "status", Title: "Status"},
		{Key: "score", Title: "Score"},
	},
	searchParam: "name",
}

// ScreenSpecs lists every list screen.
func ScreenSpecs() []ScreenSpec {
	return []ScreenSpec{accountsSpec, campaignsSpec, leadsSpec}
}

// LookupScreen returns the spec of a screen.
func LookupScreen(name string) (ScreenSpec, error) {
	for _, s := range ScreenSpecs() {
		if string(s.Name) == name {
			return s, nil
		}
	}
	return ScreenSpec{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown screen %q", name))
}

type screensUpstream interface {
	ListUsers(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Account, int, error)
	DeleteUser(ctx context.Context, ts client.TokenSource, id string) error
	ListCampaigns(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Campaign, int, error)
	DeleteCampaign(ctx context.Context, ts client.TokenSource, id string) error
	ListLeads(ctx context.Context, ts client.TokenSource, q url.Values) ([]models.Lead, int, error)
}

// screenKind binds a spec to its record type.
type screenKind interface {
	spec() ScreenSpec
	open(ts client.TokenSource, opts ...listing.Option) screenHandle
	rows(ctx context.Context, ts client.TokenSource, req listing.Request) ([]map[string]string, int, error)
	remove(ctx context.Context, ts client.TokenSource, id string) error
}

type screenDef[T any] struct {
	def  ScreenSpec
	list func(ctx context.Context, ts client.TokenSource, q url.Values) ([]T, int, error)
	del  func(ctx context.Context, ts client.TokenSource, id string) error
	row  func(T) map[string]string
}

func (d screenDef[T]) spec() ScreenSpec { return d.def }

func (d screenDef[T]) fetcher(ts client.TokenSource) listing.Fetcher[T] {
	return func(ctx context.Context, req listing.Request) (listing.Result[T], error) {
		items, total, err := d.list(ctx, ts, d.def.params(req))
		if err != nil {
			return listing.Result[T]{}, err
		}
		return listing.Result[T]{Items: items, TotalItems: total}, nil
	}
}

func (d screenDef[T]) open(ts client.TokenSource, opts ...listing.Option) screenHandle {
	return &controllerHandle[T]{screen: d.def.Name, c: listing.New(d.fetcher(ts), opts...)}
}

func (d screenDef[T]) rows(ctx context.Context, ts client.TokenSource, req listing.Request) ([]map[string]string, int, error) {
	items, total, err := d.list(ctx, ts, d.def.params(req))
	if err != nil {
		return nil, 0, err
	}
	out := make([]map[string]string, len(items))
	for i, item := range items {
		out[i] = d.row(item)
	}
	return out, total, nil
}

func (d screenDef[T]) remove(ctx context.Context, ts client.TokenSource, id string) error {
	if d.del == nil {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s cannot be deleted", strings.ToLower(d.def.Title)))
	}
	return d.del(ctx, ts, id)
}

func screenKinds(up screensUpstream) map[Screen]screenKind {
	return map[Screen]screenKind{
		ScreenAccounts: screenDef[models.Account]{
			def:  accountsSpec,
			list: up.ListUsers,
			del:  up.DeleteUser,
			row: func(a models.Account) map[string]string {
				return map[string]string{
					"fullname":     a.FullName,
					"email":        a.Email,
					"phone":        a.Phone,
					"role":         a.Role.Upstream(),
					"status":       models.Upstream(a.Status),
					"lastActivity": formatTime(a.LastActivity),
				}
			},
		},
		ScreenCampaigns: screenDef[models.Campaign]{
			def:  campaignsSpec,
			list: up.ListCampaigns,
			del:  up.DeleteCampaign,
			row: func(c models.Campaign) map[string]string {
				return map[string]string{
					"name":        c.Name,
					"description": c.Description,
					"targetLead":  strconv.Itoa(c.TargetLead),
					"periodStart": c.PeriodStart,
					"periodEnd":   c.PeriodEnd,
					"status":      models.Upstream(c.Status),
				}
			},
		},
		ScreenLeads: screenDef[models.Lead]{
			def:  leadsSpec,
			list: up.ListLeads,
			row: func(l models.Lead) map[string]string {
				age := ""
				if l.Age > 0 {
					age = strconv.Itoa(l.Age)
				}
				return map[string]string{
					"name":      l.Name,
					"age":       age,
					"job":       l.Job,
					"education": l.Education,
					"status":    models.Upstream(l.Status),
					"score":     formatBound(l.Score),
				}
			},
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
