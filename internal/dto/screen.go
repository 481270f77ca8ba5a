package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/crm-dashboard/internal/listing"
	"github.com/noah-isme/crm-dashboard/internal/service"
)

// FilterInput is one filter value as sent by the dashboard: a string, a number,
// null (unset) or a {min, max} range.
type FilterInput struct {
	Text string
	Min  *float64
	Max  *float64
}

// UnmarshalJSON accepts every shape the dashboard sends for a filter.
func (f *FilterInput) UnmarshalJSON(data []byte) error {
	*f = FilterInput{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &f.Text)
	case '{':
		var r struct {
			Min *float64 `json:"min"`
			Max *float64 `json:"max"`
		}
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return fmt.Errorf("range filter: %w", err)
		}
		f.Min, f.Max = r.Min, r.Max
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return errors.New("filter must be a string, a number or a {min, max} range")
		}
		f.Text = n.String()
		return nil
	}
}

// Value converts the input into a listing filter value.
func (f FilterInput) Value() listing.FilterValue {
	if f.Min != nil || f.Max != nil {
		return listing.Range(f.Min, f.Max)
	}
	return listing.Text(f.Text)
}

// ScreenQueryRequest edits the query of a list screen. Absent members are left as is.
type ScreenQueryRequest struct {
	Search   *string                `json:"search"`
	Filters  map[string]FilterInput `json:"filters"`
	Page     *int                   `json:"page" binding:"omitempty,min=1"`
	PageSize *int                   `json:"pageSize" binding:"omitempty,min=1"`
}

// Change converts the request into a service change.
func (r ScreenQueryRequest) Change() service.ScreenChange {
	ch := service.ScreenChange{Search: r.Search, Page: r.Page, PageSize: r.PageSize}
	if len(r.Filters) > 0 {
		ch.Filters = make(map[string]listing.FilterValue, len(r.Filters))
		for id, in := range r.Filters {
			ch.Filters[id] = in.Value()
		}
	}
	return ch
}
