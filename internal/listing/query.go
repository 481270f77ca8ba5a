// Package listing keeps a search/filter/page query in sync with a remote,
// paginated data source.
package listing

import (
	"context"
	"strings"
)

// FilterValue is the value of one filter: free text, a numeric range, or empty (unset).
type FilterValue struct {
	Text string   `json:"text,omitempty"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

// Text builds a text filter value.
func Text(s string) FilterValue {
	return FilterValue{Text: s}
}

// Range builds a numeric range filter value. Either bound may be nil.
func Range(lo, hi *float64) FilterValue {
	return FilterValue{Min: lo, Max: hi}
}

// IsEmpty reports whether the value means "filter not set".
func (v FilterValue) IsEmpty() bool {
	return strings.TrimSpace(v.Text) == "" && v.Min == nil && v.Max == nil
}

// IsRange reports whether the value carries at least one numeric bound.
func (v FilterValue) IsRange() bool {
	return v.Min != nil || v.Max != nil
}

// Query is the user-controlled part of a list screen.
type Query struct {
	SearchText string                 `json:"search"`
	Filters    map[string]FilterValue `json:"filters"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
}

func (q Query) clone() Query {
	out := q
	out.Filters = make(map[string]FilterValue, len(q.Filters))
	for k, v := range q.Filters {
		out.Filters[k] = v
	}
	return out
}

// Request is the payload handed to a Fetcher. Empty filters and an empty search
// never appear in it.
type Request struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]FilterValue
}

// Request builds the fetch payload for the query.
func (q Query) Request() Request {
	req := Request{
		Page:    q.Page,
		Limit:   q.PageSize,
		Search:  strings.TrimSpace(q.SearchText),
		Filters: make(map[string]FilterValue, len(q.Filters)),
	}
	for id, v := range q.Filters {
		if v.IsEmpty() {
			continue
		}
		req.Filters[id] = v
	}
	return req
}

// Result is one page of records plus the size of the full matching set.
type Result[T any] struct {
	Items      []T
	TotalItems int
}

// Fetcher loads one page of records from the data source.
type Fetcher[T any] func(ctx context.Context, req Request) (Result[T], error)

// Change batches several query mutations into a single fetch. Search, Filters and
// PageSize reset the page to 1; Page, when set, is applied last and clamped.
type Change struct {
	Search   *string
	Filters  map[string]FilterValue
	Page     *int
	PageSize *int
}

// Empty reports whether the change carries no mutation.
func (c Change) Empty() bool {
	return c.Search == nil && len(c.Filters) == 0 && c.Page == nil && c.PageSize == nil
}
