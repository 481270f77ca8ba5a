// Package pagination derives the page-number window shown under a paginated list.
package pagination

// DefaultMaxVisible is the width of the centred band of page numbers.
const DefaultMaxVisible = 5

// PageSizeOptions lists the page sizes offered by the dashboard tables.
var PageSizeOptions = []int{5, 10, 25, 50, 100}

// Item is one slot of the page window: either a page number or an ellipsis marker.
type Item struct {
	Number   int  `json:"number,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// Window is the derived pagination view for a (page, pageSize, totalItems) triple.
// StartItem and EndItem are 0 when TotalItems is 0, in which case callers hide the
// pagination controls entirely.
type Window struct {
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
	TotalItems  int    `json:"totalItems"`
	TotalPages  int    `json:"totalPages"`
	StartItem   int    `json:"startItem"`
	EndItem     int    `json:"endItem"`
	Items       []Item `json:"items"`
	IsFirstPage bool   `json:"isFirstPage"`
	IsLastPage  bool   `json:"isLastPage"`
}

// TotalPages returns ceil(totalItems/pageSize), or 0 for an empty result set.
func TotalPages(pageSize, totalItems int) int {
	if totalItems <= 0 {
		return 0
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return (totalItems + pageSize - 1) / pageSize
}

// Compute derives the window. page is expected within [1, max(totalPages,1)];
// out-of-range values are clamped rather than rejected.
func Compute(page, pageSize, totalItems, maxVisible int) Window {
	if pageSize < 1 {
		pageSize = 1
	}
	if maxVisible < 1 {
		maxVisible = DefaultMaxVisible
	}
	if totalItems < 0 {
		totalItems = 0
	}

	totalPages := TotalPages(pageSize, totalItems)
	page = Clamp(page, totalPages)

	w := Window{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
		Items:      []Item{},
	}
	if totalItems == 0 {
		w.IsFirstPage = true
		w.IsLastPage = true
		return w
	}

	w.StartItem = (page-1)*pageSize + 1
	w.EndItem = min(page*pageSize, totalItems)
	w.IsFirstPage = page == 1
	w.IsLastPage = page == totalPages

	start, end := band(page, totalPages, maxVisible)

	w.Items = append(w.Items, Item{Number: 1, Current: page == 1})
	if start > 2 {
		w.Items = append(w.Items, Item{Ellipsis: true})
	}
	for i := max(2, start); i <= min(totalPages-1, end); i++ {
		w.Items = append(w.Items, Item{Number: i, Current: page == i})
	}
	if end < totalPages-1 {
		w.Items = append(w.Items, Item{Ellipsis: true})
	}
	if totalPages > 1 {
		w.Items = append(w.Items, Item{Number: totalPages, Current: page == totalPages})
	}

	return w
}

// Clamp bounds page into [1, max(totalPages,1)].
func Clamp(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// SnapPageSize maps n onto the closest entry of PageSizeOptions.
func SnapPageSize(n int) int {
	best := PageSizeOptions[0]
	for _, opt := range PageSizeOptions {
		if abs(opt-n) < abs(best-n) {
			best = opt
		}
	}
	return best
}

// band returns the centred range of up to maxVisible pages around page.
func band(page, totalPages, maxVisible int) (int, int) {
	if totalPages <= maxVisible {
		return 1, totalPages
	}
	start := max(1, page-maxVisible/2)
	end := start + maxVisible - 1
	if end > totalPages {
		end = totalPages
		start = max(1, end-maxVisible+1)
	}
	return start, end
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
