package listing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/pkg/pagination"
)

// Outcome classifies how a fetch ended.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

// DefaultPageSize is used when no WithPageSize option is given.
const DefaultPageSize = 10

// Option configures a Controller.
type Option func(*options)

type options struct {
	pageSize     int
	debounce     time.Duration
	maxVisible   int
	logger       *zap.Logger
	observe      func(Outcome, time.Duration)
	errorMessage func(error) string
	filters      map[string]FilterValue
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithDebounce delays the fetch triggered by SetSearchText until no further search
// edit arrives for d. Zero disables debouncing.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithMaxVisible sets the width of the page-number band used for snapshots.
func WithMaxVisible(n int) Option {
	return func(o *options) { o.maxVisible = n }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver receives the outcome and duration of every fetch.
func WithObserver(fn func(Outcome, time.Duration)) Option {
	return func(o *options) { o.observe = fn }
}

// WithErrorMessage maps fetch errors to the text shown to the user.
func WithErrorMessage(fn func(error) string) Option {
	return func(o *options) {
		if fn != nil {
			o.errorMessage = fn
		}
	}
}

// WithFilters seeds the initial filters.
func WithFilters(filters map[string]FilterValue) Option {
	return func(o *options) { o.filters = filters }
}

// State is a point-in-time view of a controller.
type State[T any] struct {
	Query      Query             `json:"query"`
	Items      []T               `json:"items"`
	TotalItems int               `json:"totalItems"`
	Window     pagination.Window `json:"window"`
	Loading    bool              `json:"loading"`
	Loaded     bool              `json:"loaded"`
	Error      string            `json:"error,omitempty"`
}

// Controller owns a Query and the latest Result fetched for it.
//
// Every mutation issues a fetch tagged with an increasing sequence number; a result
// is applied only if its sequence number is still the latest one, so responses to
// superseded queries are dropped regardless of arrival order. On failure the previous
// items stay visible and Error is set until the next successful fetch.
type Controller[T any] struct {
	fetch Fetcher[T]
	opts  options

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	query       Query
	items       []T
	total       int
	loaded      bool
	errMsg      string
	seq         uint64
	loading     bool
	pending     bool
	debounceGen uint64
	timer       *time.Timer
	changed     chan struct{}
	closed      bool
}

// New creates a controller. It does not fetch until Refresh or a mutation is called.
func New[T any](fetch Fetcher[T], opts ...Option) *Controller[T] {
	o := options{
		pageSize:     DefaultPageSize,
		maxVisible:   pagination.DefaultMaxVisible,
		logger:       zap.NewNop(),
		errorMessage: func(err error) string { return err.Error() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		fetch:   fetch,
		opts:    o,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
		query: Query{
			Filters:  map[string]FilterValue{},
			Page:     1,
			PageSize: o.pageSize,
		},
	}
	for id, v := range o.filters {
		if !v.IsEmpty() {
			c.query.Filters[id] = v
		}
	}
	return c
}

// SetSearchText replaces the search text and resets the page to 1. With debouncing
// enabled the fetch is deferred; otherwise it is issued immediately.
func (c *Controller[T]) SetSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.query.SearchText = text
	c.query.Page = 1
	c.scheduleLocked()
}

// SetFilter sets one filter; an empty value removes it. Resets the page to 1.
func (c *Controller[T]) SetFilter(id string, value FilterValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.setFilterLocked(id, value)
	c.query.Page = 1
	c.issueLocked()
}

// SetPage moves to page n, clamped into [1, totalPages].
func (c *Controller[T]) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.query.Page = c.clampLocked(n)
	c.issueLocked()
}

// SetPageSize changes the page size and resets the page to 1.
func (c *Controller[T]) SetPageSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if n < 1 {
		n = 1
	}
	c.query.PageSize = n
	c.query.Page = 1
	c.issueLocked()
}

// Apply performs several mutations with a single fetch. A change that only edits the
// search text goes through the debounce like SetSearchText.
func (c *Controller[T]) Apply(ch Change) {
	if ch.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if ch.Search != nil {
		c.query.SearchText = *ch.Search
		c.query.Page = 1
	}
	for id, v := range ch.Filters {
		c.setFilterLocked(id, v)
		c.query.Page = 1
	}
	if ch.PageSize != nil {
		size := *ch.PageSize
		if size < 1 {
			size = 1
		}
		c.query.PageSize = size
		c.query.Page = 1
	}
	if ch.Page != nil {
		c.query.Page = c.clampLocked(*ch.Page)
	}
	if ch.Search != nil && len(ch.Filters) == 0 && ch.Page == nil && ch.PageSize == nil {
		c.scheduleLocked()
		return
	}
	c.issueLocked()
}

// Refresh fetches the current query, e.g. on mount or after a mutation elsewhere.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.issueLocked()
}

// Retry re-issues the current query unchanged after a failed fetch.
func (c *Controller[T]) Retry() {
	c.Refresh()
}

// Query returns a copy of the current query.
func (c *Controller[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.clone()
}

// Snapshot returns the current state without blocking.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until no debounced search is pending and the latest fetch has settled.
func (c *Controller[T]) Wait(ctx context.Context) (State[T], error) {
	for {
		c.mu.Lock()
		if c.closed || (!c.pending && !c.loading) {
			s := c.snapshotLocked()
			c.mu.Unlock()
			return s, nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// Close stops pending timers and abandons in-flight fetches.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pending = false
	c.loading = false
	if c.timer != nil {
		c.timer.Stop()
	}
	c.cancel()
	c.notifyLocked()
}

func (c *Controller[T]) setFilterLocked(id string, v FilterValue) {
	if v.IsEmpty() {
		delete(c.query.Filters, id)
		return
	}
	c.query.Filters[id] = v
}

func (c *Controller[T]) clampLocked(n int) int {
	if n < 1 {
		return 1
	}
	if !c.loaded {
		return n
	}
	return pagination.Clamp(n, pagination.TotalPages(c.query.PageSize, c.total))
}

func (c *Controller[T]) scheduleLocked() {
	if c.opts.debounce <= 0 {
		c.issueLocked()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.debounceGen++
	gen := c.debounceGen
	c.pending = true
	c.timer = time.AfterFunc(c.opts.debounce, func() { c.fireDebounce(gen) })
	c.notifyLocked()
}

func (c *Controller[T]) fireDebounce(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.pending || gen != c.debounceGen {
		return
	}
	c.issueLocked()
}

func (c *Controller[T]) issueLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = false
	c.seq++
	seq := c.seq
	req := c.query.Request()
	c.loading = true
	c.notifyLocked()

	go c.run(seq, req)
}

func (c *Controller[T]) run(seq uint64, req Request) {
	start := time.Now()
	res, err := c.fetch(c.ctx, req)
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.observe(OutcomeDiscarded, elapsed)
		c.opts.logger.Debug("discarding list result of closed controller", zap.Uint64("seq", seq))
		return
	}
	if seq != c.seq {
		c.observe(OutcomeDiscarded, elapsed)
		c.opts.logger.Debug("discarding stale list result",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", c.seq),
		)
		return
	}

	c.loading = false
	if err != nil {
		c.errMsg = c.opts.errorMessage(err)
		c.observe(OutcomeFailed, elapsed)
		c.opts.logger.Warn("list fetch failed", zap.Int("page", req.Page), zap.Error(err))
		c.notifyLocked()
		return
	}

	c.total = max(res.TotalItems, 0)
	c.items = pageOf(res.Items, req.Page, req.Limit)
	c.loaded = true
	c.errMsg = ""
	c.observe(OutcomeApplied, elapsed)

	if last := pagination.TotalPages(c.query.PageSize, c.total); last >= 1 && c.query.Page > last {
		c.opts.logger.Debug("page out of range after refresh, clamping",
			zap.Int("page", c.query.Page),
			zap.Int("last", last),
		)
		c.query.Page = last
		c.issueLocked()
		return
	}
	c.notifyLocked()
}

func (c *Controller[T]) observe(outcome Outcome, d time.Duration) {
	if c.opts.observe != nil {
		c.opts.observe(outcome, d)
	}
}

func (c *Controller[T]) snapshotLocked() State[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return State[T]{
		Query:      c.query.clone(),
		Items:      items,
		TotalItems: c.total,
		Window:     pagination.Compute(c.query.Page, c.query.PageSize, c.total, c.opts.maxVisible),
		Loading:    c.loading || c.pending,
		Loaded:     c.loaded,
		Error:      c.errMsg,
	}
}

func (c *Controller[T]) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// pageOf trims a result that ignored the requested limit (a source returning the whole
// set as a bare array) down to the requested page.
func pageOf[T any](items []T, page, limit int) []T {
	if limit < 1 || len(items) <= limit {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) || start < 0 {
		return []T{}
	}
	return items[start:min(start+limit, len(items))]
}
