package form

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// State is the lifecycle position of a draft.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateInvalid    State = "invalid"
	StateFailed     State = "failed"
	StateSaved      State = "saved"
)

// Outcome reports what a Submit call did.
type Outcome string

const (
	OutcomeSaved    Outcome = "saved"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeRejected Outcome = "rejected"
	OutcomeBusy     Outcome = "busy"
)

// SaveFunc persists the submitted fields.
type SaveFunc func(ctx context.Context, fields map[string]any) error

// Draft is a copy of a reconciler's state.
type Draft struct {
	Fields       map[string]any    `json:"fields"`
	GeneralError string            `json:"generalError"`
	FieldErrors  map[string]string `json:"fieldErrors"`
	State        State             `json:"state"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithValidator replaces the default validator. It must have the phone tag registered.
func WithValidator(v *validator.Validate) Option {
	return func(r *Reconciler) {
		if v != nil {
			r.validate = v
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reconciler owns the draft of one open form.
type Reconciler struct {
	schema   Schema
	validate *validator.Validate
	logger   *zap.Logger

	mu           sync.Mutex
	fields       map[string]any
	generalError string
	fieldErrors  map[string]string
	state        State
}

// NewReconciler creates a draft for schema. initial is nil in create mode and holds the
// record's current values in edit mode.
func NewReconciler(schema Schema, initial map[string]any, opts ...Option) *Reconciler {
	r := &Reconciler{
		schema:      schema,
		logger:      zap.NewNop(),
		fields:      map[string]any{},
		fieldErrors: map[string]string{},
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.validate == nil {
		r.validate = NewValidator()
	}
	for _, spec := range schema.Fields {
		if v, ok := initial[spec.Name]; ok {
			r.fields[spec.Name] = spec.coerce(v)
			continue
		}
		r.fields[spec.Name] = defaultValue(spec)
	}
	return r
}

// Schema returns the form's schema.
func (r *Reconciler) Schema() Schema {
	return r.schema
}

// UpdateField stores value, coercing declared numeric fields, and clears the field's
// error together with the general error.
func (r *Reconciler) UpdateField(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if spec, ok := r.schema.Field(name); ok {
		value = spec.coerce(value)
	}
	r.fields[name] = value
	delete(r.fieldErrors, name)
	r.generalError = ""
}

// Field returns the current value of a field.
func (r *Reconciler) Field(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[name]
	return v, ok
}

// ValidateLocally checks the current fields without touching the draft's errors.
func (r *Reconciler) ValidateLocally() map[string]string {
	r.mu.Lock()
	fields := copyFields(r.fields)
	r.mu.Unlock()

	out := map[string]string{}
	for _, fe := range r.schema.Validate(r.validate, fields) {
		out[fe.Field] = fe.Message
	}
	return out
}

// Submit validates the draft and, when it is valid, calls save. Calls made while a
// previous save is still running return OutcomeBusy without calling save. The
// returned error is the save error for OutcomeRejected and nil otherwise.
func (r *Reconciler) Submit(ctx context.Context, save SaveFunc) (Outcome, error) {
	r.mu.Lock()
	if r.state == StateSubmitting {
		r.mu.Unlock()
		return OutcomeBusy, nil
	}
	r.state = StateValidating
	fields := copyFields(r.fields)

	if errs := r.schema.Validate(r.validate, fields); len(errs) > 0 {
		r.fieldErrors = make(map[string]string, len(errs))
		for _, fe := range errs {
			r.fieldErrors[fe.Field] = fe.Message
		}
		r.generalError = Summary(errs)
		r.state = StateInvalid
		r.mu.Unlock()
		return OutcomeInvalid, nil
	}
	r.state = StateSubmitting
	r.mu.Unlock()

	err := save(ctx, fields)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		normalized := Normalize(err)
		r.generalError = normalized.General()
		r.fieldErrors = normalized.Fields()
		r.state = StateFailed
		r.logger.Debug("form save rejected",
			zap.String("form", r.schema.Name),
			zap.Int("field_errors", len(r.fieldErrors)),
			zap.Error(err),
		)
		return OutcomeRejected, err
	}
	r.generalError = ""
	r.fieldErrors = map[string]string{}
	r.state = StateSaved
	return OutcomeSaved, nil
}

// State returns the lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Draft returns a copy of the current draft.
func (r *Reconciler) Draft() Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := make(map[string]string, len(r.fieldErrors))
	for k, v := range r.fieldErrors {
		errs[k] = v
	}
	return Draft{
		Fields:       copyFields(r.fields),
		GeneralError: r.generalError,
		FieldErrors:  errs,
		State:        r.state,
	}
}

func defaultValue(spec FieldSpec) any {
	switch spec.Kind {
	case KindNumber:
		return nil
	case KindList:
		return []string{}
	}
	return ""
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
