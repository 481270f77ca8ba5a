// Package form holds draft state for create/edit forms, validates it locally and
// reconciles rejections coming back from the upstream API.
package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Kind describes how a field is validated and coerced.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindPassword Kind = "password"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindChoice   Kind = "choice"
	KindList     Kind = "list"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

const summarySeparator = " • "

var phonePattern = regexp.MustCompile(`^[0-9]{9,15}$`)

// FieldSpec declares one field of a form.
type FieldSpec struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     Kind     `json:"kind"`
	Required bool     `json:"required"`
	MinLen   int      `json:"minLength,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Options  []string `json:"options,omitempty"`
	// Elem validates each entry of a list field.
	Elem Kind `json:"elem,omitempty"`
}

// Check is a cross-field rule. It returns the offending field and message, or two
// empty strings when the rule holds.
type Check func(fields map[string]any) (string, string)

// Schema is the ordered field set of one form.
type Schema struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
	Checks []Check     `json:"-"`
}

// Field looks up a field by name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldError is a message bound to a field.
type FieldError struct {
	Field   string
	Message string
}

// NewValidator returns a validator with the form-specific tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(normalizePhone(fl.Field().String()))
	})
	return v
}

// Validate runs every field rule followed by the cross-field checks. Errors are
// returned in schema order, at most one per field.
func (s Schema) Validate(v *validator.Validate, fields map[string]any) []FieldError {
	var out []FieldError
	seen := map[string]bool{}
	for _, spec := range s.Fields {
		if msg := spec.validate(v, fields[spec.Name]); msg != "" {
			out = append(out, FieldError{Field: spec.Name, Message: msg})
			seen[spec.Name] = true
		}
	}
	for _, check := range s.Checks {
		field, msg := check(fields)
		if msg == "" || seen[field] {
			continue
		}
		out = append(out, FieldError{Field: field, Message: msg})
		seen[field] = true
	}
	return out
}

func (f FieldSpec) validate(v *validator.Validate, value any) string {
	if isBlank(value) {
		if f.Required {
			return fmt.Sprintf("%s is required.", f.Label)
		}
		return ""
	}

	switch f.Kind {
	case KindEmail:
		if v.Var(strings.TrimSpace(asString(value)), "email") != nil {
			return "Please enter a valid email address."
		}
	case KindPhone:
		if v.Var(asString(value), "phone") != nil {
			return "Phone must be 9-15 digits."
		}
	case KindPassword:
		minLen := f.MinLen
		if minLen <= 0 {
			minLen = 6
		}
		if v.Var(asString(value), "min="+strconv.Itoa(minLen)) != nil {
			return fmt.Sprintf("%s must be at least %d characters.", f.Label, minLen)
		}
	case KindNumber:
		n, ok := value.(float64)
		if !ok {
			return fmt.Sprintf("%s must be a number.", f.Label)
		}
		if f.Min != nil && v.Var(n, "gte="+formatNumber(*f.Min)) != nil {
			return fmt.Sprintf("%s must be at least %s.", f.Label, formatNumber(*f.Min))
		}
		if f.Max != nil && v.Var(n, "lte="+formatNumber(*f.Max)) != nil {
			return fmt.Sprintf("%s must be at most %s.", f.Label, formatNumber(*f.Max))
		}
	case KindDate:
		if v.Var(asString(value), "datetime="+DateLayout) != nil {
			return fmt.Sprintf("%s must be a valid date (YYYY-MM-DD).", f.Label)
		}
	case KindChoice:
		if !containsFold(f.Options, asString(value)) {
			return fmt.Sprintf("%s must be one of: %s.", f.Label, strings.Join(f.Options, ", "))
		}
	case KindList:
		for _, entry := range asList(value) {
			if f.Elem == KindEmail && v.Var(entry, "email") != nil {
				return fmt.Sprintf("%s contains an invalid email address: %s.", f.Label, entry)
			}
		}
	default:
		if f.MinLen > 0 && v.Var(strings.TrimSpace(asString(value)), "min="+strconv.Itoa(f.MinLen)) != nil {
			return fmt.Sprintf("%s must be at least %d characters.", f.Label, f.MinLen)
		}
	}
	return ""
}

// coerce converts a value assigned to a numeric field into float64 and a list field
// into trimmed []string. Values that do not parse are kept unchanged so validation
// can report them.
func (f FieldSpec) coerce(value any) any {
	switch f.Kind {
	case KindNumber:
	case KindList:
		switch value.(type) {
		case nil, string, []string, []any:
			return asList(value)
		}
		return value
	default:
		return value
	}
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return value
}

// Summary joins the first two messages into a banner line.
func Summary(errs []FieldError) string {
	msgs := make([]string, 0, 2)
	for _, e := range errs {
		if len(msgs) == 2 {
			break
		}
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, summarySeparator)
}

// MatchField requires field to equal other.
func MatchField(field, other, message string) Check {
	return func(fields map[string]any) (string, string) {
		a, b := asString(fields[field]), asString(fields[other])
		if a == "" || a == b {
			return "", ""
		}
		return field, message
	}
}

// DateNotBefore requires the date in field to be on or after the one in other.
func DateNotBefore(field, other, message string) Check {
	return func(fields map[string]any) (string, string) {
		end, errEnd := time.Parse(DateLayout, asString(fields[field]))
		start, errStart := time.Parse(DateLayout, asString(fields[other]))
		if errEnd != nil || errStart != nil || !end.Before(start) {
			return "", ""
		}
		return field, message
	}
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	default:
		return fmt.Sprint(v)
	}
}

// asList accepts []string, []any or a comma separated string.
func asList(value any) []string {
	var raw []string
	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, asString(item))
		}
	case string:
		raw = strings.Split(v, ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func containsFold(options []string, value string) bool {
	for _, o := range options {
		if strings.EqualFold(o, strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}
