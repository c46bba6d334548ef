package schema

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel reasons carried by ValidationError. Use errors.Is to test them.
var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidEnum  = errors.New("value outside closed set")
	ErrTypeMismatch = errors.New("unexpected type")
	ErrEmptyValue   = errors.New("value must not be empty")
)

// ValidationError identifies the offending field path in decoded model output
// (e.g. "riskMatrix[2].riskLevel") together with the value received.
type ValidationError struct {
	Path   string
	Value  any
	Reason error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Reason, ErrMissingField) {
		return fmt.Sprintf("schema: %s: %v", e.Path, e.Reason)
	}
	return fmt.Sprintf("schema: %s: %v (got %s)", e.Path, e.Reason, e.Received())
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Received renders the offending value for diagnostics: strings quoted,
// objects and arrays by kind. It is "" for a missing field.
func (e *ValidationError) Received() string {
	if errors.Is(e.Reason, ErrMissingField) {
		return ""
	}
	return describe(e.Value)
}

// describe renders a received value for diagnostics.
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T %v", v, v)
	}
}

// ParseRiskLevel converts s to a RiskLevel. No case folding or trimming is
// applied; anything outside the closed set is rejected.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("schema: risk level %q: %w", s, ErrInvalidEnum)
	}
	return l, nil
}

// ParseCategory converts s to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("schema: risk category %q: %w", s, ErrInvalidEnum)
	}
	return c, nil
}

// object is a decoded JSON object positioned at a field path.
type object struct {
	path string
	m    map[string]any
}

func (o object) at(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

func (o object) fail(key string, v any, reason error) error {
	return &ValidationError{Path: o.at(key), Value: v, Reason: reason}
}

// lookup returns the value for key. JSON null is treated as absent.
func (o object) lookup(key string) (any, bool) {
	v, ok := o.m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (o object) object(key string) (object, error) {
	v, ok := o.lookup(key)
	if !ok {
		return object{}, o.fail(key, nil, ErrMissingField)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return object{}, o.fail(key, v, ErrTypeMismatch)
	}
	return object{path: o.at(key), m: m}, nil
}

func (o object) requiredString(key string) (string, error) {
	v, ok := o.lookup(key)
	if !ok {
		return "", o.fail(key, nil, ErrMissingField)
	}
	s, ok := v.(string)
	if !ok {
		return "", o.fail(key, v, ErrTypeMismatch)
	}
	return s, nil
}

func (o object) nonEmptyString(key string) (string, error) {
	s, err := o.requiredString(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", o.fail(key, s, ErrEmptyValue)
	}
	return s, nil
}

// optionalString returns "" when key is absent or null.
func (o object) optionalString(key string) (string, error) {
	v, ok := o.lookup(key)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", o.fail(key, v, ErrTypeMismatch)
	}
	return s, nil
}

func (o object) riskLevel(key string) (RiskLevel, error) {
	s, err := o.requiredString(key)
	if err != nil {
		return "", err
	}
	l, err := ParseRiskLevel(s)
	if err != nil {
		return "", o.fail(key, s, ErrInvalidEnum)
	}
	return l, nil
}

func (o object) category(key string) (Category, error) {
	s, err := o.requiredString(key)
	if err != nil {
		return "", err
	}
	c, err := ParseCategory(s)
	if err != nil {
		return "", o.fail(key, s, ErrInvalidEnum)
	}
	return c, nil
}

// array returns the elements at key, or nil when absent.
func (o object) array(key string) ([]any, error) {
	v, ok := o.lookup(key)
	if !ok {
		return nil, nil
	}
	a, ok := v.([]any)
	if !ok {
		return nil, o.fail(key, v, ErrTypeMismatch)
	}
	return a, nil
}

// stringList returns the strings at key; absent means an empty, non-nil slice.
func (o object) stringList(key string) ([]string, error) {
	a, err := o.array(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(a))
	for i, v := range a {
		s, ok := v.(string)
		if !ok {
			return nil, &ValidationError{
				Path:   fmt.Sprintf("%s[%d]", o.at(key), i),
				Value:  v,
				Reason: ErrTypeMismatch,
			}
		}
		out = append(out, s)
	}
	return out, nil
}
