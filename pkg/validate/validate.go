package validate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/schema"
)

// Kind classifies a per-field validation failure.
type Kind string

const (
	MissingValue Kind = "missing_value"
	NotANumber   Kind = "not_a_number"
	OutOfRange   Kind = "out_of_range"
)

// Input is the raw, not-yet-parsed form data keyed by field name.
type Input map[string]string

// FieldError is the failure recorded for one field.
type FieldError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error collects every failing field of a single validation pass.
type Error struct {
	Fields map[string]FieldError
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name].Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Messages returns the field → message mapping shown next to form inputs.
func (e *Error) Messages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for name, fe := range e.Fields {
		out[name] = fe.Message
	}
	return out
}

func (e *Error) add(f schema.Field, kind Kind, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]FieldError)
	}
	e.Fields[f.Name] = FieldError{Field: f.Name, Kind: kind, Message: msg}
}

func (e *Error) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validate checks every schema field of in and returns the parsed values.
// All fields are evaluated; a non-nil error is always an *Error.
func Validate(in Input, s schema.Schema) (assess.Measurements, error) {
	out := make(assess.Measurements, s.Len())
	verr := &Error{}
	for _, f := range s.Fields() {
		raw := strings.TrimSpace(in[f.Name])
		if raw == "" {
			verr.add(f, MissingValue, "This field is required")
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			verr.add(f, NotANumber, "Please enter a valid number")
			continue
		}
		if !f.Contains(v) {
			verr.add(f, OutOfRange, rangeMessage(f))
			continue
		}
		out[f.Name] = v
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// Measurements applies the same rules to already-numeric values.
func Measurements(m assess.Measurements, s schema.Schema) error {
	verr := &Error{}
	for _, f := range s.Fields() {
		v, ok := m[f.Name]
		switch {
		case !ok:
			verr.add(f, MissingValue, "This field is required")
		case math.IsNaN(v) || math.IsInf(v, 0):
			verr.add(f, NotANumber, "Please enter a valid number")
		case !f.Contains(v):
			verr.add(f, OutOfRange, rangeMessage(f))
		}
	}
	return verr.orNil()
}

func rangeMessage(f schema.Field) string {
	return fmt.Sprintf("Value must be between %s and %s", schema.FormatNumber(f.Min), schema.FormatNumber(f.Max))
}
