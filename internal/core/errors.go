package core

import (
	"strings"
)

// Where a rejected value came from.
const (
	SourceBody  = "body"
	SourceQuery = "query"
	SourcePath  = "path"
)

// Kinds of field errors, named after the codes API clients already match on.
const (
	KindMissing      = "value_error.missing"
	KindEnum         = "type_error.enum"
	KindFloat        = "type_error.float"
	KindInteger      = "type_error.integer"
	KindString       = "type_error.str"
	KindDateTime     = "value_error.datetime"
	KindDate         = "value_error.date"
	KindJSON         = "value_error.jsondecode"
	KindGreaterEqual = "value_error.number.not_ge"
	KindNone         = "type_error.none.not_allowed"
	KindDict         = "type_error.dict"
	KindRange        = "value_error.range"
)

// FieldError describes one rejected field.
type FieldError struct {
	Source  string
	Field   string
	Kind    string
	Message string
}

// ValidationError collects every field problem of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Source+"."+f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field error.
func (e *ValidationError) Add(source, field, kind, message string) {
	e.Fields = append(e.Fields, FieldError{Source: source, Field: field, Kind: kind, Message: message})
}

// Merge appends the fields of other when it is a *ValidationError.
func (e *ValidationError) Merge(other error) {
	if v, ok := other.(*ValidationError); ok && v != nil {
		e.Fields = append(e.Fields, v.Fields...)
	}
}

// OrNil returns nil when no field error was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Has reports whether field has been rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
