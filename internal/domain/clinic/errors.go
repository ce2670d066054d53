package clinic

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrQueueRange = errors.New("queue position out of range")
)

// NotFoundError reports a lookup of an id that is not in its table.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found on one entity.
type ValidationError struct {
	Entity string       `json:"entity"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// fieldErrors accumulates FieldErrors for one entity.
type fieldErrors struct {
	entity string
	fields []FieldError
}

func newFieldErrors(entity string) *fieldErrors {
	return &fieldErrors{entity: entity}
}

func (f *fieldErrors) add(field, format string, args ...interface{}) {
	f.fields = append(f.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (f *fieldErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, "is required")
	}
}

func (f *fieldErrors) oneOf(field, value string, allowed map[string]bool) {
	if value != "" && !allowed[value] {
		f.add(field, "invalid value %q", value)
	}
}

// enum is oneOf for fields that must always hold a value. Creates fill the
// default first, so an empty value here comes from a patch clearing it.
func (f *fieldErrors) enum(field, value string, allowed map[string]bool) {
	if value == "" {
		f.add(field, "is required")
		return
	}
	f.oneOf(field, value, allowed)
}

func (f *fieldErrors) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	return &ValidationError{Entity: f.entity, Fields: f.fields}
}
