// Package apperr holds the error kinds shared by the services and mapped to
// HTTP statuses by the API layer.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Required is the validation error for a single missing field.
func Required(field string) error {
	return NewValidationError(errors.Errorf("%s is required", field), FieldError{Field: field, Error: "this field is required"})
}

type NotFoundError struct {
	Resource string
	ID       any
}

func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

type ForbiddenError struct {
	Reason string
}

func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func (e ForbiddenError) Error() string {
	return e.Reason
}

// TransitionError rejects a state change; the entity is left untouched.
type TransitionError struct {
	Entity string
	From   string
	Action string
	Reason string
}

func Transition(entity, from, action, reason string) error {
	return &TransitionError{Entity: entity, From: from, Action: action, Reason: reason}
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %s: %s", e.Entity, e.Action, e.From, e.Reason)
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

func IsTransition(err error) bool {
	_, ok := errors.Cause(err).(*TransitionError)
	return ok
}
