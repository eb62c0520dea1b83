package models

import (
	"errors"
	"strings"
)

var (
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrIdempotencyInFlight  = errors.New("a request with this idempotency key is still in progress")
	ErrIdempotencyKeyReused = errors.New("idempotency key was already used with a different request body")
)

// ValidationError describes one rejected field of an incoming document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rejected field of one document.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ve := range e {
		msgs = append(msgs, ve.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
