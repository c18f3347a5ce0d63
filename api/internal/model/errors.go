package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	// ErrStaleContext is returned by context stores when the pending draft
	// outlived its window. Callers treat it as "no pending context".
	ErrStaleContext = errors.New("pending context expired")
)

// AmbiguousIntentError means the message could not be classified as an
// expense, payment, query or reset.
type AmbiguousIntentError struct {
	Text     string
	Question string // clarifying question suggested by the extractor, may be empty
}

func (e *AmbiguousIntentError) Error() string {
	return fmt.Sprintf("cannot classify %q", e.Text)
}

// ValidationError rejects a complete intent. Warning marks soft rejections
// such as a one-person split.
type ValidationError struct {
	Reason  string
	Warning bool
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownMembersError lists mention tokens that did not resolve.
func UnknownMembersError(tokens []string) *ValidationError {
	tagged := make([]string, len(tokens))
	for i, t := range tokens {
		tagged[i] = "@" + NormalizeToken(t)
	}
	return NewValidationError("I don't know %s yet. Ask them to send /start here first.", strings.Join(tagged, ", "))
}

// OracleUnavailableError wraps a failed or timed out oracle call.
type OracleUnavailableError struct {
	Err error
}

func (e *OracleUnavailableError) Error() string {
	return "nlp oracle unavailable: " + e.Err.Error()
}

func (e *OracleUnavailableError) Unwrap() error {
	return e.Err
}
