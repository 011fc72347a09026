package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers map these onto HTTP statuses, so every failure
// mode of the request pipeline has exactly one sentinel.
var (
	ErrUnauthorized        = errors.New("pipeline: invalid or missing token")
	ErrPlanLimit           = errors.New("pipeline: plan limit reached")
	ErrRateLimited         = errors.New("pipeline: rate limited")
	ErrInvalidInput        = errors.New("pipeline: invalid input")
	ErrInsufficientCredits = errors.New("pipeline: insufficient credits")
	ErrBackendQuota        = errors.New("pipeline: backend quota exhausted")
	ErrNoArtifact          = errors.New("pipeline: backend produced no artifact")
	ErrNotFound            = errors.New("pipeline: record not found")
	ErrForbidden           = errors.New("pipeline: operation belongs to another account")
)

// InsufficientCreditsError carries the current balance so the client can
// render an upgrade prompt without a follow-up request.
type InsufficientCreditsError struct {
	Balance  int
	Required int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("pipeline: insufficient credits (have %d, need %d)", e.Balance, e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// PlanLimitError carries the balance for the same reason: the 403 body
// includes credits_remaining.
type PlanLimitError struct {
	Balance int
	Reason  string
}

func (e *PlanLimitError) Error() string {
	return fmt.Sprintf("pipeline: plan limit reached: %s", e.Reason)
}

func (e *PlanLimitError) Unwrap() error { return ErrPlanLimit }

// ValidationError is a 400 with a human-readable message.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline: invalid input: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
