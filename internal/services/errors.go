package services

import (
	"fmt"

	"github.com/kdashto/spinwheel/internal/eligibility"
	"github.com/kdashto/spinwheel/internal/errors"
	"github.com/kdashto/spinwheel/internal/selection"
	"github.com/kdashto/spinwheel/internal/wheel"
)

// Service errors
var (
	ErrLoginRequired   = errors.Unauthorized("login required to spin")
	ErrCooldownActive  = errors.Cooldown("spin cooldown active")
	ErrSpinInProgress  = wheel.ErrSpinInProgress
	ErrCatalogInvalid  = selection.ErrCatalogInvalid
	ErrSpinCancelled   = errors.Conflict("spin was cancelled")
	ErrNoResult        = errors.NotFound("no spin result yet")
	ErrBaseURLNotSet   = &ServiceError{Message: "base_url not configured"}
	ErrInvalidLimit    = &ServiceError{Message: "limit must be between 0 and 500"}
	ErrInvalidNudgeDir = &ServiceError{Message: "direction must be -1 or 1"}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// CooldownError is returned when a spin is attempted before the cooldown
// window has elapsed. It matches ErrCooldownActive.
type CooldownError struct {
	Status eligibility.Status
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("next spin available in %s", e.Status.WaitTime)
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}
