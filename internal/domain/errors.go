package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Adapters map it to 404/NOT_FOUND; the conversion webhook swallows it.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput covers every synchronous validation failure at the boundary.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned on unique-key collisions and lost compare-and-swap races.
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
	// ErrTransient marks collaborator failures that are safe to retry (payout provider outage).
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks collaborator rejections that retrying cannot fix.
	ErrPermanent = errors.New("permanent failure")
)
