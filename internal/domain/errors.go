package domain

import "errors"

var (
	// ErrInconsistentState is returned when persisted state cannot be reconciled
	// with the in-memory route, e.g. the persisted destination is not a stop.
	ErrInconsistentState = errors.New("inconsistent route state")

	// ErrAlreadyFinished is a benign error for commands issued after the last stop.
	ErrAlreadyFinished = errors.New("route already finished")

	// ErrInvalidTransition is returned when a command is not valid in the current status.
	ErrInvalidTransition = errors.New("invalid route status transition")

	ErrRouteNotFound = errors.New("route not found")
)
