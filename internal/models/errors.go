package models

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the specific errors below wrap
// one of these so a handler can map a whole family to one response.
var (
	ErrValidation = errors.New("validation failed")
	ErrState      = errors.New("invalid state")
	ErrNotFound   = errors.New("not found")
	ErrOwnership  = errors.New("not owned by user")
)

var (
	// ErrMissingSeasonEpisode is returned when a show event lacks season/episode
	ErrMissingSeasonEpisode = fmt.Errorf("%w: season and episode are required for shows", ErrValidation)

	// ErrNoUnderwayEvent is returned by an update when nothing is in progress
	ErrNoUnderwayEvent = fmt.Errorf("%w: there is no seen item underway", ErrState)

	// ErrDataInconsistency means more than one event is in progress for the same
	// user and media. It is reported, never repaired automatically.
	ErrDataInconsistency = fmt.Errorf("%w: more than one seen item is underway", ErrState)

	// ErrAlreadyUnderway is returned when starting an item that is already in progress
	ErrAlreadyUnderway = fmt.Errorf("%w: a seen item is already underway", ErrState)
)
