package sim

import "errors"

var (
	// ErrConfiguration reports invalid constructor parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientMargin is returned by Open when cash cannot cover the
	// required margin. Callers may skip the trade and continue.
	ErrInsufficientMargin = errors.New("insufficient margin")

	// ErrInvalidState is returned when Open is called with a position already
	// open, or Close with none. It signals a caller bug and must not be
	// swallowed.
	ErrInvalidState = errors.New("invalid broker state")
)
