package contract

import "errors"

// Taxonomy of recoverable failures. All of these are handled locally with a
// degraded-but-nonfatal outcome; none may surface to the query caller.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolTransport    = errors.New("tool transport failed")
	ErrRoutingExhausted = errors.New("handoff chain exhausted")
	ErrGeneration       = errors.New("generation failed")
	ErrClassification   = errors.New("classification failed")

	ErrValidation = errors.New("validation failed")
)
