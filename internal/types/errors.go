package types

import "errors"

// Domain specific errors for the place cache and enrichment pipeline.
var (
	ErrNotFound            = errors.New("requested item not found")
	ErrBadRequest          = errors.New("bad request")
	ErrInvalidLocation     = errors.New("missing or out-of-range coordinates")
	ErrProviderUnavailable = errors.New("enrichment provider unavailable")
	ErrStoreUnavailable    = errors.New("place store unavailable")
)
