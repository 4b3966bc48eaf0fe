package domain

import "errors"

var (
	ErrStoreUnavailable  = errors.New("karma store unavailable")
	ErrInvalidKarma      = errors.New("stored karma value is not a number")
	ErrMalformedDocument = errors.New("malformed karma document")
)
