package question

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("question already exists")
	ErrNotFound     = errors.New("question not found")
	ErrLookupFailed = errors.New("title lookup failed")
	ErrStoreFailure = errors.New("store failure")
)
