package chat

import "errors"

var (
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrNotFound            = errors.New("not found")
	ErrEmptyTitle          = errors.New("title must not be empty")
	ErrInvalidRole         = errors.New("role must be user or assistant")
	ErrNothingToRegenerate = errors.New("nothing to regenerate")
)
