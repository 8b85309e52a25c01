package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrToolNotFound = errors.New("tool not found")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("too many invocations")
)
