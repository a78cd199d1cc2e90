package registry

import "errors"

// Sentinel errors surfaced on the IPC response per spec.md §7.3.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("resource not found")
	ErrUnknownIfidx    = errors.New("unknown interface index")
)
