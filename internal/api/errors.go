package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sync transport. Callers match with errors.Is; the
// wrapped message carries HTTP status and server-provided detail.
var (
	ErrInvalidURL = errors.New("invalid url")
	ErrClient     = errors.New("client error")
	ErrServer     = errors.New("server error")
	ErrUnknown    = errors.New("unknown error")
	ErrParse      = errors.New("parse error")
	ErrNetwork    = errors.New("network error")

	// ErrNoToken is a local precondition failure: no request is made without
	// a stored credential. It matches ErrClient.
	ErrNoToken = fmt.Errorf("%w: no auth token stored", ErrClient)
)
