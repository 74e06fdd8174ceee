package fetcher

import (
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when a feed file downloads with no content.
var ErrEmptyPayload = errors.New("empty feed payload")

// FetchError reports a failed connect, login, transfer or timeout. Feed is
// empty when the failure happened before any file was requested.
type FetchError struct {
	Feed string
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Feed == "" {
		return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Op, e.Feed, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
