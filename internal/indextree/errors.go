package indextree

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/Project-Sylos/IndexTree/internal/db"
	"github.com/Project-Sylos/IndexTree/internal/fetch"
	"github.com/Project-Sylos/IndexTree/internal/upstream"
	"github.com/Project-Sylos/IndexTree/internal/walker"
)

// ErrInvalidContext marks a query context that failed validation
var ErrInvalidContext = errors.New("invalid query context")

// ErrNotFound is returned when the cache holds no rows for a lookup
var ErrNotFound = db.ErrNotFound

// UnavailableError is a failed build-and-cache run; nothing was persisted
type UnavailableError struct {
	RunID string
	Cause error
}

func (e *UnavailableError) Error() string {
	return "build " + e.RunID + " failed: " + e.Cause.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// StatusCode maps an error returned by Service to an HTTP status
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var unavailable *UnavailableError
	var remote *fetch.RemoteError
	switch {
	case errors.Is(err, ErrInvalidContext):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote):
		if remote.StatusCode > 0 {
			return remote.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, upstream.ErrMalformed),
		errors.Is(err, walker.ErrMaxDepth),
		errors.Is(err, walker.ErrTooManyNodes):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown to callers: the upstream body for remote failures, err.Error() otherwise
func Message(err error) string {
	var remote *fetch.RemoteError
	if errors.As(err, &remote) {
		if remote.Last != nil {
			return remote.Last.Message
		}
		return remote.Message
	}
	return err.Error()
}
