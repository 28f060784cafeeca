package fetch

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Kind classifies a failed remote call
type Kind int

const (
	// KindStatus is a non-2xx response
	KindStatus Kind = iota + 1
	// KindTransport is a failure below HTTP: refused connection, DNS, timeout, unreadable body
	KindTransport
	// KindExhausted means every allowed attempt failed
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindTransport:
		return "transport"
	case KindExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RemoteError is the terminal or per-attempt failure of an upstream call.
// An exhausted error carries the last attempt's failure in Last and mirrors its status code.
type RemoteError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Message    string
	Retryable  bool
	Attempts   int
	Last       *RemoteError
}

func (e *RemoteError) Error() string {
	switch e.Kind {
	case KindExhausted:
		if e.Last != nil {
			return fmt.Sprintf("%s: attempts exceeded (%d): %s", e.Endpoint, e.Attempts, e.Last.Error())
		}
		return fmt.Sprintf("%s: attempts exceeded (%d)", e.Endpoint, e.Attempts)
	case KindStatus:
		return fmt.Sprintf("%s: upstream status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s error: %s", e.Endpoint, e.Kind, e.Message)
	}
}

func (e *RemoteError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// IsExhausted reports whether err is an attempts-exceeded failure
func IsExhausted(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == KindExhausted
}

func statusError(endpoint string, code int, body []byte) *RemoteError {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &RemoteError{
		Kind:       KindStatus,
		Endpoint:   endpoint,
		StatusCode: code,
		Message:    msg,
	}
}

func transportError(endpoint string, err error) *RemoteError {
	return &RemoteError{
		Kind:       KindTransport,
		Endpoint:   endpoint,
		StatusCode: http.StatusInternalServerError,
		Message:    err.Error(),
	}
}
