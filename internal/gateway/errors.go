package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches failures where no HTTP response was received.
	ErrTransport = errors.New("transport failure")
	// ErrHTTPStatus matches responses with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected status code")
	// ErrDecode matches 2xx responses whose body is not JSON.
	ErrDecode = errors.New("undecodable response body")
	// ErrCircuitOpen is the cause of a transport failure raised by an open breaker.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrUnknownMode is returned before any request for a mode without a resource.
	ErrUnknownMode = errors.New("unknown analysis mode")

	errNoBaseURL = errors.New("gateway base URL not configured")
)

// ErrorKind classifies a RequestError.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindHTTP
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// RequestError is the single failure type returned by the gateway.
// Status is zero for transport failures.
type RequestError struct {
	Kind      ErrorKind
	Status    int
	Path      string
	RequestID string
	Err       error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("GET %s: %s: %d", e.Path, ErrHTTPStatus, e.Status)
	case KindDecode:
		return fmt.Sprintf("GET %s: %s: %v", e.Path, ErrDecode, e.Err)
	default:
		return fmt.Sprintf("GET %s: %s: %v", e.Path, ErrTransport, e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is lets callers match the kind with errors.Is(err, ErrTransport) and friends.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrHTTPStatus:
		return e.Kind == KindHTTP
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
