package headlines

import "fmt"

// FailureKind classifies why a headline batch could not be fetched.
type FailureKind string

const (
	// KindUpstreamStatus means the listing API answered with a non-2xx status.
	KindUpstreamStatus FailureKind = "upstream_status"
	// KindUnavailable means the request never completed (DNS, connect, timeout).
	KindUnavailable FailureKind = "unavailable"
	// KindBadResponse means the body could not be decoded.
	KindBadResponse FailureKind = "bad_response"
)

// FetchError is returned by every adapter in this package.
type FetchError struct {
	Source     string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUpstreamStatus:
		return fmt.Sprintf("%s: upstream returned status %d", e.Source, e.StatusCode)
	case KindUnavailable:
		return fmt.Sprintf("%s: service unavailable: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("%s: bad upstream response: %v", e.Source, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
