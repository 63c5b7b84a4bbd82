package gemini

import "fmt"

// TransportError covers network failures, timeouts, and non-2xx responses,
// including rate limits. The analyzer retries these against its transport
// budget.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the failure was a quota rejection.
func (e *TransportError) RateLimited() bool {
	return e.Status == 429
}

// ParseError means the endpoint answered but the body was not usable. It
// shares the transport retry budget since a second attempt against a
// non-deterministic model can succeed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
