package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrServiceUnavailable = errors.New("no available worker")
	ErrBadGateway         = errors.New("worker call failed")
	ErrGatewayTimeout     = errors.New("worker did not answer in time")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMalformedResponse  = errors.New("malformed worker response")
)

// StatusError reports a non-success HTTP status from a worker.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("worker responded with status %d: %s", e.StatusCode, e.Body)
}
