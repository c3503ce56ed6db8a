package connectivity

import "fmt"

// ErrServiceNotFound is returned when a service has neither a route nor a
// local handler.
type ErrServiceNotFound struct {
	Service string
}

func (e *ErrServiceNotFound) Error() string {
	return fmt.Sprintf("connectivity: service not routable: %s", e.Service)
}

// ErrFactoryFailed wraps a TransportFactory error for one route.
type ErrFactoryFailed struct {
	Service  string
	Strategy string
	Endpoint string
	Cause    error
}

func (e *ErrFactoryFailed) Error() string {
	return fmt.Sprintf("connectivity: factory %q failed for service %s (endpoint %s): %v",
		e.Strategy, e.Service, e.Endpoint, e.Cause)
}

func (e *ErrFactoryFailed) Unwrap() error { return e.Cause }

// ErrCircuitOpen is returned when the breaker for a service rejects a call.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("connectivity: circuit open: %s", e.Service)
}

// StatusError is a non-2xx answer from a remote endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connectivity: status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying (429 and 5xx).
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}

// ErrPanic wraps a recovered panic value.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("connectivity: handler panicked: %v", e.Value)
}
