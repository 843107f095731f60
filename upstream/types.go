package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks network-level faults: refused connections, timeouts, DNS, cancellation.
	ErrTransport = errors.New("upstream transport error")
	// ErrMalformed marks a response body that is not valid JSON.
	ErrMalformed = errors.New("upstream returned malformed JSON")
)

// QueryRequest is the JSON body posted to the GraphQL endpoint.
type QueryRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailure Outcome = "Failure"
)

// Result is the outcome of a single upstream call.
// Payload is nil when the body did not parse as JSON.
type Result struct {
	Outcome    Outcome
	StatusCode int
	RawBody    string
	Payload    json.RawMessage
}

func (r *Result) OK() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// Err converts a failed result into an error. It returns nil on success.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Body: r.RawBody, Malformed: r.Payload == nil}
}

// StatusError is an upstream rejection or an unparseable response.
type StatusError struct {
	StatusCode int
	Body       string
	Malformed  bool
}

func (e *StatusError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("Sorare API error: %d (invalid JSON body)", e.StatusCode)
	}
	return fmt.Sprintf("Sorare API error: %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.Malformed {
		return ErrMalformed
	}
	return nil
}

func (e *StatusError) StatusText() string {
	return http.StatusText(e.StatusCode)
}
