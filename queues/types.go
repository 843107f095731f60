package queues

import (
	"context"
	"encoding/json"
)

type LookupRequest struct {
	RequestID string `json:"requestId"`
	Slug      string `json:"slug"`
}

type LookupStatus string

const (
	StatusSuccess LookupStatus = "Success"
	StatusFailure LookupStatus = "Failure"
)

type LookupResult struct {
	EnvelopeVersion string          `json:"envelopeVersion"`
	Type            string          `json:"type"`
	RequestID       string          `json:"requestId"`
	Slug            string          `json:"slug"`
	Status          LookupStatus    `json:"status"`
	StatusCode      int             `json:"statusCode,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ErrorMessage    *string         `json:"errorMessage,omitempty"`
}

type Subscriber interface {
	Start(ctx context.Context, handler func(context.Context, *LookupRequest) error) error
}

type Publisher interface {
	PublishResult(ctx context.Context, res *LookupResult) error
}
