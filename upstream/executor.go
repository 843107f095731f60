package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sorare-proxy/metrics"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEndpoint   = "https://api.sorare.com/graphql"
	DefaultUserAgent  = "sorare-proxy/1.0"
	DefaultAuthHeader = "APIKEY"
	DefaultTimeout    = 10 * time.Second
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Executor posts GraphQL queries to a single upstream endpoint.
type Executor struct {
	endpoint   string
	apiKey     string
	authHeader string
	userAgent  string
	doer       HTTPDoer
}

type Option func(*Executor)

func WithEndpoint(url string) Option {
	return func(e *Executor) {
		if url != "" {
			e.endpoint = url
		}
	}
}

func WithAuthHeader(name string) Option {
	return func(e *Executor) {
		if name != "" {
			e.authHeader = name
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// WithTimeout replaces the HTTP client with one bounded by timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.doer = &http.Client{Timeout: timeout}
		}
	}
}

func WithHTTPDoer(doer HTTPDoer) Option {
	return func(e *Executor) {
		if doer != nil {
			e.doer = doer
		}
	}
}

// NewExecutor builds an Executor. apiKey may be empty; requests are still sent.
func NewExecutor(apiKey string, opts ...Option) *Executor {
	e := &Executor{
		endpoint:   DefaultEndpoint,
		apiKey:     apiKey,
		authHeader: DefaultAuthHeader,
		userAgent:  DefaultUserAgent,
		doer:       &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute sends one query. Upstream rejections come back as a Failure result;
// the error is non-nil only for transport faults.
func (e *Executor) Execute(ctx context.Context, query string, variables map[string]any) (*Result, error) {
	start := time.Now()
	name := operationName(query)

	req, err := e.build(ctx, query, variables)
	if err != nil {
		return nil, err
	}

	resp, err := e.doer.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(name, "transport_error").Inc()
		log.Error().Err(err).Str("query", name).Str("endpoint", e.endpoint).Msg("upstream: request failed")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(name, "transport_error").Inc()
		log.Error().Err(err).Str("query", name).Int("status", resp.StatusCode).Msg("upstream: reading response body failed")
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	metrics.UpstreamRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	res := classify(resp.StatusCode, raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().
			Str("query", name).
			Int("status", resp.StatusCode).
			Str("statusText", http.StatusText(resp.StatusCode)).
			Str("body", res.RawBody).
			Msg("upstream: Sorare API error")
	} else if res.Payload == nil {
		log.Error().Str("query", name).Int("status", resp.StatusCode).Str("body", res.RawBody).Msg("upstream: response is not valid JSON")
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(name, string(res.Outcome)).Inc()
	log.Debug().Str("query", name).Int("status", res.StatusCode).Dur("duration", time.Since(start)).Msg("upstream: request complete")
	return res, nil
}

func (e *Executor) build(ctx context.Context, query string, variables map[string]any) (*http.Request, error) {
	buf, err := json.Marshal(QueryRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	if e.apiKey != "" {
		req.Header.Set(e.authHeader, e.apiKey)
	}
	return req, nil
}

func classify(status int, raw []byte) *Result {
	res := &Result{Outcome: OutcomeFailure, StatusCode: status, RawBody: string(raw)}
	if json.Valid(raw) {
		res.Payload = json.RawMessage(raw)
	}
	if status >= 200 && status <= 299 && res.Payload != nil {
		res.Outcome = OutcomeSuccess
	}
	return res
}
