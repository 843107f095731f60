package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sorare-proxy/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	query string
	vars  map[string]any
}

type fakeExecutor struct {
	results []*upstream.Result
	errs    []error
	calls   []call
}

func (f *fakeExecutor) Execute(ctx context.Context, query string, variables map[string]any) (*upstream.Result, error) {
	i := len(f.calls)
	f.calls = append(f.calls, call{query: query, vars: variables})
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return f.results[i], nil
}

func success(body string) *upstream.Result {
	return &upstream.Result{Outcome: upstream.OutcomeSuccess, StatusCode: http.StatusOK, RawBody: body, Payload: json.RawMessage(body)}
}

func failure(status int, body string) *upstream.Result {
	return &upstream.Result{Outcome: upstream.OutcomeFailure, StatusCode: status, RawBody: body, Payload: json.RawMessage(body)}
}

func TestNewOrchestrator(t *testing.T) {
	fe := &fakeExecutor{}
	o := NewOrchestrator(fe)
	if o == nil || o.executor != fe {
		t.Errorf("NewOrchestrator() mismatch\no: %#v", o)
	}
}

func TestOrchestrator_FetchPlayer(t *testing.T) {
	transportErr := fmt.Errorf("%w: dial tcp: connection refused", upstream.ErrTransport)
	tests := []struct {
		name        string
		results     []*upstream.Result
		errs        []error
		wantQueries []string
		wantStatus  int
		wantOK      bool
		wantErr     error
	}{
		{
			name:        "rich query success",
			results:     []*upstream.Result{success(`{"data":{"player":{"displayName":"A"}}}`)},
			wantQueries: []string{RichQuery},
			wantStatus:  200,
			wantOK:      true,
		},
		{
			name:        "422 falls back to basic query",
			results:     []*upstream.Result{failure(422, `{"errors":[]}`), success(`{"data":{"player":{"displayName":"Unknown"}}}`)},
			wantQueries: []string{RichQuery, FallbackQuery},
			wantStatus:  200,
			wantOK:      true,
		},
		{
			name:        "422 twice is returned without further retry",
			results:     []*upstream.Result{failure(422, `{}`), failure(422, `{"errors":["still bad"]}`)},
			wantQueries: []string{RichQuery, FallbackQuery},
			wantStatus:  422,
		},
		{
			name:        "fallback failure with other status is returned",
			results:     []*upstream.Result{failure(422, `{}`), failure(503, `{}`)},
			wantQueries: []string{RichQuery, FallbackQuery},
			wantStatus:  503,
		},
		{
			name:        "500 never falls back",
			results:     []*upstream.Result{failure(500, `{}`)},
			wantQueries: []string{RichQuery},
			wantStatus:  500,
		},
		{
			name:        "404 never falls back",
			results:     []*upstream.Result{failure(404, `{}`)},
			wantQueries: []string{RichQuery},
			wantStatus:  404,
		},
		{
			name:        "transport error on rich query is not retried",
			errs:        []error{transportErr},
			wantQueries: []string{RichQuery},
			wantErr:     upstream.ErrTransport,
		},
		{
			name:        "transport error on fallback is returned",
			results:     []*upstream.Result{failure(422, `{}`), nil},
			errs:        []error{nil, transportErr},
			wantQueries: []string{RichQuery, FallbackQuery},
			wantErr:     upstream.ErrTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := &fakeExecutor{results: tt.results, errs: tt.errs}
			o := NewOrchestrator(fe)

			res, err := o.FetchPlayer(context.Background(), "kylian-mbappe")

			require.Len(t, fe.calls, len(tt.wantQueries))
			for i, q := range tt.wantQueries {
				assert.Equal(t, q, fe.calls[i].query, "call %d query", i)
				assert.Equal(t, map[string]any{"slug": "kylian-mbappe"}, fe.calls[i].vars, "call %d vars", i)
			}
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err=%#v", err)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, tt.wantOK, res.OK())
			assert.Same(t, tt.results[len(tt.results)-1], res)
		})
	}
}

// Runs the orchestrator against a real executor and an upstream that echoes
// the slug variable back.
func TestOrchestrator_FetchPlayer_EchoesSlug(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req upstream.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"slug": req.Variables["slug"]}})
	}))
	defer srv.Close()

	o := NewOrchestrator(upstream.NewExecutor("k", upstream.WithEndpoint(srv.URL)))
	res, err := o.FetchPlayer(context.Background(), "erling-haaland")
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, 1, calls)

	var got struct {
		Data struct {
			Slug string `json:"slug"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Payload, &got))
	assert.Equal(t, "erling-haaland", got.Data.Slug)
}
