package player

import (
	"context"
	"net/http"

	"sorare-proxy/metrics"
	"sorare-proxy/upstream"

	"github.com/rs/zerolog/log"
)

// Executor runs a single GraphQL query against the upstream.
type Executor interface {
	Execute(ctx context.Context, query string, variables map[string]any) (*upstream.Result, error)
}

// Orchestrator looks players up, degrading to the basic query when the
// upstream rejects the price-history shape with a 422.
type Orchestrator struct {
	executor Executor
}

func NewOrchestrator(e Executor) *Orchestrator {
	return &Orchestrator{executor: e}
}

// FetchPlayer expects slug to be validated and trimmed already.
// The fallback runs at most once and its result is returned as is.
func (o *Orchestrator) FetchPlayer(ctx context.Context, slug string) (*upstream.Result, error) {
	vars := map[string]any{"slug": slug}

	res, err := o.executor.Execute(ctx, RichQuery, vars)
	if err != nil {
		return nil, err
	}
	if res.OK() || res.StatusCode != http.StatusUnprocessableEntity {
		return res, nil
	}

	metrics.FallbacksTotal.Inc()
	log.Info().Str("slug", slug).Msg("player: 422 from upstream, falling back to basic query")
	return o.executor.Execute(ctx, FallbackQuery, vars)
}
