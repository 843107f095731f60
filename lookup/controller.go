package lookup

import (
	"context"
	"time"

	"sorare-proxy/metrics"
	"sorare-proxy/queues"
	"sorare-proxy/upstream"

	"github.com/rs/zerolog/log"
)

const (
	envelopeVersion = "1.0"
	resultType      = "player-lookup-result"
)

// Fetcher looks up a player by slug.
type Fetcher interface {
	FetchPlayer(ctx context.Context, slug string) (*upstream.Result, error)
}

// Controller serves queued lookup requests and publishes one result per request.
type Controller struct {
	fetcher   Fetcher
	publisher queues.Publisher
}

func NewController(f Fetcher, p queues.Publisher) *Controller {
	return &Controller{fetcher: f, publisher: p}
}

// Handle runs the lookup and publishes its outcome. Lookup failures are
// published, not returned; only a publish failure is returned so the message
// is redelivered.
func (c *Controller) Handle(ctx context.Context, req *queues.LookupRequest) error {
	start := time.Now()
	log.Info().Str("requestId", req.RequestID).Str("slug", req.Slug).Msg("controller: handling lookup request")

	res, err := c.fetcher.FetchPlayer(ctx, req.Slug)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		log.Error().Err(err).Str("requestId", req.RequestID).Str("slug", req.Slug).Msg("controller: lookup failed")
		return c.publishFailure(ctx, req, res, err.Error())
	}

	metrics.LookupsTotal.WithLabelValues("queue", "success").Inc()
	out := &queues.LookupResult{
		EnvelopeVersion: envelopeVersion,
		Type:            resultType,
		RequestID:       req.RequestID,
		Slug:            req.Slug,
		Status:          queues.StatusSuccess,
		StatusCode:      res.StatusCode,
		Payload:         res.Payload,
	}
	if err := c.publisher.PublishResult(ctx, out); err != nil {
		log.Error().Err(err).Str("requestId", req.RequestID).Msg("controller: failed to publish result")
		return err
	}
	log.Info().Str("requestId", req.RequestID).Dur("duration", time.Since(start)).Msg("controller: lookup successful")
	return nil
}

// publishFailure publishes a failure result. res may be nil for transport errors.
func (c *Controller) publishFailure(ctx context.Context, req *queues.LookupRequest, res *upstream.Result, message string) error {
	metrics.LookupsTotal.WithLabelValues("queue", "failure").Inc()
	out := &queues.LookupResult{
		EnvelopeVersion: envelopeVersion,
		Type:            resultType,
		RequestID:       req.RequestID,
		Slug:            req.Slug,
		Status:          queues.StatusFailure,
		ErrorMessage:    &message,
	}
	if res != nil {
		out.StatusCode = res.StatusCode
		out.Payload = res.Payload
	}
	if err := c.publisher.PublishResult(ctx, out); err != nil {
		log.Error().Err(err).Str("requestId", req.RequestID).Msg("controller: failed to publish failure result")
		return err
	}
	return nil
}
