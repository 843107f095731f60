package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sorare-proxy/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
)

type Subscriber struct {
	projectID        string
	subscriptionName string
	credsFile        string
	client           *gpubsub.Client
	sub              *gpubsub.Subscription
}

func NewSubscriber(projectID, subscriptionName, credsFile string) *Subscriber {
	return &Subscriber{projectID: projectID, subscriptionName: subscriptionName, credsFile: credsFile}
}

// Start blocks receiving lookup requests until ctx is done.
// Undecodable messages are nacked, requests without an id or slug are acked and dropped,
// and a handler error nacks for redelivery.
func (s *Subscriber) Start(ctx context.Context, handler func(context.Context, *queues.LookupRequest) error) error {
	if s.sub == nil {
		client, err := newClient(ctx, s.projectID, s.credsFile)
		if err != nil {
			log.Error().Err(err).Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Msg("failed to create pubsub client for subscriber")
			return err
		}
		s.client = client
		s.sub = client.Subscription(s.subscriptionName)
		log.Info().Str("subscription", s.subscriptionName).Msg("pubsub subscriber initialized")
	}

	return s.sub.Receive(ctx, func(ctx context.Context, m *gpubsub.Message) {
		log.Debug().Str("messageID", m.ID).Int("size", len(m.Data)).Msg("received pubsub message")
		recvAt := time.Now()
		var req queues.LookupRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal lookup request")
			m.Nack()
			return
		}
		req.RequestID = strings.TrimSpace(req.RequestID)
		req.Slug = strings.TrimSpace(req.Slug)
		if req.RequestID == "" || req.Slug == "" {
			log.Error().Str("requestId", req.RequestID).Str("slug", req.Slug).Msg("invalid lookup request payload")
			m.Ack()
			return
		}

		if err := handler(ctx, &req); err != nil {
			log.Error().Err(err).Str("requestId", req.RequestID).Msg("handler failed; will retry")
			m.Nack()
			return
		}
		log.Debug().Str("requestId", req.RequestID).Dur("latency", time.Since(recvAt)).Msg("handler succeeded; acking message")
		m.Ack()
	})
}
