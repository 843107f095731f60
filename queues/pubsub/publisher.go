package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"sorare-proxy/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
)

type Publisher struct {
	projectID   string
	resultTopic string
	credsFile   string

	mu     sync.Mutex
	client *gpubsub.Client
	topic  *gpubsub.Topic
}

func NewPublisher(projectID, resultTopic, credsFile string) *Publisher {
	return &Publisher{projectID: projectID, resultTopic: resultTopic, credsFile: credsFile}
}

// PublishResult lazily connects on first use, then publishes and waits for the server ack.
func (p *Publisher) PublishResult(ctx context.Context, res *queues.LookupResult) error {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Str("requestId", res.RequestID).Msg("failed to marshal lookup result")
		return err
	}
	r := topic.Publish(ctx, &gpubsub.Message{
		Data:       b,
		Attributes: map[string]string{"slug": res.Slug, "status": string(res.Status)},
	})
	id, err := r.Get(ctx)
	if err != nil {
		log.Error().Err(err).Str("requestId", res.RequestID).Msg("failed to publish lookup result")
		return err
	}
	log.Debug().Str("messageID", id).Str("requestId", res.RequestID).Str("status", string(res.Status)).Msg("published lookup result")
	return nil
}

// Stop flushes pending messages and closes the client.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Publisher) ensureTopic(ctx context.Context) (*gpubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	client, err := newClient(ctx, p.projectID, p.credsFile)
	if err != nil {
		log.Error().Err(err).Str("projectID", p.projectID).Str("topic", p.resultTopic).Msg("failed to create pubsub client for publisher")
		return nil, err
	}
	p.client = client
	p.topic = client.Topic(p.resultTopic)
	log.Info().Str("topic", p.resultTopic).Msg("pubsub publisher initialized")
	return p.topic, nil
}
