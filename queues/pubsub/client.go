package pubsub

import (
	"context"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// newClient creates a Pub/Sub client with explicit credentials when a file is given,
// otherwise with ambient credentials.
func newClient(ctx context.Context, projectID, credsFile string) (*gpubsub.Client, error) {
	if credsFile != "" {
		log.Debug().Str("projectID", projectID).Str("credsFile", credsFile).Msg("initializing pubsub client with explicit credentials")
		return gpubsub.NewClient(ctx, projectID, option.WithCredentialsFile(credsFile))
	}
	log.Debug().Str("projectID", projectID).Msg("initializing pubsub client with default credentials")
	return gpubsub.NewClient(ctx, projectID)
}
