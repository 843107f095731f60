package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"sorare-proxy/queues"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial error: %#v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("client error: %#v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublisher_PublishResult(t *testing.T) {
	if testing.Short() {
		t.Skip("short")
	}
	ctx := context.Background()
	client, srv := newTestClient(t)

	tests := []struct {
		name    string
		setup   func() *Publisher
		res     *queues.LookupResult
		wantErr bool
	}{
		{
			name: "success",
			setup: func() *Publisher {
				topic, err := client.CreateTopic(ctx, "results")
				if err != nil {
					t.Fatalf("create topic: %#v", err)
				}
				return &Publisher{projectID: "test-project", resultTopic: "results", client: client, topic: topic}
			},
			res:     &queues.LookupResult{EnvelopeVersion: "1.0", Type: "player-lookup-result", RequestID: "r1", Slug: "a", Status: queues.StatusSuccess, StatusCode: 200, Payload: json.RawMessage(`{"data":{}}`)},
			wantErr: false,
		},
		{
			name: "missing topic error",
			setup: func() *Publisher {
				return &Publisher{projectID: "test-project", resultTopic: "missing", client: client, topic: client.Topic("missing")}
			},
			res:     &queues.LookupResult{EnvelopeVersion: "1.0", Type: "player-lookup-result", RequestID: "r2", Slug: "b", Status: queues.StatusFailure},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.setup()
			err := p.PublishResult(ctx, tt.res)
			gotErr := (err != nil)
			if gotErr != tt.wantErr {
				t.Errorf("PublishResult() error mismatch\ngotErr: %#v\nwantErr: %#v\nerr: %#v", gotErr, tt.wantErr, err)
			}
		})
	}

	msgs := srv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("published message count got=%#v want=1", len(msgs))
	}
	var got queues.LookupResult
	if err := json.Unmarshal(msgs[0].Data, &got); err != nil {
		t.Fatalf("unmarshal published: %#v", err)
	}
	if got.RequestID != "r1" || got.Status != queues.StatusSuccess || string(got.Payload) != `{"data":{}}` {
		t.Errorf("published result mismatch: %#v", got)
	}
	if msgs[0].Attributes["slug"] != "a" {
		t.Errorf("slug attribute got=%#v want=%#v", msgs[0].Attributes["slug"], "a")
	}
}
