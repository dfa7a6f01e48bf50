//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"donations/internal/platform/kafka"
	"donations/pkg/platform/audit/outbox"
	"donations/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	redpanda  *containers.RedpandaContainer
	publisher *kafka.Publisher
	topic     string
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redpanda = mgr.GetRedpanda(s.T())
	s.topic = "donations.audit." + uuid.NewString()[:8]

	pub, err := kafka.NewPublisher(s.redpanda.Brokers, s.topic)
	s.Require().NoError(err)
	s.publisher = pub

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(s.publisher.EnsureTopic(ctx, 1, 1))
	// second call is a no-op
	s.Require().NoError(s.publisher.EnsureTopic(ctx, 1, 1))
}

func (s *PublisherSuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *PublisherSuite) TestPublishKeepsEntityKeyAndHeaders() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]any{"entity_kind": "Donor", "entity_id": 1})
	s.Require().NoError(err)
	msg := outbox.Message{
		ID:        uuid.New(),
		Key:       "Donor:1",
		EventType: "INSERT",
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.publisher.Publish(ctx, msg))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)

	rec := records[0]
	s.Equal("Donor:1", string(rec.Key))
	s.JSONEq(string(payload), string(rec.Value))

	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("INSERT", headers["event_type"])
	s.Equal(msg.ID.String(), headers["message_id"])
}

func (s *PublisherSuite) TestHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.NoError(s.publisher.Health(ctx))
}
