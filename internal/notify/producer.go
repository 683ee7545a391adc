package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes confirmed notifications to Kafka, keyed by target user
// so per-user ordering is preserved across partitions.
type Producer struct {
	client *kgo.Client
	topic  string
}

var _ Sink = (*Producer)(nil)

func NewProducer(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// EnsureTopic creates the fan-out topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32) error {
	admin := kadm.NewClient(p.client)
	responses, err := admin.CreateTopics(ctx, partitions, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", p.topic, response.Err)
		}
	}
	return nil
}

func (p *Producer) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(n.TargetUserID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
