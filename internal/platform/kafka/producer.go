// Package kafka wraps the franz-go client for the audit event sink.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the brokers and ensures the topic exists. Topic
// creation uses broker defaults for partitions and replication.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, -1, -1, nil, topic); err != nil &&
		!errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}

	return &Producer{client: client, topic: topic}, nil
}

// Publish synchronously produces one record. Audit delivery is best-effort
// from the caller's point of view; the caller decides whether to log or drop
// on error.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
