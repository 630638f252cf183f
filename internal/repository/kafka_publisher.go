package repository

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	pkgkafka "MarketState/pkg/kafka"
	applogger "MarketState/pkg/logger"
)

// EventAnalysisCompleted is the event type header of published analyses.
const EventAnalysisCompleted = "analysis.completed"

type publisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaEventPublisher implements EventPublisher for Kafka.
type KafkaEventPublisher struct {
	producer publisher
	topic    string
}

// NewKafkaEventPublisher creates Kafka publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishAnalysis sends one event keyed by ticker so a ticker's events stay ordered.
func (p *KafkaEventPublisher) PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:     []byte(ev.Ticker),
		Value:   ev,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(EventAnalysisCompleted)}},
	}})
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// DigestPublisher ships log digests to Kafka, one message per entry.
type DigestPublisher struct {
	producer publisher
}

func NewDigestPublisher(producer *pkgkafka.Producer) *DigestPublisher {
	return &DigestPublisher{producer: producer}
}

func (p *DigestPublisher) PublishDigest(ctx context.Context, topic string, entries []applogger.DigestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(entries))
	for i, e := range entries {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Level), Value: e}
	}
	return p.producer.PublishBatch(ctx, topic, msgs)
}

// FanoutPublisher delivers each event to every sink and joins their errors.
type FanoutPublisher []domrepo.EventPublisher

func (f FanoutPublisher) PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishAnalysis(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FanoutPublisher) Close() error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domrepo.EventPublisher    = (*KafkaEventPublisher)(nil)
	_ domrepo.EventPublisher    = FanoutPublisher(nil)
	_ applogger.DigestPublisher = (*DigestPublisher)(nil)
)
