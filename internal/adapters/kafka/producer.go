package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error

	PublishJSON(ctx context.Context, topic string, key []byte, value any, headers map[string]string) error

	Close() error
}

type ProducerConfig struct {
	Brokers                []string
	ClientID               string
	RequiredAcks           kafka.RequiredAcks
	BatchBytes             int
	BatchTimeout           time.Duration
	Compression            kafka.Compression
	Async                  bool
	WriteTimeout           time.Duration
	AllowAutoTopicCreation bool
}

type writerProducer struct {
	w *kafka.Writer
}

func NewProducer(cfg ProducerConfig) (Producer, error) {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           cfg.RequiredAcks,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Compression:            cfg.Compression,
		Async:                  cfg.Async,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: cfg.AllowAutoTopicCreation,
	}
	if cfg.ClientID != "" {
		w.Transport = &kafka.Transport{ClientID: cfg.ClientID}
	}
	return &writerProducer{w: w}, nil
}

func (p *writerProducer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	}
	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for k, v := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}

	return p.w.WriteMessages(ctx, msg)
}

func (p *writerProducer) PublishJSON(ctx context.Context, topic string, key []byte, value any, headers map[string]string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, key, data, headers)
}

func (p *writerProducer) Close() error { return p.w.Close() }

// Publisher emits fulfillment events keyed by user bag id, so every event of a
// bag lands on the same partition in order.
type Publisher struct {
	producer Producer
	topic    string
	source   string
}

func NewPublisher(p Producer, topic, source string) *Publisher {
	return &Publisher{producer: p, topic: topic, source: source}
}

func (p *Publisher) Publish(ctx context.Context, e orders.Event) error {
	env := NewEnvelope(e, p.source)
	err := p.producer.PublishJSON(ctx, p.topic, []byte(e.UserBagID), env, map[string]string{
		"event_type": e.Type,
		"event_id":   env.EventID,
	})
	if err != nil {
		return err
	}
	logging.LogDebug("event published", logrus.Fields{"topic": p.topic, "event_type": e.Type, "user_bag_id": e.UserBagID})
	return nil
}
