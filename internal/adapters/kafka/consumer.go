package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/logging"
)

// Message wraps a kafka-go message with its decoded envelope.
type Message struct {
	Topic   string
	Key     []byte
	Headers map[string]string
	Raw     kgo.Message
	// Envelope keeps the payload raw; handlers decode it by event type.
	Envelope Envelope[json.RawMessage]
}

type Handler func(ctx context.Context, msg Message) error

type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler Handler) error
	Close() error
}

type ConsumerConfig struct {
	Brokers           []string
	ClientID          string
	MinBytes          int           // 1<<10
	MaxBytes          int           // 10<<20
	MaxWait           time.Duration // 100 * time.Millisecond
	SessionTimeout    time.Duration // 10 * time.Second
	RebalanceTimeout  time.Duration // 10 * time.Second
	HeartbeatInterval time.Duration // 3 * time.Second
	StartOffset       int64         // kgo.FirstOffset / kgo.LastOffset
	MaxRetries        int           // 5
	Backoff           time.Duration // 200 * time.Millisecond
}

type readerConsumer struct {
	cfg    ConsumerConfig
	reader *kgo.Reader
}

func NewConsumer(cfg ConsumerConfig) Consumer {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &readerConsumer{cfg: cfg}
}

// Subscribe blocks until ctx is done. Delivery is at-least-once: a message is
// committed after its handler succeeds or exhausts its retries.
func (c *readerConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler Handler) error {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:           c.cfg.Brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          c.cfg.MinBytes,
		MaxBytes:          c.cfg.MaxBytes,
		MaxWait:           c.cfg.MaxWait,
		StartOffset:       c.cfg.StartOffset,
		SessionTimeout:    c.cfg.SessionTimeout,
		RebalanceTimeout:  c.cfg.RebalanceTimeout,
		HeartbeatInterval: c.cfg.HeartbeatInterval,
	})
	c.reader = r
	defer r.Close()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			logging.LogWarn("kafka fetch failed", logrus.Fields{"topic": topic, "error": err.Error()})
			if !sleep(ctx, 200*time.Millisecond) {
				return nil
			}
			continue
		}

		msg := toMessage(topic, m)
		if err := process(ctx, msg, handler, c.cfg.MaxRetries, c.cfg.Backoff); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.LogError("kafka handler gave up", err, logrus.Fields{
				"topic":      topic,
				"offset":     m.Offset,
				"event_type": msg.Envelope.EventType,
			})
		}

		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logging.LogWarn("kafka commit failed", logrus.Fields{"topic": topic, "offset": m.Offset, "error": err.Error()})
		}
	}
}

func (c *readerConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

// process runs handler up to maxRetries+1 times with linear backoff.
func process(ctx context.Context, msg Message, handler Handler, maxRetries int, backoff time.Duration) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt < maxRetries && !sleep(ctx, backoff*time.Duration(attempt+1)) {
			return ctx.Err()
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func toMessage(topic string, m kgo.Message) Message {
	hdrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		hdrs[h.Key] = string(h.Value)
	}
	var env Envelope[json.RawMessage]
	// Undecodable values keep a zero envelope; handlers skip unknown types.
	_ = json.Unmarshal(m.Value, &env)
	if env.EventType == "" {
		env.EventType = hdrs["event_type"]
	}
	return Message{
		Topic:    topic,
		Key:      m.Key,
		Headers:  hdrs,
		Raw:      m,
		Envelope: env,
	}
}
