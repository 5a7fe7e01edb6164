package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

const (
	publishAttempts = 5
	baseDelay       = 100 * time.Millisecond
	maxDelay        = 10 * time.Second
)

// KafkaAlerter publishes alert events as JSON to a single topic, with
// bounded exponential-backoff retries.
type KafkaAlerter struct {
	writer *kafka.Writer
}

func NewKafkaAlerter(brokers []string, topic string) *KafkaAlerter {
	return &KafkaAlerter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (a *KafkaAlerter) Alert(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.Kind),
		Value: data,
	}

	var lastErr error
	delay := baseDelay
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if lastErr = a.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
		if attempt == publishAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return fmt.Errorf("failed to publish alert after %d attempts: %w", publishAttempts, lastErr)
}

func (a *KafkaAlerter) Close() error {
	return a.writer.Close()
}
