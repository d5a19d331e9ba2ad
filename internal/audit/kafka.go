package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaEmitter implements Emitter using segmentio/kafka-go.
type KafkaEmitter struct {
	writer *kafka.Writer
}

// NewKafkaEmitter creates a producer that writes audit events to the given
// topic. Returns nil when brokers or topic are unset; callers fall back to
// LogEmitter. Call Close when shutting down.
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Emit serializes the event as JSON and writes it with a short timeout so a
// slow broker does not block the pipeline. Errors are logged, not returned.
func (k *KafkaEmitter) Emit(ctx context.Context, e Event) {
	if k == nil || k.writer == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("audit: marshal event %s: %v", e.Action, err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.RegdNo),
		Value: raw,
	}); err != nil {
		log.Printf("audit: emit %s: %v", e.Action, err)
	}
}

// Close flushes and closes the underlying writer.
func (k *KafkaEmitter) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
