package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"reviewradar/internal/domain"
)

// KafkaNotifier publishes review-changed events so downstream
// consumers (dashboards, alerting) can react without polling the
// database. Delivery is best effort; the sync run never fails on it.
type KafkaNotifier struct {
	w *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 5 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (n *KafkaNotifier) ReviewChanged(ctx context.Context, ev domain.ReviewChangedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ReviewID),
		Value: payload,
	})
}

func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
