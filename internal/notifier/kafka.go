package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"SwingScanner/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alerts to a topic, keyed by symbol.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

// NewKafkaNotifier creates a synchronous producer for topic.
func NewKafkaNotifier(brokers []string, topic, clientID string) *KafkaNotifier {
	return &KafkaNotifier{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			Transport:    &kafka.Transport{ClientID: clientID},
		},
	}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

// alertPayloadCandidate is the flat wire form of a candidate shared by the
// webhook and Kafka channels.
type alertPayloadCandidate struct {
	Symbol          string          `json:"symbol"`
	SetupType       model.SetupType `json:"setup_type"`
	Timeframe       model.Timeframe `json:"timeframe"`
	SetupScore      float64         `json:"setup_score"`
	SetupQuality    string          `json:"setup_quality"`
	ConfidenceScore float64         `json:"confidence_score"`
	Reasoning       string          `json:"reasoning"`
	model.Plan
}

func candidatePayload(c model.TradeCandidate) alertPayloadCandidate {
	return alertPayloadCandidate{
		Symbol:          c.Setup.Symbol,
		SetupType:       c.Setup.Type,
		Timeframe:       c.Setup.Timeframe,
		SetupScore:      c.Setup.Score,
		SetupQuality:    c.Verdict.Quality,
		ConfidenceScore: c.Verdict.Confidence,
		Reasoning:       c.Verdict.Rationale,
		Plan:            c.Plan,
	}
}

type kafkaEvent struct {
	ScanID    string                `json:"scan_id"`
	Timestamp time.Time             `json:"timestamp"`
	Candidate alertPayloadCandidate `json:"candidate"`
}

// Deliver writes one message and waits for the broker ack.
func (k *KafkaNotifier) Deliver(ctx context.Context, a Alert) error {
	value, err := json.Marshal(kafkaEvent{ScanID: a.RunID, Timestamp: a.At, Candidate: candidatePayload(a.Candidate)})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.Candidate.Setup.Symbol),
		Value: value,
		Time:  a.At,
		Headers: []kafka.Header{
			{Key: "scan_id", Value: []byte(a.RunID)},
			{Key: "setup_type", Value: []byte(a.Candidate.Setup.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.writer.Close() }
