package interceptor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"cedarguard/internal/logger"
	"cedarguard/internal/session"
)

// DecisionEvent is the wire shape published to Kafka for every
// authorization decision, when a deployment wants a durable decision
// stream in addition to (or instead of) the audit sink.
type DecisionEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	PrincipalType string    `json:"principal_type"`
	PrincipalID   string    `json:"principal_id"`
	Action        string    `json:"action"`
	ResourceType  string    `json:"resource_type"`
	ResourceID    string    `json:"resource_id"`
	Decision      string    `json:"decision"`
	Reasons       []string  `json:"reasons,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
}

// KafkaProducer wraps a Sarama async producer for the decision stream
// topic.
type KafkaProducer struct {
	producer sarama.AsyncProducer
	topic    string
	log      *slog.Logger
}

// NewKafkaProducer connects to brokers and returns a producer that
// publishes decision events to topic.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("interceptor: creating kafka producer: %w", err)
	}

	p := &KafkaProducer{
		producer: producer,
		topic:    topic,
		log:      logger.WithComponent("interceptor.kafka"),
	}
	go p.drainAcks()
	return p, nil
}

// drainAcks consumes the producer's success/error channels so the
// underlying client doesn't block once Return.Successes/Errors are set.
func (p *KafkaProducer) drainAcks() {
	for {
		select {
		case _, ok := <-p.producer.Successes():
			if !ok {
				return
			}
		case perr, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			p.log.Error("failed to publish decision event", "error", perr.Err)
		}
	}
}

// Publish enqueues event for asynchronous delivery, keyed by principal
// id so a consumer can partition by actor.
func (p *KafkaProducer) Publish(event DecisionEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("interceptor: marshaling decision event: %w", err)
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PrincipalID),
		Value: sarama.ByteEncoder(msg),
		Headers: []sarama.RecordHeader{
			{Key: []byte("decision"), Value: []byte(event.Decision)},
			{Key: []byte("action"), Value: []byte(event.Action)},
		},
	}
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// Kafka is the decision-stream interceptor: it publishes a DecisionEvent
// for every check through a KafkaProducer. Like Audit, publishing is
// fire-and-forget from the caller's perspective; Sarama's own async
// producer buffers the actual network I/O.
type Kafka struct {
	producer *KafkaProducer
}

// NewKafka builds a Kafka interceptor backed by producer.
func NewKafka(producer *KafkaProducer) *Kafka {
	return &Kafka{producer: producer}
}

func (Kafka) Before(ctx context.Context, _ session.Single) context.Context { return ctx }

func (k *Kafka) After(ctx context.Context, check session.Single, result session.CheckResult, err error) {
	event := DecisionEvent{
		Timestamp:     result.Timestamp.UTC(),
		PrincipalType: result.Principal.Type,
		PrincipalID:   result.Principal.ID,
		Action:        check.Action.ID,
		ResourceType:  check.Resource.Type,
		ResourceID:    check.Resource.ID,
		Decision:      string(result.Decision),
		Reasons:       result.Reasons,
		Errors:        result.Errors,
	}
	if perr := k.producer.Publish(event); perr != nil {
		k.producer.log.Error("failed to enqueue decision event", "error", perr)
	}
}
