package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New("kafka producer is closed")

type ProducerConfig struct {
	Brokers  []string
	ClientID string
}

// Producer publishes envelopes without waiting for broker acknowledgement.
// Delivery failures surface asynchronously and are logged with the full
// message so that it can be replayed.
type Producer struct {
	producer sarama.AsyncProducer
	log      logrus.FieldLogger
	metrics  metrics.Recorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Int64
}

// NewSaramaProducerConfig returns the producer settings shared by all
// services: acks from all replicas, idempotence, and hash partitioning on
// the message key so one aggregate always lands on one partition.
func NewSaramaProducerConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Retry.Backoff = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	config.Producer.Compression = sarama.CompressionSnappy

	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	if clientID != "" {
		config.ClientID = clientID
	} else {
		config.ClientID = "talentcloud-producer"
	}

	return config
}

func NewProducer(cfg *ProducerConfig, log logrus.FieldLogger, rec metrics.Recorder) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, NewSaramaProducerConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newProducer(producer, log, rec), nil
}

func newProducer(producer sarama.AsyncProducer, log logrus.FieldLogger, rec metrics.Recorder) *Producer {
	if rec == nil {
		rec = metrics.Noop{}
	}
	p := &Producer{
		producer: producer,
		log:      log,
		metrics:  rec,
	}

	p.wg.Add(2)
	go p.drainSuccesses()
	go p.drainErrors()

	return p
}

// Publish enqueues env on topic with the given partition key and returns
// as soon as the producer has accepted it.
func (p *Producer) Publish(ctx context.Context, topic, key string, env *events.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", env.EventID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(env.EventType)},
			{Key: []byte("event_id"), Value: []byte(env.EventID)},
			{Key: []byte("aggregate_id"), Value: []byte(key)},
			{Key: []byte("created_at"), Value: []byte(env.Timestamp.Format(time.RFC3339))},
		},
		Timestamp: env.Timestamp,
		Metadata:  env,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to enqueue event %s: %w", env.EventID, ctx.Err())
	}
}

func (p *Producer) drainSuccesses() {
	defer p.wg.Done()
	for msg := range p.producer.Successes() {
		fields := logrus.Fields{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}
		if env, ok := msg.Metadata.(*events.Envelope); ok {
			fields["event_id"] = env.EventID
			fields["event_type"] = env.EventType
		}
		p.log.WithFields(fields).Debug("Published event")
		p.metrics.EventPublished(context.Background(), msg.Topic)
	}
}

func (p *Producer) drainErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		fields := logrus.Fields{}
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
			fields["topic"] = perr.Msg.Topic
			if perr.Msg.Key != nil {
				if key, err := perr.Msg.Key.Encode(); err == nil {
					fields["key"] = string(key)
				}
			}
			if perr.Msg.Value != nil {
				if value, err := perr.Msg.Value.Encode(); err == nil {
					fields["payload"] = string(value)
				}
			}
			if env, ok := perr.Msg.Metadata.(*events.Envelope); ok {
				fields["event_id"] = env.EventID
				fields["event_type"] = env.EventType
			}
		}
		p.failed.Add(1)
		p.log.WithError(perr.Err).WithFields(fields).Error("Broker rejected event")
		p.metrics.PublishFailed(context.Background(), topic)
	}
}

// Close flushes buffered messages and waits until every delivery report
// has been logged. Publish fails with ErrProducerClosed afterwards.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}

// Failed reports how many messages the brokers rejected. It is final once
// Close has returned.
func (p *Producer) Failed() int64 {
	return p.failed.Load()
}

// HealthCheck verifies the brokers are reachable.
func HealthCheck(brokers []string) error {
	config := sarama.NewConfig()
	config.Net.DialTimeout = 5 * time.Second

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka brokers: %w", err)
	}
	defer client.Close()

	if len(client.Brokers()) == 0 {
		return fmt.Errorf("no Kafka brokers available")
	}
	return nil
}
