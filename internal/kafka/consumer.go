package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/dispatch"
)

// MessageHandler decides the fate of one message. *dispatch.Dispatcher
// implements it.
type MessageHandler interface {
	Handle(ctx context.Context, topic string, raw []byte) dispatch.Outcome
}

type ConsumerConfig struct {
	Brokers  []string
	ClientID string
	Group    string
	Topics   []string
	// InitialOffset is "oldest" or "newest" (default).
	InitialOffset string
}

// Consumer runs one consumer group. Offsets are committed by hand once the
// handler has finished with a message, so a crash before that point leads
// to redelivery rather than loss.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *groupHandler
	log     logrus.FieldLogger
	running bool
}

// NewSaramaConsumerConfig returns the settings for a manually committed
// consumer group.
func NewSaramaConsumerConfig(clientID, initialOffset string) (*sarama.Config, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.AutoCommit.Enable = false

	switch initialOffset {
	case "", "newest", "latest":
		config.Consumer.Offsets.Initial = sarama.OffsetNewest
	case "oldest", "earliest":
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		return nil, fmt.Errorf("unknown initial offset %q", initialOffset)
	}

	return config, nil
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, log logrus.FieldLogger) (*Consumer, error) {
	config, err := NewSaramaConsumerConfig(cfg.ClientID, cfg.InitialOffset)
	if err != nil {
		return nil, err
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.Group, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", cfg.Group, err)
	}

	return newConsumer(group, cfg.Group, cfg.Topics, handler, log), nil
}

func newConsumer(group sarama.ConsumerGroup, groupID string, topics []string, handler MessageHandler, log logrus.FieldLogger) *Consumer {
	log = log.WithField("group", groupID)
	return &Consumer{
		group:   group,
		topics:  topics,
		handler: &groupHandler{handler: handler, log: log},
		log:     log,
	}
}

// Start consumes until ctx is cancelled or the group is closed. Consume
// returns on every rebalance, so it is called in a loop.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running {
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	defer func() { c.running = false }()

	c.log.WithField("topics", c.topics).Info("Starting consumer group")

	go func() {
		for err := range c.group.Errors() {
			c.log.WithError(err).Error("Consumer group error")
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.topics, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.WithError(err).Error("Consume session ended with error")

			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}

		if ctx.Err() != nil {
			c.log.Info("Consumer group shutting down...")
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

// groupHandler feeds each claimed partition through the handler in order.
type groupHandler struct {
	handler MessageHandler
	log     logrus.FieldLogger
}

func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.log.WithField("claims", session.Claims()).Info("Partitions assigned")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			outcome := h.handler.Handle(session.Context(), msg.Topic, msg.Value)
			if outcome == dispatch.RetryLater {
				// Leave the offset uncommitted; the message comes back
				// after the next rebalance or restart.
				return nil
			}

			session.MarkMessage(msg, "")
			session.Commit()

		case <-session.Context().Done():
			return nil
		}
	}
}
