package ews

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

const (
	// DefaultTopic is the early-warning alert stream.
	DefaultTopic = "ews.alerts"

	// DefaultGroupID is the consumer group shared by processor replicas.
	DefaultGroupID = "ews-processor"

	fetchErrorBackoff = time.Second
)

// AlertProcessor handles one decoded alert. Implemented by
// service.EWSService.
type AlertProcessor interface {
	ProcessAlert(ctx context.Context, alert *domain.EWSAlert) (*domain.EWSEvent, error)
}

// ConsumerConfig holds configuration for the alert consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer is a background worker that consumes early-warning alerts
// from Kafka and feeds them to the processor. Messages are committed
// only after successful processing, so transient failures redeliver.
type Consumer struct {
	reader    *kafka.Reader
	processor AlertProcessor
	logger    zerolog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewConsumer creates a new alert consumer
func NewConsumer(config ConsumerConfig, processor AlertProcessor, logger zerolog.Logger) *Consumer {
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.GroupID == "" {
		config.GroupID = DefaultGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  config.Brokers,
		Topic:    config.Topic,
		GroupID:  config.GroupID,
		MinBytes: 1,
		MaxBytes: 10 * 1024 * 1024, // 10 MB
	})

	return &Consumer{
		reader:    reader,
		processor: processor,
		logger:    logger.With().Str("component", "ews_consumer").Logger(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins consuming alerts in the background
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info().
		Str("topic", c.reader.Config().Topic).
		Str("group", c.reader.Config().GroupID).
		Msg("Starting alert consumer")

	go c.run(ctx)
}

// Stop gracefully stops the consumer and closes the reader
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Info().Msg("Stopping alert consumer")
	close(c.stopCh)
	<-c.doneCh
	if err := c.reader.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to close kafka reader")
	}
	c.logger.Info().Msg("Alert consumer stopped")
}

// IsRunning returns whether the consumer is currently running
func (c *Consumer) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// run is the main fetch loop
func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(runCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.mu.Lock()
				c.running = false
				c.mu.Unlock()
				return
			}
			c.logger.Error().Err(err).Msg("Failed to fetch message")
			select {
			case <-runCtx.Done():
				c.mu.Lock()
				c.running = false
				c.mu.Unlock()
				return
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}

		c.handleMessage(runCtx, msg)
	}
}

// handleMessage decodes and processes one message. Malformed or invalid
// messages are committed so they cannot poison the partition; transient
// processing failures leave the offset untouched for redelivery.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var alert domain.EWSAlert
	if err := json.Unmarshal(msg.Value, &alert); err != nil {
		c.logger.Error().
			Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Malformed alert message, skipping")
		c.commit(ctx, msg)
		return
	}

	if _, err := c.processor.ProcessAlert(ctx, &alert); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.logger.Error().
				Err(err).
				Str("event_id", alert.EventID).
				Msg("Invalid alert, skipping")
			c.commit(ctx, msg)
			return
		}
		c.logger.Error().
			Err(err).
			Str("event_id", alert.EventID).
			Int64("offset", msg.Offset).
			Msg("Failed to process alert, leaving for redelivery")
		return
	}

	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error().
			Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Failed to commit offset")
	}
}
