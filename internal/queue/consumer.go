package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourceplane/litejob/internal/model"
)

// DeliverySource starts a consumer on the build queue
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Handler processes one build request
type Handler func(ctx context.Context, req model.BuildRequest) error

// Consumer reads build requests and acknowledges them manually
type Consumer struct {
	source  DeliverySource
	tag     string
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(source DeliverySource, tag string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:  source,
		tag:     tag,
		handler: handler,
		logger:  logger,
	}
}

// Run consumes until ctx is done or the delivery channel closes
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.tag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var req model.BuildRequest
	if err := json.Unmarshal(delivery.Body, &req); err != nil {
		c.logger.Error("Failed to parse build request",
			slog.Any("error", err),
			slog.String("body", string(delivery.Body)),
		)
		c.nack(delivery, false)
		return
	}

	if _, err := uuid.Parse(req.ID); err != nil {
		c.logger.Error("Invalid build request id - not a UUID",
			slog.String("request_id", req.ID),
			slog.Any("error", err),
		)
		c.nack(delivery, false)
		return
	}

	logger := c.logger.With(
		slog.String("request_id", req.ID),
		slog.String("job", req.Job.ID),
	)
	logger.Info("Build request received")

	if err := c.handler(ctx, req); err != nil {
		// Interrupted by shutdown: hand it back to the queue
		if ctx.Err() != nil {
			logger.Warn("Build interrupted, requeueing", slog.Any("error", err))
			c.nack(delivery, true)
			return
		}
		logger.Error("Build request failed", slog.Any("error", err))
		c.nack(delivery, false)
		return
	}

	if err := delivery.Ack(false); err != nil {
		logger.Error("Failed to ACK build request", slog.Any("error", err))
		return
	}
	logger.Info("Build request completed")
}

func (c *Consumer) nack(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		c.logger.Error("Failed to NACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Any("error", err),
		)
	}
}
