// Package queue implements the message-driven ingestion pipeline: a RabbitMQ
// consumer over the rider-info and image-stream queues, plus the chunk
// buffering and reassembly the image stream requires.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/logging"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RiderProvisioner creates or updates rider records from rider-info events.
type RiderProvisioner interface {
	Provision(ctx context.Context, event *models.RiderEvent) (*models.Rider, error)
}

// DocumentStore persists assembled documents and their access descriptors.
type DocumentStore interface {
	Store(ctx context.Context, doc *models.Document) error
}

// acker is the slice of *amqp.Channel used to settle deliveries.
type acker interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}

// Consumer subscribes to the two ingestion queues. Each queue gets its own
// channel with a prefetch of 1, so messages on one queue are processed
// strictly sequentially while the two queues progress concurrently. Handler
// failures are never fatal: the delivery is negatively acknowledged with
// requeue and the loop moves on.
type Consumer struct {
	conn             *amqp.Connection
	logger           logging.Logger
	riders           RiderProvisioner
	documents        DocumentStore
	riderInfoQueue   string
	imageStreamQueue string
	buffer           *ChunkBuffer
}

// NewConsumer constructs a Consumer over an open broker connection.
func NewConsumer(conn *amqp.Connection, l logging.Logger, riders RiderProvisioner,
	documents DocumentStore, riderInfoQueue, imageStreamQueue string) *Consumer {
	return &Consumer{
		conn:             conn,
		logger:           l.With("module", "consumer"),
		riders:           riders,
		documents:        documents,
		riderInfoQueue:   riderInfoQueue,
		imageStreamQueue: imageStreamQueue,
		buffer:           NewChunkBuffer(),
	}
}

// StartConsuming opens both subscriptions and returns; each runs on its own
// goroutine until ctx is cancelled or the broker closes the channel.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if err := c.consumeQueue(ctx, c.riderInfoQueue, c.handleRiderInfo); err != nil {
		return err
	}
	if err := c.consumeQueue(ctx, c.imageStreamQueue, c.handleImageStream); err != nil {
		return err
	}
	return nil
}

func (c *Consumer) consumeQueue(ctx context.Context, queueName string, handle func(ctx context.Context, body []byte) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open error: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare error: %w", err)
	}

	// one unacknowledged message at a time on this queue
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("qos error: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume error: %w", err)
	}

	go func() {
		defer ch.Close()
		c.consumeLoop(ctx, queueName, deliveries, ch, handle)
	}()

	c.logger.Info(ctx, "started consuming messages", "queue", queueName)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, queueName string, deliveries <-chan amqp.Delivery,
	ack acker, handle func(ctx context.Context, body []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.process(ctx, queueName, d, ack, handle)
		}
	}
}

// process runs the handler for one delivery and settles it: ack on success,
// nack with requeue on any error. A malformed payload is also requeued; it
// may be a consumer bug rather than a bad message, and availability wins over
// dropping it.
func (c *Consumer) process(ctx context.Context, queueName string, d amqp.Delivery,
	ack acker, handle func(ctx context.Context, body []byte) error) {
	if err := handle(ctx, d.Body); err != nil {
		_ = ack.Nack(d.DeliveryTag, false, true)
		c.logger.Error(ctx, "error processing message", "queue", queueName, "error", err)
		return
	}
	_ = ack.Ack(d.DeliveryTag, false)
}

func (c *Consumer) handleRiderInfo(ctx context.Context, body []byte) error {
	var event models.RiderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorMalformedMessage, err)
	}

	_, err := c.riders.Provision(ctx, &event)
	return err
}

func (c *Consumer) handleImageStream(ctx context.Context, body []byte) error {
	var chunk models.Chunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorMalformedMessage, err)
	}

	c.buffer.Append(chunk)

	if !c.buffer.IsComplete(chunk.OwnerID) {
		return nil
	}

	parts := c.buffer.DrainAndRemove(chunk.OwnerID)
	doc := Assemble(chunk.OwnerID, parts)

	if err := c.documents.Store(ctx, doc); err != nil {
		// This delivery is about to be requeued, so put back every chunk
		// except the one it carries; the redelivery re-appends it and the
		// retried assembly sees the identical chunk set.
		c.buffer.restore(chunk.OwnerID, parts[:len(parts)-1])
		return err
	}
	return nil
}
