package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxDeliveryRetries is the number of times a failing message is sent to the
// retry queue before it is dead-lettered.
const MaxDeliveryRetries = 10

const retriesHeader = "x-retries"

// Integrator integrates a single document into the knowledge graph.
type Integrator interface {
	IntegrateDocument(ctx context.Context, doc *common.Document) (*common.KnowledgeGraph, error)
}

// ProcessIngestMessage decodes an ingest message and integrates its document.
func ProcessIngestMessage(ctx context.Context, client Integrator, body []byte) error {
	msg, err := DecodeIngestMessage(body)
	if err != nil {
		return err
	}
	kg, err := client.IntegrateDocument(ctx, msg.Document)
	if err != nil {
		return fmt.Errorf("failed to integrate document %s: %w", msg.Document.ID, err)
	}
	logger.Info("[Queue] Document integrated",
		"correlation_id", msg.CorrelationID,
		"document_id", kg.DocumentID,
		"content_id", kg.ContentID,
	)
	return nil
}

// isPermanent reports whether retrying err cannot succeed.
func isPermanent(err error) bool {
	return errors.Is(err, graph.ErrValidation) || errors.Is(err, graph.ErrType)
}

func deliveryRetries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleDelivery processes one delivery and settles it. Failed messages go to
// the retry queue, or to the dead-letter queue when the error is permanent
// or the retries are used up.
func HandleDelivery(ctx context.Context, ch Channel, client Integrator, msg amqp091.Delivery, queueName string) {
	start := time.Now()
	err := ProcessIngestMessage(ctx, client, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			logger.Error("[Queue] Failed to ack message", "queue", queueName, "err", ackErr)
		}
		logger.Debug("[Queue] Message processed", "queue", queueName, "duration", time.Since(start))
		return
	}

	logger.Error("[Queue] Error processing message", "queue", queueName, "err", err)
	handleProcessingError(ch, msg, queueName, err)
}

func handleProcessingError(ch Channel, msg amqp091.Delivery, queueName string, err error) {
	retries := deliveryRetries(msg.Headers)

	if retries >= MaxDeliveryRetries || isPermanent(err) {
		dlqName := deadLetterQueue(queueName)
		logger.Warn("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp091.Publishing{
				ContentType: msg.ContentType,
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := retryQueue(queueName)
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// Consume delivers messages of the ingest queue one at a time until ctx is
// done or the delivery channel closes.
func Consume(ctx context.Context, conn *amqp091.Connection, client Integrator) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := SetupQueues(ch, []string{IngestQueue}); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		IngestQueue,
		IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", IngestQueue, err)
	}

	logger.Info("[Queue] Listening for messages", "queue", IngestQueue)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", IngestQueue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Message channel closed", "queue", IngestQueue)
				return nil
			}
			HandleDelivery(ctx, ch, client, msg, IngestQueue)
		}
	}
}
