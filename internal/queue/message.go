package queue

import (
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IngestMessage asks a worker to integrate one document.
type IngestMessage struct {
	CorrelationID string           `json:"correlation_id"`
	Document      *common.Document `json:"document"`
}

// NewIngestMessage wraps doc with a fresh correlation ID.
func NewIngestMessage(doc *common.Document) (*IngestMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate correlation id: %w", err)
	}
	return &IngestMessage{CorrelationID: id, Document: doc}, nil
}

// PublishDocument publishes doc to the ingest queue and returns the
// correlation ID of the message.
func PublishDocument(ch Channel, doc *common.Document) (string, error) {
	msg, err := NewIngestMessage(doc)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode ingest message: %w", err)
	}
	if err := PublishFIFO(ch, IngestQueue, body); err != nil {
		return "", fmt.Errorf("failed to publish document %s: %w", doc.ID, err)
	}
	return msg.CorrelationID, nil
}

// DecodeIngestMessage parses a message body. Malformed bodies and bodies
// without a document are type errors.
func DecodeIngestMessage(body []byte) (*IngestMessage, error) {
	msg := new(IngestMessage)
	if err := json.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("%w: malformed ingest message: %w", graph.ErrType, err)
	}
	if msg.Document == nil {
		return nil, fmt.Errorf("%w: ingest message %q has no document", graph.ErrType, msg.CorrelationID)
	}
	return msg, nil
}
