package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// ErrNotFound is returned by Load for unknown content IDs.
var ErrNotFound = errors.New("content not found")

// GraphStore persists a built document graph and returns the content ID it
// was stored under. Storing the same graph twice yields the same ID.
type GraphStore interface {
	Store(ctx context.Context, kg *common.KnowledgeGraph) (string, error)
}

// GraphLoader reads back a graph previously returned by Store.
type GraphLoader interface {
	Load(ctx context.Context, contentID string) (*common.KnowledgeGraph, error)
}

// GraphCatalog lists the content IDs of the latest stored graph of every
// document, ordered by document ID.
type GraphCatalog interface {
	Latest(ctx context.Context) ([]string, error)
}

// Encode returns the canonical JSON payload of kg and its content ID. The
// ContentID field itself is not part of the payload.
func Encode(kg *common.KnowledgeGraph) ([]byte, string, error) {
	if kg == nil {
		return nil, "", errors.New("knowledge graph is nil")
	}
	c := *kg
	c.ContentID = ""
	payload, err := json.Marshal(&c)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode graph %s: %w", kg.GraphID, err)
	}
	return payload, ContentID(payload), nil
}

// Decode parses a payload produced by Encode and attaches contentID.
func Decode(payload []byte, contentID string) (*common.KnowledgeGraph, error) {
	var kg common.KnowledgeGraph
	if err := json.Unmarshal(payload, &kg); err != nil {
		return nil, fmt.Errorf("failed to decode graph %s: %w", contentID, err)
	}
	kg.ContentID = contentID
	return &kg, nil
}

// ContentID derives the content address of a payload.
func ContentID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "sha256-" + hex.EncodeToString(sum[:])
}
