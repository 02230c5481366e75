// Package memory provides an in-process GraphStore.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

// Store keeps encoded graphs in memory keyed by content ID, and remembers the
// latest content ID of every document.
type Store struct {
	mu       sync.RWMutex
	payloads map[string][]byte
	latest   map[string]string
}

func New() *Store {
	return &Store{
		payloads: make(map[string][]byte),
		latest:   make(map[string]string),
	}
}

func (s *Store) Store(ctx context.Context, kg *common.KnowledgeGraph) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, contentID, err := store.Encode(kg)
	if err != nil {
		return "", util.Permanent(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[contentID] = payload
	s.latest[kg.DocumentID] = contentID
	return contentID, nil
}

func (s *Store) Load(ctx context.Context, contentID string) (*common.KnowledgeGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	payload, ok := s.payloads[contentID]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Decode(payload, contentID)
}

func (s *Store) Latest(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]string, 0, len(s.latest))
	for doc := range s.latest {
		docs = append(docs, doc)
	}
	slices.Sort(docs)
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = s.latest[doc]
	}
	return ids, nil
}

// Len returns the number of stored payloads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}
