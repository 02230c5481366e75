package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

type rehydrationSource interface {
	store.GraphCatalog
	store.GraphLoader
}

// Rehydrate rebuilds the registry from the latest stored graph of every
// document and returns the number of documents merged. Cross-document
// relationships are rediscovered in document ID order. Stores that cannot
// list their graphs are skipped.
//
// Rehydrate should run once, before any document is integrated.
func (g *GraphClient) Rehydrate(ctx context.Context) (int, error) {
	src, ok := g.store.(rehydrationSource)
	if !ok {
		logger.Debug("[Graph] Store cannot list graphs, skipping rehydration")
		return 0, nil
	}
	start := time.Now()

	ids, err := util.RetryWithBackoff(ctx, g.maxRetries, storeRetryBackoff, src.Latest)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored graphs: %w", err)
	}

	merged := 0
	for _, contentID := range ids {
		kg, err := util.RetryWithBackoff(ctx, g.maxRetries, storeRetryBackoff, func(ctx context.Context) (*common.KnowledgeGraph, error) {
			kg, err := src.Load(ctx, contentID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, util.Permanent(err)
			}
			return kg, err
		})
		if err != nil {
			return merged, fmt.Errorf("failed to load graph %s: %w", contentID, err)
		}
		if _, err := g.registry.Merge(kg, nil); err != nil {
			return merged, fmt.Errorf("failed to merge stored graph %s: %w", contentID, err)
		}
		merged++
	}

	logger.Info("[Graph] Registry rehydrated",
		"documents", merged,
		"entities", g.registry.Stats().Entities,
		"duration", time.Since(start),
	)
	return merged, nil
}
