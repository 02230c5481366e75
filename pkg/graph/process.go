package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const storeRetryBackoff = 100 * time.Millisecond

// IntegrateDocument runs the full pipeline for one document: extraction,
// confidence filtering, relationship extraction, graph building, storage and
// the global merge. The merge is the last step, so a failure or cancellation
// at any earlier stage leaves the global graph untouched.
//
// The returned graph carries the content ID reported by the store.
// Integrating a document ID again replaces its document graph.
func (g *GraphClient) IntegrateDocument(ctx context.Context, doc *common.Document) (*common.KnowledgeGraph, error) {
	if doc == nil {
		return nil, typeErrorf("document is nil")
	}
	if strings.TrimSpace(doc.ID) == "" {
		return nil, validationErrorf("document id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	extracted, err := g.extractor.ExtractEntitiesFromChunks(ctx, doc.Chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to extract entities from %s: %w", doc.ID, err)
	}
	entities := make([]common.Entity, 0, len(extracted))
	for _, e := range extracted {
		if e.Confidence >= g.entityConfidence {
			entities = append(entities, e)
		}
	}
	if dropped := len(extracted) - len(entities); dropped > 0 {
		logger.Debug("[Graph] Dropped low-confidence entities", "document_id", doc.ID, "dropped", dropped)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	relationships, err := g.extractRelationships(entities, doc.Chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to extract relationships from %s: %w", doc.ID, err)
	}

	chunkIDs := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		chunkIDs[i] = c.ID
	}
	kg, dg, err := BuildDocumentGraph(doc.ID, entities, relationships, chunkIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph for %s: %w", doc.ID, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contentID, err := util.RetryWithBackoff(ctx, g.maxRetries, storeRetryBackoff, func(ctx context.Context) (string, error) {
		return g.store.Store(ctx, kg)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: failed to store graph %s: %w", ErrStructural, kg.GraphID, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := cloneGraph(kg)
	stored.ContentID = contentID

	cross, err := g.registry.Merge(stored, dg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge graph %s: %w", kg.GraphID, err)
	}

	logger.Info("[Graph] Document integrated",
		"document_id", doc.ID,
		"graph_id", stored.GraphID,
		"content_id", contentID,
		"entities", stored.Metadata.EntityCount,
		"relationships", stored.Metadata.RelationshipCount,
		"cross_document", len(cross),
		"duration", time.Since(start),
	)
	return stored, nil
}

func (g *GraphClient) extractRelationships(entities []common.Entity, chunks []*common.Chunk) ([]common.Relationship, error) {
	relationships := make([]common.Relationship, 0)
	for _, chunk := range chunks {
		rels, err := g.rules.ExtractChunkRelationships(entities, chunk)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, rels...)
	}
	cross, err := g.rules.ExtractCrossChunkRelationships(entities, chunks)
	if err != nil {
		return nil, err
	}
	return append(relationships, cross...), nil
}

// IntegrateDocuments integrates documents concurrently, bounded by
// ParallelDocuments. The first failure cancels the remaining documents;
// documents merged before it stay merged. Results are in input order.
func (g *GraphClient) IntegrateDocuments(ctx context.Context, docs []*common.Document) ([]*common.KnowledgeGraph, error) {
	logger.Info("[Graph] Processing", "total_documents", len(docs), "parallel", g.parallelDocuments)

	results := make([]*common.KnowledgeGraph, len(docs))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelDocuments)
	for i, doc := range docs {
		eg.Go(func() error {
			kg, err := g.IntegrateDocument(gCtx, doc)
			if err != nil {
				return err
			}
			results[i] = kg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to process documents:\n%w", err)
	}

	logger.Info("[Graph] Documents processed", "total_documents", len(docs))
	return results, nil
}
