package graph

import (
	"sort"
	"sync"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// UnknownDocument is the attribution of an entity whose chunks are not
// indexed.
const UnknownDocument = "unknown"

// DefaultSimilarityThreshold is the minimum similarity for a cross-document
// relationship.
const DefaultSimilarityThreshold = 0.8

type documentRecord struct {
	graph   *common.KnowledgeGraph
	digraph *Digraph
}

// Registry owns the global graph and all document graphs merged into it.
//
// All mutation goes through Merge (or MergeIntoGlobal and
// DiscoverCrossDocumentRelationships), which hold the write lock. Reads hold
// the read lock and only ever return copies. Global entities and edges are
// never removed.
type Registry struct {
	mu sync.RWMutex

	similarityThreshold float64

	global          *Digraph
	entityDocuments map[string][]string
	crossDocument   []common.Relationship
	crossIDs        map[string]struct{}
	documents       map[string]*documentRecord
	chunkIndex      map[string]string
	graphIndex      map[string]string
	tokenIndex      map[string]map[string]struct{}
}

// NewRegistry returns an empty registry. A non-positive threshold selects
// DefaultSimilarityThreshold.
func NewRegistry(similarityThreshold float64) *Registry {
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return &Registry{
		similarityThreshold: similarityThreshold,
		global:              NewDigraph(),
		entityDocuments:     make(map[string][]string),
		crossIDs:            make(map[string]struct{}),
		documents:           make(map[string]*documentRecord),
		chunkIndex:          make(map[string]string),
		graphIndex:          make(map[string]string),
		tokenIndex:          make(map[string]map[string]struct{}),
	}
}

// SimilarityThreshold returns the threshold used for cross-document discovery.
func (r *Registry) SimilarityThreshold() float64 {
	return r.similarityThreshold
}

// resolveDocument maps a graph ID, or a document ID, to its record.
func (r *Registry) resolveDocument(graphID string) (*documentRecord, bool) {
	if docID, ok := r.graphIndex[graphID]; ok {
		rec, ok := r.documents[docID]
		return rec, ok
	}
	rec, ok := r.documents[graphID]
	return rec, ok
}

// DocumentForEntity returns the document of the entity's first source chunk,
// or UnknownDocument when the entity has no chunks or the chunk is not
// indexed.
func (r *Registry) DocumentForEntity(entity *common.Entity) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.documentForEntity(entity)
}

func (r *Registry) documentForEntity(entity *common.Entity) string {
	if entity == nil || len(entity.SourceChunks) == 0 {
		return UnknownDocument
	}
	if docID, ok := r.chunkIndex[entity.SourceChunks[0]]; ok {
		return docID
	}
	return UnknownDocument
}

// Entity returns a copy of a global entity.
func (r *Registry) Entity(id string) (common.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.global.Node(id)
	if !ok {
		return common.Entity{}, notFoundErrorf("entity %s", id)
	}
	return cloneEntity(*node), nil
}

// Documents lists the merged document graphs ordered by document ID.
func (r *Registry) Documents() []common.DocumentSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]common.DocumentSummary, 0, len(r.documents))
	for _, rec := range r.documents {
		out = append(out, common.DocumentSummary{
			DocumentID:        rec.graph.DocumentID,
			GraphID:           rec.graph.GraphID,
			ContentID:         rec.graph.ContentID,
			EntityCount:       rec.graph.Metadata.EntityCount,
			RelationshipCount: rec.graph.Metadata.RelationshipCount,
			CreationTimestamp: rec.graph.CreationTimestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// DocumentGraph returns a copy of the graph stored under the given graph ID or
// document ID.
func (r *Registry) DocumentGraph(graphID string) (*common.KnowledgeGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.resolveDocument(graphID)
	if !ok {
		return nil, notFoundErrorf("graph %s", graphID)
	}
	return cloneGraph(rec.graph), nil
}

// CrossDocumentRelationships returns the discovered cross-document
// relationships in discovery order.
func (r *Registry) CrossDocumentRelationships() []common.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Relationship, len(r.crossDocument))
	for i, rel := range r.crossDocument {
		out[i] = cloneRelationship(rel)
	}
	return out
}

func (r *Registry) Stats() common.GraphStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return common.GraphStats{
		Documents:                  len(r.documents),
		Entities:                   r.global.NodeCount(),
		Edges:                      r.global.EdgeCount(),
		CrossDocumentRelationships: len(r.crossDocument),
	}
}
