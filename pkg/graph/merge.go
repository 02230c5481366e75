package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
)

const extractionMethodSimilarity = "cross_document_similarity"

// Merge folds a document graph into the global graph and discovers
// cross-document relationships for its entities, both under one write lock.
// When dg is nil it is rebuilt from kg. Nothing is mutated if kg fails
// validation.
func (r *Registry) Merge(kg *common.KnowledgeGraph, dg *Digraph) ([]common.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.mergeLocked(kg, dg)
	if err != nil {
		return nil, err
	}
	return r.discoverLocked(kg.DocumentID, ids), nil
}

// MergeIntoGlobal folds a document graph into the global graph without running
// cross-document discovery. It returns the IDs of the merged entities.
func (r *Registry) MergeIntoGlobal(kg *common.KnowledgeGraph) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mergeLocked(kg, nil)
}

// DiscoverCrossDocumentRelationships links the given entities of documentID to
// similar global entities attributed to other documents and records the new
// relationships.
func (r *Registry) DiscoverCrossDocumentRelationships(documentID string, entityIDs []string) []common.Relationship {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoverLocked(documentID, entityIDs)
}

func validateForMerge(kg *common.KnowledgeGraph) error {
	if kg == nil {
		return typeErrorf("knowledge graph is nil")
	}
	if kg.DocumentID == "" {
		return validationErrorf("knowledge graph has no document id")
	}
	ids := make(map[string]struct{}, len(kg.Entities))
	for _, e := range kg.Entities {
		if e.ID == "" || e.Type == "" {
			return structuralErrorf("entity %q of document %s is missing an id or type", e.Name, kg.DocumentID)
		}
		ids[e.ID] = struct{}{}
	}
	for _, rel := range kg.Relationships {
		_, okSrc := ids[rel.SourceEntityID]
		_, okTgt := ids[rel.TargetEntityID]
		if !okSrc || !okTgt {
			return structuralErrorf("relationship %s of document %s references a missing entity", rel.ID, kg.DocumentID)
		}
		if len(rel.SourceChunks) == 0 {
			return structuralErrorf("relationship %s of document %s has no source chunks", rel.ID, kg.DocumentID)
		}
	}
	return nil
}

func (r *Registry) mergeLocked(kg *common.KnowledgeGraph, dg *Digraph) ([]string, error) {
	if err := validateForMerge(kg); err != nil {
		return nil, err
	}
	if dg == nil {
		var err error
		if _, dg, err = BuildDocumentGraph(kg.DocumentID, kg.Entities, kg.Relationships, kg.Chunks...); err != nil {
			return nil, err
		}
	}
	docID := kg.DocumentID

	if prev, ok := r.documents[docID]; ok {
		logger.Warn("[Graph] Overwriting document graph", "document_id", docID,
			"previous_graph_id", prev.graph.GraphID, "previous_created_at", prev.graph.CreationTimestamp)
	}
	r.documents[docID] = &documentRecord{graph: cloneGraph(kg), digraph: dg}
	r.graphIndex[kg.GraphID] = docID

	indexChunk := func(chunkID string) {
		if _, ok := r.chunkIndex[chunkID]; !ok && chunkID != "" {
			r.chunkIndex[chunkID] = docID
		}
	}
	for _, c := range kg.Chunks {
		indexChunk(c)
	}

	ids := make([]string, 0, len(kg.Entities))
	for _, e := range kg.Entities {
		for _, c := range e.SourceChunks {
			indexChunk(c)
		}
		if node, ok := r.global.Node(e.ID); ok {
			foldEntity(node, e)
		} else {
			r.global.AddNode(e)
			node, _ = r.global.Node(e.ID)
			r.indexTokens(node)
		}
		r.entityDocuments[e.ID], _ = insertSorted(r.entityDocuments[e.ID], docID)
		ids = append(ids, e.ID)
	}

	for _, rel := range kg.Relationships {
		if err := r.global.AddEdge(edgeFromRelationship(rel)); err != nil {
			// Endpoints were validated above and were just merged.
			return nil, fmt.Errorf("corrupted global graph: %w", err)
		}
	}

	logger.Debug("[Graph] Merged document graph", "document_id", docID,
		"entities", len(kg.Entities), "relationships", len(kg.Relationships),
		"global_entities", r.global.NodeCount(), "global_edges", r.global.EdgeCount())
	return ids, nil
}

func (r *Registry) discoverLocked(documentID string, entityIDs []string) []common.Relationship {
	ids := unionSorted(nil, entityIDs...)
	found := make([]common.Relationship, 0)

	for _, id := range ids {
		entity, ok := r.global.Node(id)
		if !ok {
			continue
		}
		for _, candidateID := range r.candidateIDs(entity) {
			if candidateID == id || !r.attributedElsewhere(candidateID, documentID) {
				continue
			}
			candidate, _ := r.global.Node(candidateID)
			score := Similarity(entity, candidate)
			if score < r.similarityThreshold {
				continue
			}

			relID := RelationshipID(id, candidateID, RelationRelatedTo)
			reverseID := RelationshipID(candidateID, id, RelationRelatedTo)
			if _, dup := r.crossIDs[relID]; dup {
				continue
			}
			if _, dup := r.crossIDs[reverseID]; dup {
				continue
			}

			rel := common.Relationship{
				ID:               relID,
				SourceEntityID:   id,
				TargetEntityID:   candidateID,
				RelationshipType: RelationRelatedTo,
				Description: fmt.Sprintf("%s is similar to %s from another document",
					entity.Name, candidate.Name),
				Confidence:   score,
				SourceChunks: unionSorted(entity.SourceChunks, candidate.SourceChunks...),
				Properties: map[string]string{
					"extraction_method": extractionMethodSimilarity,
					"similarity_score":  strconv.FormatFloat(score, 'f', 4, 64),
					"source_document":   r.documentForEntity(entity),
					"target_document":   r.documentForEntity(candidate),
				},
			}
			edge := edgeFromRelationship(rel)
			edge.CrossDocument = true
			if err := r.global.AddEdge(edge); err != nil {
				logger.Error("[Graph] Failed to add cross-document edge", "relationship_id", relID, "err", err)
				continue
			}
			r.crossIDs[relID] = struct{}{}
			r.crossDocument = append(r.crossDocument, rel)
			found = append(found, cloneRelationship(rel))
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	if len(found) > 0 {
		logger.Info("[Graph] Discovered cross-document relationships", "document_id", documentID, "count", len(found))
	}
	return found
}
