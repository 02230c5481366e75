package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

var timeNow = func() time.Time { return time.Now().UTC() }

func timestamp() string {
	return timeNow().Format(time.RFC3339Nano)
}

// BuildDocumentGraph assembles the graph of one document. Duplicate entity
// and relationship IDs are folded, every entity becomes a node and every
// relationship an edge. An empty graph is valid.
//
// Relationships that share an ordered pair of endpoints are kept as separate
// relationships but collapse into a single edge of the returned Digraph.
func BuildDocumentGraph(
	documentID string,
	entities []common.Entity,
	relationships []common.Relationship,
	chunkIDs ...string,
) (*common.KnowledgeGraph, *Digraph, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, nil, validationErrorf("document id cannot be empty")
	}

	for i := range entities {
		e := &entities[i]
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.Type) == "" {
			return nil, nil, structuralErrorf("entity %d of document %s is missing a name or type", i, documentID)
		}
	}
	normalized := make([]common.Entity, len(entities))
	for i, e := range entities {
		normalized[i] = e
		if normalized[i].ID == "" {
			normalized[i].ID = EntityID(e.Name, e.Type)
		}
	}
	nodes := consolidateEntities(nil, normalized)
	sortEntities(nodes)

	dg := NewDigraph()
	for _, e := range nodes {
		dg.AddNode(e)
	}

	rels, err := consolidateRelationships(relationships)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range rels {
		if err := dg.AddEdge(edgeFromRelationship(rel)); err != nil {
			return nil, nil, err
		}
	}

	chunks := make([]string, 0, len(chunkIDs))
	seen := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		chunks = append(chunks, id)
	}

	now := timestamp()
	kg := &common.KnowledgeGraph{
		DocumentID:    documentID,
		GraphID:       GraphID(documentID),
		Entities:      nodes,
		Relationships: rels,
		Chunks:        chunks,
		Metadata: common.GraphMetadata{
			EntityCount:       len(nodes),
			RelationshipCount: len(rels),
			CreatedAt:         now,
			ProcessedAt:       now,
		},
		CreationTimestamp: now,
	}
	if kg.Entities == nil {
		kg.Entities = []common.Entity{}
	}
	return kg, dg, nil
}

func consolidateRelationships(relationships []common.Relationship) ([]common.Relationship, error) {
	out := make([]common.Relationship, 0, len(relationships))
	index := make(map[string]int, len(relationships))
	for i, rel := range relationships {
		if rel.SourceEntityID == "" || rel.TargetEntityID == "" || strings.TrimSpace(rel.RelationshipType) == "" {
			return nil, structuralErrorf("relationship %d is missing an endpoint or type", i)
		}
		if len(rel.SourceChunks) == 0 {
			return nil, structuralErrorf("relationship %d (%s -> %s) has no source chunks",
				i, rel.SourceEntityID, rel.TargetEntityID)
		}
		if rel.ID == "" {
			rel.ID = RelationshipID(rel.SourceEntityID, rel.TargetEntityID, rel.RelationshipType)
		}
		if j, ok := index[rel.ID]; ok {
			foldRelationship(&out[j], rel)
			continue
		}
		index[rel.ID] = len(out)
		out = append(out, cloneRelationship(rel))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func foldRelationship(dst *common.Relationship, src common.Relationship) {
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	dst.SourceChunks = unionSorted(dst.SourceChunks, src.SourceChunks...)
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if len(src.Properties) > 0 && dst.Properties == nil {
		dst.Properties = make(map[string]string, len(src.Properties))
	}
	for k, v := range src.Properties {
		if _, exists := dst.Properties[k]; !exists {
			dst.Properties[k] = v
		}
	}
}

func cloneRelationship(r common.Relationship) common.Relationship {
	out := r
	out.SourceChunks = unionSorted(nil, r.SourceChunks...)
	if r.Properties != nil {
		out.Properties = make(map[string]string, len(r.Properties))
		for k, v := range r.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// cloneGraph returns a deep copy of kg.
func cloneGraph(kg *common.KnowledgeGraph) *common.KnowledgeGraph {
	out := *kg
	out.Entities = make([]common.Entity, len(kg.Entities))
	for i, e := range kg.Entities {
		out.Entities[i] = cloneEntity(e)
	}
	out.Relationships = make([]common.Relationship, len(kg.Relationships))
	for i, r := range kg.Relationships {
		out.Relationships[i] = cloneRelationship(r)
	}
	out.Chunks = append([]string(nil), kg.Chunks...)
	return &out
}
