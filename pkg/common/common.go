package common

// Chunk is one contiguous span of a document's text as delivered by the
// decomposition and chunk-optimization stages. Chunks are the unit entity
// extraction operates on.
//
// Consecutive chunks that share a PageID form a same-page sequence, which is
// what cross-chunk relationship extraction walks.
type Chunk struct {
	ID         string `json:"chunk_id" validate:"required"`
	DocumentID string `json:"document_id"`
	PageID     string `json:"page_id"`
	Text       string `json:"text"`
}

// Document is the input of one integration run: an identifier and its
// ordered chunks.
type Document struct {
	ID     string   `json:"document_id" validate:"required"`
	Chunks []*Chunk `json:"chunks" validate:"dive"`
}

// Entity represents a node in the graph. An entity can be a person,
// organization, location, date, currency amount or any other named thing
// recognised in text.
//
// The ID is derived from the normalized name and the type, so identical
// mentions collide and fold into one entity.
type Entity struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Description  string            `json:"description"`
	Confidence   float64           `json:"confidence"`
	SourceChunks []string          `json:"source_chunks"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Relationship represents a directed, typed edge between two entities
// together with the chunks that evidence it.
//
// The ID is derived from the ordered pair of endpoint IDs and the type, so
// extracting the same relationship twice is idempotent.
type Relationship struct {
	ID               string            `json:"id"`
	SourceEntityID   string            `json:"source_entity_id"`
	TargetEntityID   string            `json:"target_entity_id"`
	RelationshipType string            `json:"relationship_type"`
	Description      string            `json:"description"`
	Confidence       float64           `json:"confidence"`
	SourceChunks     []string          `json:"source_chunks"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// GraphMetadata holds the bookkeeping attached to a document graph.
type GraphMetadata struct {
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	CreatedAt         string `json:"created_at"`
	ProcessedAt       string `json:"processed_at"`
}

// KnowledgeGraph is the entity/relationship graph of a single document.
// It is built once per integration and never modified afterwards; the
// content ID returned by the persistence collaborator is attached to a copy.
type KnowledgeGraph struct {
	DocumentID        string         `json:"document_id"`
	GraphID           string         `json:"graph_id"`
	Entities          []Entity       `json:"entities"`
	Relationships     []Relationship `json:"relationships"`
	Chunks            []string       `json:"chunks"`
	Metadata          GraphMetadata  `json:"metadata"`
	CreationTimestamp string         `json:"creation_timestamp"`
	ContentID         string         `json:"ipld_cid,omitempty"`
}

// ScoredEntity is an entity matched by a keyword query.
type ScoredEntity struct {
	Entity
	Score float64 `json:"score"`
}

// QueryResult is the answer of a keyword query over the global graph or a
// single document graph.
type QueryResult struct {
	Query         string         `json:"query"`
	GraphID       string         `json:"graph_id,omitempty"`
	Entities      []ScoredEntity `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	TotalMatches  int            `json:"total_matches"`
	Timestamp     string         `json:"timestamp"`
}

// NeighborhoodNode is a node reached by a neighborhood traversal along with
// every attribute stored on it in the global graph.
type NeighborhoodNode struct {
	ID           string   `json:"id"`
	Distance     int      `json:"distance"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Confidence   float64  `json:"confidence"`
	SourceChunks []string `json:"source_chunks"`
	Documents    []string `json:"documents"`
}

// NeighborhoodEdge is a stored edge whose endpoints were both visited.
type NeighborhoodEdge struct {
	Source           string   `json:"source"`
	Target           string   `json:"target"`
	RelationshipID   string   `json:"relationship_id"`
	RelationshipType string   `json:"relationship_type"`
	Description      string   `json:"description"`
	Confidence       float64  `json:"confidence"`
	SourceChunks     []string `json:"source_chunks"`
	CrossDocument    bool     `json:"cross_document"`
}

// Neighborhood is the bounded-depth subgraph around a center entity.
type Neighborhood struct {
	CenterEntityID string             `json:"center_entity_id"`
	Depth          int                `json:"depth"`
	Nodes          []NeighborhoodNode `json:"nodes"`
	Edges          []NeighborhoodEdge `json:"edges"`
	NodeCount      int                `json:"node_count"`
	EdgeCount      int                `json:"edge_count"`
}

// DocumentSummary describes one document graph held by the registry.
type DocumentSummary struct {
	DocumentID        string `json:"document_id"`
	GraphID           string `json:"graph_id"`
	ContentID         string `json:"ipld_cid,omitempty"`
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	CreationTimestamp string `json:"creation_timestamp"`
}

// GraphStats summarises the global graph.
type GraphStats struct {
	Documents                  int `json:"documents"`
	Entities                   int `json:"entities"`
	Edges                      int `json:"edges"`
	CrossDocumentRelationships int `json:"cross_document_relationships"`
}
