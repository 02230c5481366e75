package graph

import (
	"sort"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// Edge holds the attributes of a directed edge between two entities.
type Edge struct {
	Source           string
	Target           string
	RelationshipID   string
	RelationshipType string
	Description      string
	Confidence       float64
	SourceChunks     []string
	CrossDocument    bool
}

func edgeFromRelationship(rel common.Relationship) Edge {
	return Edge{
		Source:           rel.SourceEntityID,
		Target:           rel.TargetEntityID,
		RelationshipID:   rel.ID,
		RelationshipType: rel.RelationshipType,
		Description:      rel.Description,
		Confidence:       rel.Confidence,
		SourceChunks:     unionSorted(nil, rel.SourceChunks...),
	}
}

// Relationship converts the edge back into a relationship value.
func (e *Edge) Relationship() common.Relationship {
	return common.Relationship{
		ID:               e.RelationshipID,
		SourceEntityID:   e.Source,
		TargetEntityID:   e.Target,
		RelationshipType: e.RelationshipType,
		Description:      e.Description,
		Confidence:       e.Confidence,
		SourceChunks:     append([]string(nil), e.SourceChunks...),
	}
}

// fold merges other into e. Source chunks are unioned and the attributes of
// the more confident edge win; on a tie the existing attributes stay.
func (e *Edge) fold(other Edge) {
	e.SourceChunks = unionSorted(e.SourceChunks, other.SourceChunks...)
	if other.Confidence > e.Confidence {
		e.RelationshipID = other.RelationshipID
		e.RelationshipType = other.RelationshipType
		e.Description = other.Description
		e.Confidence = other.Confidence
	}
	e.CrossDocument = e.CrossDocument || other.CrossDocument
}

// Digraph is a directed graph over entity IDs backed by adjacency maps. There
// is at most one edge per ordered pair of nodes. Self-loops and cycles are
// allowed. The outgoing and incoming maps share the same *Edge.
//
// Digraph is not safe for concurrent mutation.
type Digraph struct {
	nodes     map[string]*common.Entity
	out       map[string]map[string]*Edge
	in        map[string]map[string]*Edge
	edgeCount int
}

func NewDigraph() *Digraph {
	return &Digraph{
		nodes: make(map[string]*common.Entity),
		out:   make(map[string]map[string]*Edge),
		in:    make(map[string]map[string]*Edge),
	}
}

// AddNode inserts the entity or replaces the attributes of an existing node.
func (g *Digraph) AddNode(entity common.Entity) {
	e := cloneEntity(entity)
	g.nodes[e.ID] = &e
}

func (g *Digraph) Node(id string) (*common.Entity, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Digraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge inserts the edge or folds it into the existing edge of the same
// ordered pair. Both endpoints must already be nodes.
func (g *Digraph) AddEdge(edge Edge) error {
	if !g.HasNode(edge.Source) {
		return structuralErrorf("edge %s references unknown source %s", edge.RelationshipID, edge.Source)
	}
	if !g.HasNode(edge.Target) {
		return structuralErrorf("edge %s references unknown target %s", edge.RelationshipID, edge.Target)
	}
	if existing, ok := g.out[edge.Source][edge.Target]; ok {
		existing.fold(edge)
		return nil
	}

	e := edge
	e.SourceChunks = unionSorted(nil, edge.SourceChunks...)
	if g.out[e.Source] == nil {
		g.out[e.Source] = make(map[string]*Edge)
	}
	if g.in[e.Target] == nil {
		g.in[e.Target] = make(map[string]*Edge)
	}
	g.out[e.Source][e.Target] = &e
	g.in[e.Target][e.Source] = &e
	g.edgeCount++
	return nil
}

func (g *Digraph) Edge(source, target string) (*Edge, bool) {
	e, ok := g.out[source][target]
	return e, ok
}

func (g *Digraph) NodeCount() int { return len(g.nodes) }

func (g *Digraph) EdgeCount() int { return g.edgeCount }

// Neighbors returns the IDs adjacent to id in either direction, sorted.
// A node with a self-loop is its own neighbor.
func (g *Digraph) Neighbors(id string) []string {
	set := make(map[string]struct{}, len(g.out[id])+len(g.in[id]))
	for t := range g.out[id] {
		set[t] = struct{}{}
	}
	for s := range g.in[id] {
		set[s] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for n := range set {
		ids = append(ids, n)
	}
	sort.Strings(ids)
	return ids
}

// NodeIDs returns all node IDs, sorted.
func (g *Digraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges sorted by source and target.
func (g *Digraph) Edges() []*Edge {
	edges := make([]*Edge, 0, g.edgeCount)
	for _, targets := range g.out {
		for _, e := range targets {
			edges = append(edges, e)
		}
	}
	sortEdges(edges)
	return edges
}

// EdgesWithin returns the edges whose endpoints are both in nodes, sorted by
// source and target.
func (g *Digraph) EdgesWithin(nodes map[string]struct{}) []*Edge {
	edges := make([]*Edge, 0)
	for src := range nodes {
		for tgt, e := range g.out[src] {
			if _, ok := nodes[tgt]; ok {
				edges = append(edges, e)
			}
		}
	}
	sortEdges(edges)
	return edges
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}
