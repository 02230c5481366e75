package graph

import (
	"sort"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// DefaultNeighborhoodDepth is the traversal depth used when callers do not
// pass one.
const DefaultNeighborhoodDepth = 2

// GetEntityNeighborhood returns the subgraph reachable from entityID within
// depth hops of the global graph. Edges count in both directions for
// reachability and every node keeps its shortest distance. The edge list holds
// every stored edge between two visited nodes; at depth 0 it is empty.
func (r *Registry) GetEntityNeighborhood(entityID string, depth int) (*common.Neighborhood, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, validationErrorf("entity id cannot be empty")
	}
	if depth < 0 {
		return nil, validationErrorf("depth must be non-negative, got %d", depth)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.global.HasNode(entityID) {
		return nil, notFoundErrorf("entity %s", entityID)
	}

	distance := map[string]int{entityID: 0}
	queue := []string{entityID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		d := distance[current]
		if d >= depth {
			continue
		}
		for _, next := range r.global.Neighbors(current) {
			if _, seen := distance[next]; seen {
				continue
			}
			distance[next] = d + 1
			queue = append(queue, next)
		}
	}

	nodes := make([]common.NeighborhoodNode, 0, len(distance))
	visited := make(map[string]struct{}, len(distance))
	for id, d := range distance {
		visited[id] = struct{}{}
		e, _ := r.global.Node(id)
		nodes = append(nodes, common.NeighborhoodNode{
			ID:           id,
			Distance:     d,
			Name:         e.Name,
			Type:         e.Type,
			Description:  e.Description,
			Confidence:   e.Confidence,
			SourceChunks: append([]string{}, e.SourceChunks...),
			Documents:    append([]string{}, r.entityDocuments[id]...),
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Distance != nodes[j].Distance {
			return nodes[i].Distance < nodes[j].Distance
		}
		return nodes[i].ID < nodes[j].ID
	})

	edges := make([]common.NeighborhoodEdge, 0)
	if depth > 0 {
		for _, e := range r.global.EdgesWithin(visited) {
			edges = append(edges, common.NeighborhoodEdge{
				Source:           e.Source,
				Target:           e.Target,
				RelationshipID:   e.RelationshipID,
				RelationshipType: e.RelationshipType,
				Description:      e.Description,
				Confidence:       e.Confidence,
				SourceChunks:     append([]string{}, e.SourceChunks...),
				CrossDocument:    e.CrossDocument,
			})
		}
	}

	return &common.Neighborhood{
		CenterEntityID: entityID,
		Depth:          depth,
		Nodes:          nodes,
		Edges:          edges,
		NodeCount:      len(nodes),
		EdgeCount:      len(edges),
	}, nil
}
