package graph

import (
	"sort"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// DefaultMaxResults is the result limit used when callers do not pass one.
const DefaultMaxResults = 10

// Weights of the query score components.
const (
	exactNameWeight   = 1.0
	partialNameWeight = 0.6
	typeMatchWeight   = 0.4
	descriptionWeight = 0.2
)

// tokenFraction returns the share of query tokens found in set.
func tokenFraction(queryTokens []string, set map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// scoreEntity scores e against the normalized query q. Each component lies in
// [0, 1] and the weighted sum is clamped to [0, 1].
func scoreEntity(e *common.Entity, q string, queryTokens []string) float64 {
	name := normalizeText(e.Name)

	var exact, partial, typeMatch float64
	if name == q {
		exact = 1
	} else if strings.Contains(name, q) {
		partial = 1
	} else {
		partial = tokenFraction(queryTokens, tokenSet(name))
	}

	entityType := normalizeText(e.Type)
	if entityType == q {
		typeMatch = 1
	} else {
		for _, t := range queryTokens {
			if t == entityType {
				typeMatch = 1
				break
			}
		}
	}
	desc := tokenFraction(queryTokens, tokenSet(e.Description))

	score := exactNameWeight*exact + partialNameWeight*partial + typeMatchWeight*typeMatch + descriptionWeight*desc
	return min(max(score, 0), 1)
}

// QueryGraph searches entities by name, type and description. An empty
// graphID searches the global graph, otherwise the graph of one document. A
// blank query matches nothing.
func (r *Registry) QueryGraph(query, graphID string, maxResults int) (*common.QueryResult, error) {
	if maxResults <= 0 {
		return nil, validationErrorf("max results must be positive, got %d", maxResults)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	g := r.global
	if graphID != "" {
		rec, ok := r.resolveDocument(graphID)
		if !ok {
			return nil, notFoundErrorf("graph %s", graphID)
		}
		g = rec.digraph
	}

	result := &common.QueryResult{
		Query:         query,
		GraphID:       graphID,
		Entities:      []common.ScoredEntity{},
		Relationships: []common.Relationship{},
		Timestamp:     timestamp(),
	}
	q := normalizeText(query)
	if q == "" {
		return result, nil
	}
	queryTokens := tokenize(q)

	for _, id := range g.NodeIDs() {
		node, _ := g.Node(id)
		score := scoreEntity(node, q, queryTokens)
		if score <= 0 {
			continue
		}
		result.Entities = append(result.Entities, common.ScoredEntity{Entity: cloneEntity(*node), Score: score})
	}
	sort.SliceStable(result.Entities, func(i, j int) bool {
		if result.Entities[i].Score != result.Entities[j].Score {
			return result.Entities[i].Score > result.Entities[j].Score
		}
		return result.Entities[i].ID < result.Entities[j].ID
	})
	result.TotalMatches = len(result.Entities)
	if len(result.Entities) > maxResults {
		result.Entities = result.Entities[:maxResults]
	}

	matched := make(map[string]struct{}, len(result.Entities))
	for _, e := range result.Entities {
		matched[e.ID] = struct{}{}
	}
	for _, edge := range g.EdgesWithin(matched) {
		result.Relationships = append(result.Relationships, edge.Relationship())
	}
	return result, nil
}
