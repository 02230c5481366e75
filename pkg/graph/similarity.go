package graph

import (
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const (
	nameSimilarityWeight        = 0.75
	descriptionSimilarityWeight = 0.25
)

// overlapCoefficient returns |a ∩ b| / min(|a|, |b|), or 0 when either set is
// empty.
func overlapCoefficient(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

// orderedOverlap returns the share of positions at which a and b hold the
// same token, relative to the longer sequence.
func orderedOverlap(a, b []string) float64 {
	n := max(len(a), len(b))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	same := 0
	for i := range min(len(a), len(b)) {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(n)
}

// textOverlap compares two texts of entities of entityType. Dates and amounts
// are compared position by position, since their tokens only mean something
// in order.
func textOverlap(entityType, a, b string) float64 {
	switch entityType {
	case EntityTypeDate, EntityTypeCurrency:
		return orderedOverlap(tokenize(a), tokenize(b))
	default:
		return overlapCoefficient(tokenSet(a), tokenSet(b))
	}
}

// Similarity scores two entities in [0, 1] by the token overlap of their names
// and descriptions. Entities of different types score 0. When either
// description is empty the name score is used alone.
func Similarity(a, b *common.Entity) float64 {
	if a == nil || b == nil {
		return 0
	}
	entityType := strings.ToLower(a.Type)
	if entityType != strings.ToLower(b.Type) {
		return 0
	}
	name := textOverlap(entityType, a.Name, b.Name)
	if strings.TrimSpace(a.Description) == "" || strings.TrimSpace(b.Description) == "" {
		return name
	}
	desc := textOverlap(entityType, a.Description, b.Description)
	return nameSimilarityWeight*name + descriptionSimilarityWeight*desc
}

func (r *Registry) indexTokens(e *common.Entity) {
	for t := range tokenSet(e.Name) {
		ids, ok := r.tokenIndex[t]
		if !ok {
			ids = make(map[string]struct{})
			r.tokenIndex[t] = ids
		}
		ids[e.ID] = struct{}{}
	}
}

// candidateIDs returns the global entities that may reach the threshold
// against e. Above the description weight a candidate needs at least one
// shared name token, so the token index is exact; otherwise every entity is a
// candidate.
func (r *Registry) candidateIDs(e *common.Entity) []string {
	if r.similarityThreshold <= descriptionSimilarityWeight {
		return r.global.NodeIDs()
	}
	set := make(map[string]struct{})
	for t := range tokenSet(e.Name) {
		for id := range r.tokenIndex[t] {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return unionSorted(nil, ids...)
}

// attributedElsewhere reports whether the entity belongs to a document other
// than documentID.
func (r *Registry) attributedElsewhere(entityID, documentID string) bool {
	for _, d := range r.entityDocuments[entityID] {
		if d != documentID {
			return true
		}
	}
	return false
}
