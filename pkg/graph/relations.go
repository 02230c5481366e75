package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const (
	// CoOccurrenceConfidence is the confidence of an intra-chunk relationship.
	CoOccurrenceConfidence = 0.6
	// ContinuityConfidence is the confidence of a cross-chunk relationship.
	ContinuityConfidence = 0.5

	extractionMethodCoOccurrence = "co_occurrence_analysis"
	extractionMethodContinuity   = "cross_chunk_continuity"
)

// mention is an entity found in a chunk together with the byte range of its
// first whole-word occurrence in the collapsed chunk text.
type mention struct {
	entity *common.Entity
	start  int
	end    int
}

// chunkText holds the whitespace-collapsed text of a chunk and its
// lower-cased form. Offsets into lower are valid for text when both have the
// same length, which holds for all but a few exotic case mappings.
type chunkText struct {
	text  string
	lower string
}

func newChunkText(raw string) chunkText {
	text := strings.Join(strings.Fields(raw), " ")
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		text = lower
	}
	return chunkText{text: text, lower: lower}
}

// findMentions returns the entities whose name occurs in ct, ordered by
// position and then ID.
func findMentions(entities []common.Entity, ct chunkText) []mention {
	mentions := make([]mention, 0)
	seen := make(map[string]struct{})
	for i := range entities {
		e := &entities[i]
		name := normalizeText(e.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		idx := wordIndex(ct.lower, name)
		if idx < 0 {
			continue
		}
		seen[e.ID] = struct{}{}
		mentions = append(mentions, mention{entity: e, start: idx, end: idx + len(name)})
	}
	sort.SliceStable(mentions, func(i, j int) bool {
		if mentions[i].start != mentions[j].start {
			return mentions[i].start < mentions[j].start
		}
		return mentions[i].entity.ID < mentions[j].entity.ID
	})
	return mentions
}

// orient decides the direction of a co-occurrence relationship. a is the
// earlier mention.
func orient(a, b mention) (mention, mention) {
	aLoc := a.entity.Type == EntityTypeLocation
	bLoc := b.entity.Type == EntityTypeLocation
	switch {
	case aLoc && !bLoc:
		return b, a
	case bLoc && !aLoc:
		return a, b
	case a.entity.Type == EntityTypeOrganization && b.entity.Type == EntityTypePerson:
		return b, a
	}
	return a, b
}

func describeRelationship(source, target *common.Entity, relationshipType string) string {
	return fmt.Sprintf("%s %s %s", source.Name, strings.ReplaceAll(relationshipType, "_", " "), target.Name)
}

func newRelationship(source, target *common.Entity, relationshipType string, confidence float64, chunks []string, method, context string) common.Relationship {
	return common.Relationship{
		ID:               RelationshipID(source.ID, target.ID, relationshipType),
		SourceEntityID:   source.ID,
		TargetEntityID:   target.ID,
		RelationshipType: relationshipType,
		Description:      describeRelationship(source, target, relationshipType),
		Confidence:       confidence,
		SourceChunks:     unionSorted(nil, chunks...),
		Properties: map[string]string{
			"extraction_method": method,
			"context_snippet":   context,
		},
	}
}

// ExtractChunkRelationships applies the default rule table.
func ExtractChunkRelationships(entities []common.Entity, chunk *common.Chunk) ([]common.Relationship, error) {
	return defaultRules.ExtractChunkRelationships(entities, chunk)
}

// ExtractChunkRelationships links every pair of entities mentioned in the
// chunk for which a relationship type can be inferred. Entities that are not
// mentioned as whole words are ignored.
func (t *RuleTable) ExtractChunkRelationships(entities []common.Entity, chunk *common.Chunk) ([]common.Relationship, error) {
	if chunk == nil {
		return nil, typeErrorf("chunk is nil")
	}
	relationships := make([]common.Relationship, 0)
	ct := newChunkText(chunk.Text)
	if ct.lower == "" {
		return relationships, nil
	}
	mentions := findMentions(entities, ct)
	if len(mentions) < 2 {
		return relationships, nil
	}

	seen := make(map[string]struct{})
	for i := 0; i < len(mentions); i++ {
		for j := i + 1; j < len(mentions); j++ {
			relType, ok, err := t.Infer(mentions[i].entity, mentions[j].entity, chunk.Text)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			src, tgt := orient(mentions[i], mentions[j])
			rel := newRelationship(src.entity, tgt.entity, relType, CoOccurrenceConfidence,
				[]string{chunk.ID}, extractionMethodCoOccurrence,
				snippet(ct.text, min(src.start, tgt.start), max(src.end, tgt.end)))
			if _, dup := seen[rel.ID]; dup {
				continue
			}
			seen[rel.ID] = struct{}{}
			relationships = append(relationships, rel)
		}
	}
	return relationships, nil
}

// ExtractCrossChunkRelationships applies the default rule table.
func ExtractCrossChunkRelationships(entities []common.Entity, chunks []*common.Chunk) ([]common.Relationship, error) {
	return defaultRules.ExtractCrossChunkRelationships(entities, chunks)
}

// pageSequences groups consecutive chunks of the same document and page.
// Chunks without a page are never part of a sequence.
func pageSequences(chunks []*common.Chunk) [][]*common.Chunk {
	var sequences [][]*common.Chunk
	var current []*common.Chunk
	flush := func() {
		if len(current) > 1 {
			sequences = append(sequences, current)
		}
		current = nil
	}
	for _, c := range chunks {
		if c.PageID == "" {
			flush()
			continue
		}
		if len(current) > 0 {
			prev := current[len(current)-1]
			if prev.PageID != c.PageID || prev.DocumentID != c.DocumentID {
				flush()
			}
		}
		current = append(current, c)
	}
	flush()
	return sequences
}

// ExtractCrossChunkRelationships links entities mentioned in one chunk to
// entities mentioned in the directly following chunk of the same page. The
// earlier entity is the source. Pairs that already co-occur within one of the
// two chunks are left to ExtractChunkRelationships.
func (t *RuleTable) ExtractCrossChunkRelationships(entities []common.Entity, chunks []*common.Chunk) ([]common.Relationship, error) {
	for i, c := range chunks {
		if c == nil {
			return nil, typeErrorf("chunk %d is nil", i)
		}
	}

	byID := make(map[string]int)
	relationships := make([]common.Relationship, 0)
	for _, seq := range pageSequences(chunks) {
		for k := 0; k+1 < len(seq); k++ {
			first, second := seq[k], seq[k+1]
			firstText, secondText := newChunkText(first.Text), newChunkText(second.Text)
			inFirst := findMentions(entities, firstText)
			inSecond := findMentions(entities, secondText)
			if len(inFirst) == 0 || len(inSecond) == 0 {
				continue
			}
			firstIDs := mentionIDs(inFirst)
			secondIDs := mentionIDs(inSecond)

			joined := chunkText{
				text:  firstText.text + " " + secondText.text,
				lower: firstText.lower + " " + secondText.lower,
			}
			offset := len(firstText.text) + 1

			for _, a := range inFirst {
				for _, b := range inSecond {
					if a.entity.ID == b.entity.ID {
						continue
					}
					_, bInFirst := firstIDs[b.entity.ID]
					_, aInSecond := secondIDs[a.entity.ID]
					if bInFirst || aInSecond {
						continue
					}
					relType, ok, err := t.Infer(a.entity, b.entity, joined.text)
					if err != nil {
						return nil, err
					}
					if !ok {
						continue
					}
					rel := newRelationship(a.entity, b.entity, relType, ContinuityConfidence,
						[]string{first.ID, second.ID}, extractionMethodContinuity,
						snippet(joined.text, a.start, offset+b.end))
					if i, dup := byID[rel.ID]; dup {
						relationships[i].SourceChunks = unionSorted(relationships[i].SourceChunks, rel.SourceChunks...)
						continue
					}
					byID[rel.ID] = len(relationships)
					relationships = append(relationships, rel)
				}
			}
		}
	}
	sort.Slice(relationships, func(i, j int) bool { return relationships[i].ID < relationships[j].ID })
	return relationships, nil
}

func mentionIDs(mentions []mention) map[string]struct{} {
	ids := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		ids[m.entity.ID] = struct{}{}
	}
	return ids
}
