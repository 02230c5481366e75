package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"golang.org/x/sync/errgroup"
)

const (
	// PatternConfidence is the fixed confidence of a pattern match.
	PatternConfidence = 0.7

	extractionMethodPattern = "regex_pattern_matching"
	maxParallelChunks       = 8
)

// Extractor runs a compiled battery of pattern rules over chunk text.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	rules []compiledRule
}

// NewExtractor compiles rules into an Extractor. A rule that fails to
// compile yields an error wrapping ErrPatternCompile.
func NewExtractor(rules []PatternRule) (*Extractor, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Extractor{rules: compiled}, nil
}

var defaultExtractor = sync.OnceValues(func() (*Extractor, error) {
	return NewExtractor(DefaultPatternRules())
})

// DefaultExtractor returns the shared extractor built from
// DefaultPatternRules.
func DefaultExtractor() (*Extractor, error) {
	return defaultExtractor()
}

// ExtractEntities runs the default battery over one chunk.
func ExtractEntities(chunkText, chunkID string) ([]common.Entity, error) {
	ex, err := DefaultExtractor()
	if err != nil {
		return nil, err
	}
	return ex.ExtractEntities(chunkText, chunkID)
}

// ExtractEntities returns one entity per distinct match in chunkText. Matches
// with the same normalized text and type are reported once. A match that
// overlaps text already claimed by an earlier rule is skipped. Blank text
// yields an empty list.
func (e *Extractor) ExtractEntities(chunkText, chunkID string) ([]common.Entity, error) {
	if strings.TrimSpace(chunkText) == "" {
		return []common.Entity{}, nil
	}
	if strings.TrimSpace(chunkID) == "" {
		return nil, validationErrorf("chunk id cannot be empty")
	}

	seen := make(map[string]struct{})
	var claimed [][2]int
	entities := make([]common.Entity, 0)
	for _, rule := range e.rules {
		for _, loc := range rule.re.FindAllStringIndex(chunkText, -1) {
			if overlapsAny(claimed, loc[0], loc[1]) {
				continue
			}
			name, ok := rule.Clean(chunkText[loc[0]:loc[1]])
			if !ok {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			id := EntityID(name, rule.EntityType)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			entities = append(entities, common.Entity{
				ID:           id,
				Name:         name,
				Type:         rule.EntityType,
				Description:  rule.Describe(name),
				Confidence:   PatternConfidence,
				SourceChunks: []string{chunkID},
				Properties: map[string]string{
					"extraction_method": extractionMethodPattern,
					"source_chunk":      chunkID,
				},
			})
		}
	}
	return entities, nil
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// ExtractEntitiesFromChunks runs the default battery over every chunk and
// consolidates the results.
func ExtractEntitiesFromChunks(ctx context.Context, chunks []*common.Chunk) ([]common.Entity, error) {
	ex, err := DefaultExtractor()
	if err != nil {
		return nil, err
	}
	return ex.ExtractEntitiesFromChunks(ctx, chunks)
}

// ExtractEntitiesFromChunks extracts entities from all chunks in parallel and
// folds them in chunk order, so the first mention decides the canonical name.
// The result is sorted by entity ID.
func (e *Extractor) ExtractEntitiesFromChunks(ctx context.Context, chunks []*common.Chunk) ([]common.Entity, error) {
	for i, c := range chunks {
		if c == nil {
			return nil, typeErrorf("chunk %d is nil", i)
		}
	}

	perChunk := make([][]common.Entity, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChunks)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			entities, err := e.ExtractEntities(c.Text, c.ID)
			if err != nil {
				return err
			}
			perChunk[i] = entities
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]common.Entity, 0)
	for _, entities := range perChunk {
		merged = consolidateEntities(merged, entities)
	}
	sortEntities(merged)
	return merged, nil
}

// consolidateEntities folds newEntities into entities. Entities with the same
// ID keep the first name and description, take the highest confidence, union
// their source chunks and merge properties with the first value winning.
func consolidateEntities(entities []common.Entity, newEntities []common.Entity) []common.Entity {
	index := make(map[string]int, len(entities))
	for i := range entities {
		index[entities[i].ID] = i
	}
	for _, entity := range newEntities {
		if i, ok := index[entity.ID]; ok {
			foldEntity(&entities[i], entity)
			continue
		}
		index[entity.ID] = len(entities)
		entities = append(entities, cloneEntity(entity))
	}
	return entities
}

func foldEntity(dst *common.Entity, src common.Entity) {
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

func cloneEntity(e common.Entity) common.Entity {
	out := e
	out.SourceChunks = unionSorted(nil, e.SourceChunks...)
	if e.Properties != nil {
		out.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

func sortEntities(entities []common.Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
}
