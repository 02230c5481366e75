package graph

import (
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// Relationship types inferred by the default rule table.
const (
	RelationLeads            = "leads"
	RelationWorksFor         = "works_for"
	RelationFounded          = "founded"
	RelationAssociatedWith   = "associated_with"
	RelationAcquired         = "acquired"
	RelationPartnersWith     = "partners_with"
	RelationCompetesWith     = "competes_with"
	RelationManages          = "manages"
	RelationCollaboratesWith = "collaborates_with"
	RelationKnows            = "knows"
	RelationLocatedIn        = "located_in"
	RelationRelatedTo        = "related_to"
)

// KeywordRule yields Relationship when the context contains any of its
// keywords as whole words. A rule without keywords always matches and acts as
// the default of its rule list.
type KeywordRule struct {
	Relationship string
	Keywords     []string
}

type typePair struct {
	a, b string
}

func makeTypePair(a, b string) typePair {
	a, b = normalizeText(a), normalizeText(b)
	if b < a {
		a, b = b, a
	}
	return typePair{a: a, b: b}
}

// RuleTable is an ordered keyword rule table for relationship type inference.
//
// Lookup order: the rules of the unordered type pair, then the rules
// registered for either participating type (in lexical type order), then the
// fallback. Within a list the first matching rule wins, so more specific rules
// are registered before generic defaults.
type RuleTable struct {
	pairs     map[typePair][]KeywordRule
	involving map[string][]KeywordRule
	fallback  string
}

// NewRuleTable returns an empty table. An empty fallback means unmatched
// pairs are reported as not inferred.
func NewRuleTable(fallback string) *RuleTable {
	return &RuleTable{
		pairs:     make(map[typePair][]KeywordRule),
		involving: make(map[string][]KeywordRule),
		fallback:  fallback,
	}
}

func normalizeRules(rules []KeywordRule) []KeywordRule {
	out := make([]KeywordRule, len(rules))
	for i, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = normalizeText(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		out[i] = KeywordRule{Relationship: r.Relationship, Keywords: keywords}
	}
	return out
}

// AddPairRules appends rules for the unordered pair (typeA, typeB).
func (t *RuleTable) AddPairRules(typeA, typeB string, rules ...KeywordRule) *RuleTable {
	key := makeTypePair(typeA, typeB)
	t.pairs[key] = append(t.pairs[key], normalizeRules(rules)...)
	return t
}

// AddInvolvingRules appends rules that apply to any pair with at least one
// entity of entityType.
func (t *RuleTable) AddInvolvingRules(entityType string, rules ...KeywordRule) *RuleTable {
	key := normalizeText(entityType)
	t.involving[key] = append(t.involving[key], normalizeRules(rules)...)
	return t
}

// DefaultRuleTable returns the built-in inference rules.
func DefaultRuleTable() *RuleTable {
	return NewRuleTable(RelationRelatedTo).
		AddPairRules(EntityTypePerson, EntityTypeOrganization,
			KeywordRule{RelationLeads, []string{"ceo", "leads", "director"}},
			KeywordRule{RelationWorksFor, []string{"works for", "employee", "employed"}},
			KeywordRule{RelationFounded, []string{"founded", "established", "created"}},
			KeywordRule{Relationship: RelationAssociatedWith},
		).
		AddPairRules(EntityTypeOrganization, EntityTypeOrganization,
			KeywordRule{RelationAcquired, []string{"acquired", "bought", "purchased"}},
			KeywordRule{RelationPartnersWith, []string{"partners", "partnership", "collaboration"}},
			KeywordRule{RelationCompetesWith, []string{"competes", "competitor", "rival"}},
			KeywordRule{Relationship: RelationRelatedTo},
		).
		AddPairRules(EntityTypePerson, EntityTypePerson,
			KeywordRule{RelationManages, []string{"manages", "supervises", "reports to"}},
			KeywordRule{RelationCollaboratesWith, []string{"collaborates", "works together", "colleagues"}},
			KeywordRule{Relationship: RelationKnows},
		).
		AddInvolvingRules(EntityTypeLocation,
			KeywordRule{RelationLocatedIn, []string{"located in", "based in", "headquarters"}},
		)
}

var defaultRules = DefaultRuleTable()

func firstMatch(rules []KeywordRule, context string) (string, bool) {
	for _, r := range rules {
		if len(r.Keywords) == 0 {
			return r.Relationship, true
		}
		for _, k := range r.Keywords {
			if containsWord(context, k) {
				return r.Relationship, true
			}
		}
	}
	return "", false
}

func checkEntity(e *common.Entity, position string) error {
	if e == nil {
		return typeErrorf("%s entity is nil", position)
	}
	if strings.TrimSpace(e.Type) == "" {
		return structuralErrorf("%s entity %q has no type", position, e.Name)
	}
	return nil
}

// Infer returns the relationship type between a and b given the surrounding
// context. The result does not depend on argument order.
func (t *RuleTable) Infer(a, b *common.Entity, context string) (string, bool, error) {
	if err := checkEntity(a, "first"); err != nil {
		return "", false, err
	}
	if err := checkEntity(b, "second"); err != nil {
		return "", false, err
	}
	ctx := normalizeText(context)
	if ctx == "" {
		return "", false, validationErrorf("context cannot be empty")
	}
	if a.ID != "" && a.ID == b.ID {
		return "", false, nil
	}

	pair := makeTypePair(a.Type, b.Type)
	if rel, ok := firstMatch(t.pairs[pair], ctx); ok {
		return rel, true, nil
	}
	if rel, ok := firstMatch(t.involving[pair.a], ctx); ok {
		return rel, true, nil
	}
	if pair.b != pair.a {
		if rel, ok := firstMatch(t.involving[pair.b], ctx); ok {
			return rel, true, nil
		}
	}
	if t.fallback == "" {
		return "", false, nil
	}
	return t.fallback, true, nil
}

// InferRelationshipType applies the default rule table.
func InferRelationshipType(a, b *common.Entity, context string) (string, bool, error) {
	return defaultRules.Infer(a, b, context)
}
