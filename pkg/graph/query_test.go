package graph

import (
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"github.com/stretchr/testify/require"
)

type queryFixture struct {
	registry *Registry
	john     common.Entity
	jane     common.Entity
	acme     common.Entity
	globex   common.Entity
}

func newQueryFixture(t *testing.T) queryFixture {
	t.Helper()
	f := queryFixture{
		registry: NewRegistry(0),
		john:     fixtureEntity("John Smith", EntityTypePerson, "Chief executive of ACME Corp", "d1c1"),
		jane:     fixtureEntity("Jane Doe", EntityTypePerson, "Engineer", "d1c2"),
		acme:     fixtureEntity("ACME Corp", EntityTypeOrganization, "Manufacturer", "d1c1"),
		globex:   fixtureEntity("Globex Inc", EntityTypeOrganization, "Competitor", "d2c1"),
	}
	mergeDocument(t, f.registry, "doc1",
		[]common.Entity{f.john, f.jane, f.acme},
		[]common.Relationship{fixtureRelationship(f.john, f.acme, RelationLeads, 0.6, "d1c1")},
		"d1c1", "d1c2")
	mergeDocument(t, f.registry, "doc2", []common.Entity{f.globex}, nil, "d2c1")
	return f
}

func resultIDs(res *common.QueryResult) []string {
	ids := make([]string, len(res.Entities))
	for i, e := range res.Entities {
		ids[i] = e.ID
	}
	return ids
}

func TestQueryGraph_ExactName(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("john SMITH", "", DefaultMaxResults)
	require.NoError(t, err)
	require.Equal(t, []string{f.john.ID}, resultIDs(res))
	require.Equal(t, 1.0, res.Entities[0].Score)
	require.Equal(t, 1, res.TotalMatches)
	require.NotNil(t, res.Relationships)
	require.Empty(t, res.Relationships)
	require.Equal(t, "john SMITH", res.Query)
	require.NotEmpty(t, res.Timestamp)
}

func TestQueryGraph_RanksAndCollectsRelationships(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("acme", "", DefaultMaxResults)
	require.NoError(t, err)
	require.Equal(t, []string{f.acme.ID, f.john.ID}, resultIDs(res))
	require.InDelta(t, partialNameWeight, res.Entities[0].Score, 1e-9)
	require.InDelta(t, descriptionWeight, res.Entities[1].Score, 1e-9)
	require.Equal(t, 2, res.TotalMatches)

	require.Len(t, res.Relationships, 1)
	require.Equal(t, f.john.ID, res.Relationships[0].SourceEntityID)
	require.Equal(t, f.acme.ID, res.Relationships[0].TargetEntityID)
	require.Equal(t, RelationLeads, res.Relationships[0].RelationshipType)
}

func TestQueryGraph_Truncates(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("acme", "", 1)
	require.NoError(t, err)
	require.Equal(t, []string{f.acme.ID}, resultIDs(res))
	require.Equal(t, 2, res.TotalMatches)
	require.Empty(t, res.Relationships, "relationships are limited to returned entities")
}

func TestQueryGraph_TypeMatchAndTieBreak(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("Person", "", DefaultMaxResults)
	require.NoError(t, err)
	require.Len(t, res.Entities, 2)
	require.Less(t, res.Entities[0].ID, res.Entities[1].ID, "equal scores are ordered by id")
	for _, e := range res.Entities {
		require.Equal(t, EntityTypePerson, e.Type)
		require.InDelta(t, typeMatchWeight, e.Score, 1e-9)
	}
}

func TestQueryGraph_ScoreIsClamped(t *testing.T) {
	r := NewRegistry(0)
	odd := fixtureEntity("concept", EntityTypeConcept, "concept", "c1")
	mergeDocument(t, r, "doc1", []common.Entity{odd}, nil, "c1")

	res, err := r.QueryGraph("concept", "", DefaultMaxResults)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	require.Equal(t, 1.0, res.Entities[0].Score)
}

func TestQueryGraph_ScopedToDocument(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("globex", "doc1", DefaultMaxResults)
	require.NoError(t, err)
	require.Empty(t, res.Entities)

	res, err = f.registry.QueryGraph("globex", GraphID("doc2"), DefaultMaxResults)
	require.NoError(t, err)
	require.Equal(t, []string{f.globex.ID}, resultIDs(res))
	require.Equal(t, GraphID("doc2"), res.GraphID)

	res, err = f.registry.QueryGraph("globex", "", DefaultMaxResults)
	require.NoError(t, err)
	require.Equal(t, []string{f.globex.ID}, resultIDs(res))
}

func TestQueryGraph_Inputs(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("  \t", "", DefaultMaxResults)
	require.NoError(t, err)
	require.NotNil(t, res.Entities)
	require.Empty(t, res.Entities)
	require.Zero(t, res.TotalMatches)

	res, err = f.registry.QueryGraph("nobody here", "", DefaultMaxResults)
	require.NoError(t, err)
	require.Empty(t, res.Entities)

	_, err = f.registry.QueryGraph("acme", "", 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.registry.QueryGraph("acme", "missing", DefaultMaxResults)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryGraph_ReturnsCopies(t *testing.T) {
	f := newQueryFixture(t)

	res, err := f.registry.QueryGraph("john smith", "", DefaultMaxResults)
	require.NoError(t, err)
	res.Entities[0].SourceChunks[0] = "mutated"

	got, err := f.registry.Entity(f.john.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"d1c1"}, got.SourceChunks)
}
