package graph

import (
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"github.com/stretchr/testify/require"
)

func mergeDocument(t *testing.T, r *Registry, documentID string, entities []common.Entity, relationships []common.Relationship, chunks ...string) []common.Relationship {
	t.Helper()
	kg, dg := mustBuild(t, documentID, entities, relationships, chunks...)
	cross, err := r.Merge(kg, dg)
	require.NoError(t, err)
	return cross
}

func TestMerge_FoldsSharedEntities(t *testing.T) {
	r := NewRegistry(0)
	acme1 := fixtureEntity("ACME Corp", EntityTypeOrganization, "organization: ACME Corp", "d1c1")
	acme2 := fixtureEntity("ACME Corp", EntityTypeOrganization, "", "d2c1")
	acme2.Confidence = 0.95

	mergeDocument(t, r, "doc1", []common.Entity{acme1}, nil, "d1c1")
	mergeDocument(t, r, "doc2", []common.Entity{acme2}, nil, "d2c1")

	stats := r.Stats()
	require.Equal(t, 2, stats.Documents)
	require.Equal(t, 1, stats.Entities)
	require.Zero(t, stats.CrossDocumentRelationships)

	got, err := r.Entity(acme1.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"d1c1", "d2c1"}, got.SourceChunks)
	require.Equal(t, 0.95, got.Confidence)
	require.Equal(t, "organization: ACME Corp", got.Description)
	require.Equal(t, "doc1", r.DocumentForEntity(&got))

	n, err := r.GetEntityNeighborhood(acme1.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"doc1", "doc2"}, n.Nodes[0].Documents)
}

func TestMerge_ReplacesDocumentGraph(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "c1")
	jane := fixtureEntity("Jane Doe", EntityTypePerson, "", "c2")

	mergeDocument(t, r, "doc1", []common.Entity{john}, nil, "c1")
	mergeDocument(t, r, "doc1", []common.Entity{jane}, nil, "c2")

	docs := r.Documents()
	require.Len(t, docs, 1)
	require.Equal(t, 1, docs[0].EntityCount)

	kg, err := r.DocumentGraph("doc1")
	require.NoError(t, err)
	require.Equal(t, jane.ID, kg.Entities[0].ID)

	byGraphID, err := r.DocumentGraph(GraphID("doc1"))
	require.NoError(t, err)
	require.Equal(t, kg, byGraphID)

	require.Equal(t, 2, r.Stats().Entities, "global entities are never removed")
}

func TestMerge_EdgeAttributesFollowConfidence(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "c1")
	acme := fixtureEntity("ACME Corp", EntityTypeOrganization, "", "c1")

	worksFor := fixtureRelationship(john, acme, RelationWorksFor, 0.5, "c1")
	leads := fixtureRelationship(john, acme, RelationLeads, 0.6, "c2")
	tie := fixtureRelationship(john, acme, RelationFounded, 0.6, "c3")

	mergeDocument(t, r, "doc1", []common.Entity{john, acme}, []common.Relationship{worksFor})
	mergeDocument(t, r, "doc2", []common.Entity{john, acme}, []common.Relationship{leads})
	mergeDocument(t, r, "doc3", []common.Entity{john, acme}, []common.Relationship{tie})

	require.Equal(t, 1, r.Stats().Edges)
	n, err := r.GetEntityNeighborhood(john.ID, 1)
	require.NoError(t, err)
	require.Len(t, n.Edges, 1)
	require.Equal(t, RelationLeads, n.Edges[0].RelationshipType, "a tie keeps the existing attributes")
	require.Equal(t, 0.6, n.Edges[0].Confidence)
	require.Equal(t, []string{"c1", "c2", "c3"}, n.Edges[0].SourceChunks)
}

func TestMerge_DiscoversCrossDocumentRelationships(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "d1c1")
	drJohn := fixtureEntity("Dr. John Smith", EntityTypePerson, "", "d2c1")

	cross := mergeDocument(t, r, "doc1", []common.Entity{john}, nil, "d1c1")
	require.Empty(t, cross)

	cross = mergeDocument(t, r, "doc2", []common.Entity{drJohn}, nil, "d2c1")
	require.Len(t, cross, 1)

	rel := cross[0]
	require.Equal(t, drJohn.ID, rel.SourceEntityID)
	require.Equal(t, john.ID, rel.TargetEntityID)
	require.Equal(t, RelationRelatedTo, rel.RelationshipType)
	require.Equal(t, 1.0, rel.Confidence)
	require.Equal(t, []string{"d1c1", "d2c1"}, rel.SourceChunks)
	require.Equal(t, map[string]string{
		"extraction_method": "cross_document_similarity",
		"similarity_score":  "1.0000",
		"source_document":   "doc2",
		"target_document":   "doc1",
	}, rel.Properties)

	n, err := r.GetEntityNeighborhood(john.ID, 1)
	require.NoError(t, err)
	require.Len(t, n.Edges, 1)
	require.True(t, n.Edges[0].CrossDocument)

	again := mergeDocument(t, r, "doc2", []common.Entity{drJohn}, nil, "d2c1")
	require.Empty(t, again)
	require.Len(t, r.CrossDocumentRelationships(), 1)
}

func TestMerge_DoesNotLinkEntitiesOfTheSameDocument(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "c1")
	drJohn := fixtureEntity("Dr. John Smith", EntityTypePerson, "", "c1")

	cross := mergeDocument(t, r, "doc1", []common.Entity{john, drJohn}, nil, "c1")
	require.Empty(t, cross)
	require.Zero(t, r.Stats().Edges)
}

func TestMerge_FullScanBelowNameWeight(t *testing.T) {
	jane := fixtureEntity("Jane Doe", EntityTypePerson, "Engineer at the Springfield plant", "d1c1")
	john := fixtureEntity("John Smith", EntityTypePerson, "Manager at the Springfield plant", "d2c1")
	require.InDelta(t, 0.2, Similarity(&jane, &john), 1e-9)

	strict := NewRegistry(0)
	mergeDocument(t, strict, "doc1", []common.Entity{jane}, nil, "d1c1")
	require.Empty(t, mergeDocument(t, strict, "doc2", []common.Entity{john}, nil, "d2c1"))

	loose := NewRegistry(0.15)
	mergeDocument(t, loose, "doc1", []common.Entity{jane}, nil, "d1c1")
	cross := mergeDocument(t, loose, "doc2", []common.Entity{john}, nil, "d2c1")
	require.Len(t, cross, 1)
	require.Equal(t, "0.2000", cross[0].Properties["similarity_score"])
}

func TestMerge_SeparateMergeAndDiscovery(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "d1c1")
	drJohn := fixtureEntity("Dr. John Smith", EntityTypePerson, "", "d2c1")

	kg1, _ := mustBuild(t, "doc1", []common.Entity{john}, nil, "d1c1")
	kg2, _ := mustBuild(t, "doc2", []common.Entity{drJohn}, nil, "d2c1")

	_, err := r.MergeIntoGlobal(kg1)
	require.NoError(t, err)
	ids, err := r.MergeIntoGlobal(kg2)
	require.NoError(t, err)
	require.Equal(t, []string{drJohn.ID}, ids)
	require.Empty(t, r.CrossDocumentRelationships())

	found := r.DiscoverCrossDocumentRelationships("doc2", ids)
	require.Len(t, found, 1)
	require.Len(t, r.CrossDocumentRelationships(), 1)

	require.Empty(t, r.DiscoverCrossDocumentRelationships("doc1", []string{john.ID}),
		"the reverse pair is already linked")
}

func TestMerge_ValidationLeavesStateUnchanged(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "c1")
	acme := fixtureEntity("ACME Corp", EntityTypeOrganization, "", "c1")

	_, err := r.Merge(nil, nil)
	require.ErrorIs(t, err, ErrType)

	kg, _ := mustBuild(t, "doc1", []common.Entity{john, acme},
		[]common.Relationship{fixtureRelationship(john, acme, RelationLeads, 0.6, "c1")})

	noDoc := cloneGraph(kg)
	noDoc.DocumentID = ""
	_, err = r.Merge(noDoc, nil)
	require.ErrorIs(t, err, ErrValidation)

	dangling := cloneGraph(kg)
	dangling.Entities = dangling.Entities[:1]
	_, err = r.Merge(dangling, nil)
	require.ErrorIs(t, err, ErrStructural)

	noChunks := cloneGraph(kg)
	noChunks.Relationships[0].SourceChunks = nil
	_, err = r.Merge(noChunks, nil)
	require.ErrorIs(t, err, ErrStructural)

	untyped := cloneGraph(kg)
	untyped.Entities[0].Type = ""
	_, err = r.Merge(untyped, nil)
	require.ErrorIs(t, err, ErrStructural)

	require.Equal(t, common.GraphStats{}, r.Stats())
	require.Empty(t, r.Documents())

	_, err = r.Merge(kg, nil)
	require.NoError(t, err, "a missing digraph is rebuilt")
	require.Equal(t, 1, r.Stats().Edges)
}

func TestDocumentForEntity(t *testing.T) {
	r := NewRegistry(0)
	john := fixtureEntity("John Smith", EntityTypePerson, "", "c1")
	mergeDocument(t, r, "doc1", []common.Entity{john}, nil, "c1")

	require.Equal(t, "doc1", r.DocumentForEntity(&john))
	require.Equal(t, UnknownDocument, r.DocumentForEntity(&common.Entity{SourceChunks: []string{}}))
	require.Equal(t, UnknownDocument, r.DocumentForEntity(&common.Entity{SourceChunks: []string{"elsewhere"}}))
	require.Equal(t, UnknownDocument, r.DocumentForEntity(nil))
}

func TestSimilarity(t *testing.T) {
	a := fixtureEntity("John Smith", EntityTypePerson, "", "c1")
	b := fixtureEntity("Dr. John Smith", EntityTypePerson, "", "c2")
	c := fixtureEntity("ACME Corp", EntityTypeOrganization, "", "c3")

	require.Equal(t, 1.0, Similarity(&a, &b))
	require.Equal(t, Similarity(&a, &b), Similarity(&b, &a))
	require.Zero(t, Similarity(&a, &c))
	require.Zero(t, Similarity(&a, nil))
}

func TestSimilarity_RequiresMatchingTypes(t *testing.T) {
	person := fixtureEntity("Lincoln Park", EntityTypePerson, "", "c1")
	place := fixtureEntity("Lincoln Park", EntityTypeLocation, "", "c2")

	require.Zero(t, Similarity(&person, &place))
}

func TestSimilarity_DatesCompareTokensInOrder(t *testing.T) {
	mayFirst := fixtureEntity("05/01/2024", EntityTypeDate, "Date reference: 05/01/2024", "c1")
	janFifth := fixtureEntity("01/05/2024", EntityTypeDate, "Date reference: 01/05/2024", "c2")
	same := fixtureEntity("05/01/2024", EntityTypeDate, "Date reference: 05/01/2024", "c3")

	// one of three name tokens and three of five description tokens line up
	require.InDelta(t, 0.75/3+0.25*0.6, Similarity(&mayFirst, &janFifth), 1e-9)
	require.Equal(t, 1.0, Similarity(&mayFirst, &same))

	five := fixtureEntity("$5 million", EntityTypeCurrency, "", "c4")
	million := fixtureEntity("million $5", EntityTypeCurrency, "", "c5")
	require.Zero(t, Similarity(&five, &million))
}

func TestMerge_SwappedDatesAreNotLinked(t *testing.T) {
	r := NewRegistry(DefaultSimilarityThreshold)
	mayFirst := fixtureEntity("05/01/2024", EntityTypeDate, "Date reference: 05/01/2024", "d1c1")
	janFifth := fixtureEntity("01/05/2024", EntityTypeDate, "Date reference: 01/05/2024", "d2c1")

	mergeDocument(t, r, "doc1", []common.Entity{mayFirst}, nil, "d1c1")
	cross := mergeDocument(t, r, "doc2", []common.Entity{janFifth}, nil, "d2c1")

	require.Empty(t, cross)
	require.Zero(t, r.Stats().CrossDocumentRelationships)
}
