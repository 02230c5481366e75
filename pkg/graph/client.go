package graph

import (
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"
)

// DefaultEntityExtractionConfidence is the minimum confidence an extracted
// entity needs to enter a document graph.
const DefaultEntityExtractionConfidence = 0.6

// GraphClient is the entry point of the knowledge-graph core. It owns the
// global registry, runs the extraction pipeline per document and serves the
// read operations.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	registry          *Registry
	extractor         *Extractor
	rules             *RuleTable
	store             store.GraphStore
	entityConfidence  float64
	parallelDocuments int
	maxRetries        int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// SimilarityThreshold is the minimum score of a cross-document relationship.
// EntityExtractionConfidence filters extracted entities before graph building.
// ParallelDocuments bounds IntegrateDocuments.
// MaxRetries bounds the attempts of the store call.
// Store receives every built graph; it defaults to an in-memory store.
// PatternRules and Rules replace the built-in extraction and inference rules.
type NewGraphClientParams struct {
	SimilarityThreshold        float64
	EntityExtractionConfidence float64
	ParallelDocuments          int
	MaxRetries                 int
	Store                      store.GraphStore
	PatternRules               []PatternRule
	Rules                      *RuleTable
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters. Zero values select the defaults.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		SimilarityThreshold: 0.8,
//		ParallelDocuments:   4,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.SimilarityThreshold < 0 || params.SimilarityThreshold > 1 {
		return nil, validationErrorf("similarity threshold must be within [0, 1], got %v", params.SimilarityThreshold)
	}
	if params.EntityExtractionConfidence < 0 || params.EntityExtractionConfidence > 1 {
		return nil, validationErrorf("entity extraction confidence must be within [0, 1], got %v", params.EntityExtractionConfidence)
	}

	threshold := params.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}
	confidence := params.EntityExtractionConfidence
	if confidence == 0 {
		confidence = DefaultEntityExtractionConfidence
	}
	parallel := params.ParallelDocuments
	if parallel <= 0 {
		parallel = 1
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var extractor *Extractor
	var err error
	if params.PatternRules != nil {
		extractor, err = NewExtractor(params.PatternRules)
	} else {
		extractor, err = DefaultExtractor()
	}
	if err != nil {
		return nil, err
	}

	rules := params.Rules
	if rules == nil {
		rules = defaultRules
	}
	graphStore := params.Store
	if graphStore == nil {
		graphStore = memory.New()
	}

	return &GraphClient{
		registry:          NewRegistry(threshold),
		extractor:         extractor,
		rules:             rules,
		store:             graphStore,
		entityConfidence:  confidence,
		parallelDocuments: parallel,
		maxRetries:        maxRetries,
	}, nil
}

// Registry returns the global registry for introspection.
func (g *GraphClient) Registry() *Registry {
	return g.registry
}

// QueryGraph searches the global graph, or one document graph when graphID is
// set.
func (g *GraphClient) QueryGraph(query, graphID string, maxResults int) (*common.QueryResult, error) {
	return g.registry.QueryGraph(query, graphID, maxResults)
}

// GetEntityNeighborhood returns the neighborhood of an entity in the global
// graph.
func (g *GraphClient) GetEntityNeighborhood(entityID string, depth int) (*common.Neighborhood, error) {
	return g.registry.GetEntityNeighborhood(entityID, depth)
}
