package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func readDocument(path string) (*common.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := new(common.Document)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

func readDocuments(paths []string) ([]*common.Document, error) {
	docs := make([]*common.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func publish(docs []*common.Document) error {
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	return publishTo(ch, docs)
}

func publishTo(ch queue.Channel, docs []*common.Document) error {
	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		return err
	}
	for _, doc := range docs {
		id, err := queue.PublishDocument(ch, doc)
		if err != nil {
			return fmt.Errorf("failed to publish document %s: %w", doc.ID, err)
		}
		logger.Info("Queued document", "document_id", doc.ID, "correlation_id", id)
	}
	return nil
}

type localResult struct {
	Graphs        []*common.KnowledgeGraph `json:"graphs"`
	CrossDocument []common.Relationship    `json:"cross_document_relationships"`
	Stats         common.GraphStats        `json:"stats"`
}

func integrateLocal(ctx context.Context, w io.Writer, docs []*common.Document) error {
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		SimilarityThreshold: util.GetEnvFloat("SIMILARITY_THRESHOLD", graph.DefaultSimilarityThreshold),
		ParallelDocuments:   util.GetEnvInt("PARALLEL_DOCUMENTS", 4),
	})
	if err != nil {
		return err
	}
	graphs, err := client.IntegrateDocuments(ctx, docs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(localResult{
		Graphs:        graphs,
		CrossDocument: client.Registry().CrossDocumentRelationships(),
		Stats:         client.Registry().Stats(),
	})
}
