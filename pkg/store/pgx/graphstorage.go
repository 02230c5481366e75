package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

const (
	insertContentSQL = `
INSERT INTO graph_contents (content_id, document_id, graph_id, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (content_id) DO NOTHING`

	upsertDocumentSQL = `
INSERT INTO document_graphs (document_id, graph_id, content_id, entity_count, relationship_count, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (document_id) DO UPDATE SET
	graph_id = EXCLUDED.graph_id,
	content_id = EXCLUDED.content_id,
	entity_count = EXCLUDED.entity_count,
	relationship_count = EXCLUDED.relationship_count,
	updated_at = now()`

	deleteEntitiesSQL = `DELETE FROM graph_entities WHERE graph_id = $1`

	insertEntitySQL = `
INSERT INTO graph_entities (graph_id, entity_id, name, type, description, confidence, source_chunks)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectPayloadSQL = `SELECT payload FROM graph_contents WHERE content_id = $1`

	selectLatestSQL = `SELECT content_id FROM document_graphs ORDER BY document_id`
)

// GraphDBStorage persists document graphs in PostgreSQL. The full graph is
// kept as a jsonb payload addressed by its content ID, and the entities of
// the latest version of every document are kept as rows for ad-hoc queries.
type GraphDBStorage struct {
	conn pgxIConn
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection or pool.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

type entityRow struct {
	entityID     string
	name         string
	entityType   string
	description  string
	confidence   float64
	sourceChunks []string
}

func entityRows(entities []common.Entity) []entityRow {
	rows := make([]entityRow, 0, len(entities))
	for _, e := range entities {
		chunks := make([]string, len(e.SourceChunks))
		for i, c := range e.SourceChunks {
			chunks[i] = util.SanitizePostgresText(c)
		}
		rows = append(rows, entityRow{
			entityID:     e.ID,
			name:         util.SanitizePostgresText(e.Name),
			entityType:   util.SanitizePostgresText(e.Type),
			description:  util.SanitizePostgresText(e.Description),
			confidence:   e.Confidence,
			sourceChunks: chunks,
		})
	}
	return rows
}

// Store writes the graph payload and replaces the document's entity rows in
// one transaction.
func (s *GraphDBStorage) Store(ctx context.Context, kg *common.KnowledgeGraph) (string, error) {
	payload, contentID, err := store.Encode(kg)
	if err != nil {
		return "", util.Permanent(err)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertContentSQL, contentID, kg.DocumentID, kg.GraphID, util.SanitizePostgresJSON(payload)); err != nil {
		return "", fmt.Errorf("failed to insert graph content: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertDocumentSQL, kg.DocumentID, kg.GraphID, contentID,
		kg.Metadata.EntityCount, kg.Metadata.RelationshipCount); err != nil {
		return "", fmt.Errorf("failed to upsert document graph: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteEntitiesSQL, kg.GraphID); err != nil {
		return "", fmt.Errorf("failed to clear entities: %w", err)
	}

	rows := entityRows(kg.Entities)
	if len(rows) > 0 {
		batch := &pgxv5.Batch{}
		for _, r := range rows {
			batch.Queue(insertEntitySQL, kg.GraphID, r.entityID, r.name, r.entityType, r.description, r.confidence, r.sourceChunks)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", fmt.Errorf("failed to insert entities: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit graph %s: %w", kg.GraphID, err)
	}
	logger.Debug("[Store][Postgres] Stored graph", "document_id", kg.DocumentID, "content_id", contentID, "entities", len(rows))
	return contentID, nil
}

func (s *GraphDBStorage) Load(ctx context.Context, contentID string) (*common.KnowledgeGraph, error) {
	var payload []byte
	err := s.conn.QueryRow(ctx, selectPayloadSQL, contentID).Scan(&payload)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", contentID, err)
	}
	return store.Decode(payload, contentID)
}

func (s *GraphDBStorage) Latest(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, selectLatestSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list document graphs: %w", err)
	}
	ids, err := pgxv5.CollectRows(rows, pgxv5.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read document graphs: %w", err)
	}
	return ids, nil
}
