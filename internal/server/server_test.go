package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	mid "github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

const ceoDocument = `{
	"document_id": "doc1",
	"chunks": [
		{"chunk_id": "c1", "document_id": "doc1", "page_id": "p1", "text": "John Smith is the CEO of ACME Corp."},
		{"chunk_id": "c2", "document_id": "doc1", "page_id": "p1", "text": "ACME Corp is based in Springfield, IL."}
	]
}`

func newTestServer(t *testing.T, configure func(app *mid.App)) (*echo.Echo, *mid.App) {
	t.Helper()
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{})
	require.NoError(t, err)
	app := &mid.App{Graph: client}
	if configure != nil {
		configure(app)
	}
	return New(app), app
}

func do(e *echo.Echo, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec := do(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestDocumentLifecycle(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := do(e, http.MethodPost, "/api/documents", ceoDocument)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	kg := decode[common.KnowledgeGraph](t, rec)
	require.Equal(t, "doc1", kg.DocumentID)
	require.Len(t, kg.Entities, 3)
	require.NotEmpty(t, kg.ContentID)

	rec = do(e, http.MethodGet, "/api/query?q=acme+corp&max_results=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[common.QueryResult](t, rec)
	require.Equal(t, graph.EntityID("ACME Corp", graph.EntityTypeOrganization), res.Entities[0].ID)

	john := graph.EntityID("John Smith", graph.EntityTypePerson)
	rec = do(e, http.MethodGet, "/api/entities/"+john+"/neighborhood?depth=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	n := decode[common.Neighborhood](t, rec)
	require.Equal(t, 3, n.NodeCount)
	require.Equal(t, 3, n.EdgeCount)

	rec = do(e, http.MethodGet, "/api/graphs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]common.DocumentSummary](t, rec), 1)

	rec = do(e, http.MethodGet, "/api/graphs/"+graph.GraphID("doc1"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, common.GraphStats{Documents: 1, Entities: 3, Edges: 3}, decode[common.GraphStats](t, rec))

	rec = do(e, http.MethodGet, "/api/cross-document", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]common.Relationship](t, rec))
}

func TestErrorMapping(t *testing.T) {
	e, _ := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/documents", ceoDocument).Code)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{name: "non-integer max results", method: http.MethodGet, target: "/api/query?q=acme&max_results=ten", want: http.StatusBadRequest},
		{name: "zero max results", method: http.MethodGet, target: "/api/query?q=acme&max_results=0", want: http.StatusBadRequest},
		{name: "unknown graph", method: http.MethodGet, target: "/api/query?q=acme&graph_id=missing", want: http.StatusNotFound},
		{name: "non-integer depth", method: http.MethodGet, target: "/api/entities/ent_x/neighborhood?depth=deep", want: http.StatusBadRequest},
		{name: "negative depth", method: http.MethodGet, target: "/api/entities/ent_x/neighborhood?depth=-1", want: http.StatusBadRequest},
		{name: "unknown entity", method: http.MethodGet, target: "/api/entities/ent_x/neighborhood", want: http.StatusNotFound},
		{name: "unknown document graph", method: http.MethodGet, target: "/api/graphs/missing", want: http.StatusNotFound},
		{name: "missing document id", method: http.MethodPost, target: "/api/documents", body: `{"chunks": []}`, want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, target: "/api/documents", body: `{"document_id": 5`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.method, tt.target, tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

type failingStore struct{}

func (failingStore) Store(context.Context, *common.KnowledgeGraph) (string, error) {
	return "", errors.New("disk full")
}

func TestStoreFailureIsInternal(t *testing.T) {
	e, _ := newTestServer(t, func(app *mid.App) {
		client, err := graph.NewGraphClient(graph.NewGraphClientParams{Store: failingStore{}, MaxRetries: 1})
		require.NoError(t, err)
		app.Graph = client
	})

	rec := do(e, http.MethodPost, "/api/documents", ceoDocument)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "disk full")
}

type recordingChannel struct {
	keys []string
}

func (r *recordingChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (r *recordingChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	r.keys = append(r.keys, key)
	return nil
}

func TestQueuedDocument(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec := do(e, http.MethodPost, "/api/documents/queue", ceoDocument)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ch := &recordingChannel{}
	e, _ = newTestServer(t, func(app *mid.App) { app.Queue = ch })
	rec = do(e, http.MethodPost, "/api/documents/queue", ceoDocument)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{queue.IngestQueue}, ch.keys)

	body := decode[map[string]string](t, rec)
	require.Equal(t, "doc1", body["document_id"])
	require.NotEmpty(t, body["correlation_id"])
}

func TestAuth(t *testing.T) {
	secret := []byte("test-secret")
	e, _ := newTestServer(t, func(app *mid.App) {
		app.MasterAPIKey = "master-key"
		app.Keyfunc = func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		}
	})

	readerToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":          "7",
		"permissions": []string{mid.PermissionGraphRead},
	}).SignedString(secret)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/stats", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/stats", "", "Authorization", "Bearer nonsense").Code)

	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/stats", "", "Authorization", "Bearer "+readerToken).Code)
	require.Equal(t, http.StatusForbidden,
		do(e, http.MethodPost, "/api/documents", ceoDocument, "Authorization", "Bearer "+readerToken).Code)

	require.Equal(t, http.StatusCreated,
		do(e, http.MethodPost, "/api/documents", ceoDocument, "Authorization", "Bearer master-key").Code)
}
