package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/internal/server"
	mid "github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/internal/storage"
	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/logger/console"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"
	pgstore "github.com/OFFIS-RIT/kgraph/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newGraphStore selects the persistence backend from STORE. The pool is nil
// unless the backend is postgres.
func newGraphStore(ctx context.Context) (store.GraphStore, *pgxpool.Pool) {
	switch strings.ToLower(util.GetEnvString("STORE", "memory")) {
	case "s3":
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Unable to create S3 client", "err", err)
		}
		bucket := util.GetEnvString("S3_BUCKET", "kgraph")
		return storage.NewS3GraphStore(client, bucket, util.GetEnvString("S3_PREFIX", "graphs")), nil
	case "postgres":
		databaseURL := util.GetEnv("DATABASE_URL")
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		// Wait for the database to accept connections.
		_, err = util.RetryWithBackoff(ctx, 5, time.Second, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, pool.Ping(ctx)
		})
		if err != nil {
			logger.Fatal("Database is not reachable", "err", err)
		}
		if err := pgstore.Migrate(databaseURL, util.GetEnvString("MIGRATIONS_DIR", "migrations")); err != nil {
			logger.Fatal("Unable to migrate database", "err", err)
		}
		return pgstore.NewGraphDBStorageWithConnection(pool), pool
	default:
		return memory.New(), nil
	}
}

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnvString("LOG_FORMAT", "text"),
	})
	logger.Init(consoleLogger)

	graphStore, pool := newGraphStore(ctx)
	if pool != nil {
		defer pool.Close()
	}

	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		SimilarityThreshold:        util.GetEnvFloat("SIMILARITY_THRESHOLD", graph.DefaultSimilarityThreshold),
		EntityExtractionConfidence: util.GetEnvFloat("ENTITY_EXTRACTION_CONFIDENCE", graph.DefaultEntityExtractionConfidence),
		ParallelDocuments:          util.GetEnvInt("PARALLEL_DOCUMENTS", 4),
		MaxRetries:                 util.GetEnvInt("MAX_RETRIES", 3),
		Store:                      graphStore,
	})
	if err != nil {
		logger.Fatal("Invalid graph configuration", "err", err)
	}
	if util.GetEnvBool("REHYDRATE", true) {
		if _, err := client.Rehydrate(ctx); err != nil {
			logger.Fatal("Failed to rehydrate knowledge graph", "err", err)
		}
	}

	app := &mid.App{
		Graph:        client,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{strings.TrimSuffix(authURL, "/") + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load JWKS", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	}

	if util.GetEnvBool("QUEUE_ENABLED", false) {
		conn := queue.Init()
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
			logger.Fatal("Failed to setup queues", "err", err)
		}
		app.Queue = ch

		var integrator queue.Integrator = client
		if pool != nil {
			integrator = &queue.LeasedIntegrator{
				Integrator: client,
				Leases:     queue.NewDocumentLeases(pool, util.GetEnvDuration("DOCUMENT_LEASE_TTL", time.Minute)),
			}
		}

		go func() {
			if err := queue.Consume(ctx, conn, integrator); err != nil {
				logger.Error("Consumer stopped", "err", err)
			}
		}()
	}

	server.Init(ctx, app)
	logger.Info("Shutdown signal received, exiting...")
}
