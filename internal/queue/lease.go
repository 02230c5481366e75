package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrDocumentBusy means another consumer currently integrates the document.
	ErrDocumentBusy = errors.New("document is held by another consumer")
	// ErrLeaseLost means the lease expired or was taken over while held.
	ErrLeaseLost = errors.New("document lease lost")
)

const (
	defaultLeaseTTL    = time.Minute
	leaseExtendRetries = 3
	leaseExtendBackoff = 200 * time.Millisecond
)

// DocumentLocker runs fn while holding the exclusive lease on a document.
type DocumentLocker interface {
	Hold(ctx context.Context, documentID string, fn func(ctx context.Context) error) error
}

type leaseDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentLeases stores expiring per-document leases in the document_leases
// table. A held lease is extended every half TTL until fn returns.
type DocumentLeases struct {
	db  leaseDB
	ttl time.Duration
}

// NewDocumentLeases returns leases on db. A non-positive ttl selects one
// minute.
func NewDocumentLeases(db leaseDB, ttl time.Duration) *DocumentLeases {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &DocumentLeases{db: db, ttl: ttl}
}

// Hold claims the lease on documentID and runs fn with a context that is
// cancelled if the lease is lost. It returns ErrDocumentBusy without running
// fn when the lease is held elsewhere.
func (d *DocumentLeases) Hold(ctx context.Context, documentID string, fn func(ctx context.Context) error) error {
	if documentID == "" {
		return errors.New("document lease needs a document id")
	}
	holder, err := gonanoid.New()
	if err != nil {
		return err
	}

	var claimed string
	err = d.db.QueryRow(ctx, claimLeaseSQL, documentID, holder, d.ttl.Milliseconds()).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrDocumentBusy, documentID)
	}
	if err != nil {
		return fmt.Errorf("failed to claim lease on %s: %w", documentID, err)
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	extended := make(chan struct{})
	go func() {
		defer close(extended)
		d.keepAlive(leaseCtx, cancel, documentID, holder)
	}()

	err = fn(leaseCtx)
	lost := context.Cause(leaseCtx)
	cancel(context.Canceled)
	<-extended

	if _, relErr := d.db.Exec(context.WithoutCancel(ctx), releaseLeaseSQL, documentID, holder); relErr != nil {
		logger.Warn("[Queue] Failed to release document lease", "document_id", documentID, "err", relErr)
	}

	if err != nil {
		return err
	}
	if errors.Is(lost, ErrLeaseLost) {
		return lost
	}
	return nil
}

func (d *DocumentLeases) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, documentID, holder string) {
	ticker := time.NewTicker(max(d.ttl/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		_, err := util.RetryWithBackoff(ctx, leaseExtendRetries, leaseExtendBackoff, func(ctx context.Context) (string, error) {
			var id string
			err := d.db.QueryRow(ctx, extendLeaseSQL, documentID, holder, d.ttl.Milliseconds()).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				return "", util.Permanent(ErrLeaseLost)
			}
			return id, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[Queue] Document lease lost", "document_id", documentID, "err", err)
			if !errors.Is(err, ErrLeaseLost) {
				err = fmt.Errorf("%w: %w", ErrLeaseLost, err)
			}
			cancel(err)
			return
		}
	}
}

// LeasedIntegrator serializes integrations of the same document across
// consumers. A busy lease fails the delivery, which sends it to the retry
// queue.
type LeasedIntegrator struct {
	Integrator Integrator
	Leases     DocumentLocker
}

func (l *LeasedIntegrator) IntegrateDocument(ctx context.Context, doc *common.Document) (*common.KnowledgeGraph, error) {
	if doc == nil {
		return l.Integrator.IntegrateDocument(ctx, doc)
	}
	var kg *common.KnowledgeGraph
	err := l.Leases.Hold(ctx, doc.ID, func(ctx context.Context) error {
		var err error
		kg, err = l.Integrator.IntegrateDocument(ctx, doc)
		return err
	})
	return kg, err
}

const claimLeaseSQL = `
INSERT INTO document_leases (document_id, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (document_id) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE document_leases.expires_at < now()
RETURNING document_id;
`

const extendLeaseSQL = `
UPDATE document_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE document_id = $1 AND holder = $2
RETURNING document_id;
`

const releaseLeaseSQL = `
DELETE FROM document_leases
WHERE document_id = $1 AND holder = $2;
`
