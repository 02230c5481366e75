package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type leaseRow struct {
	id  string
	err error
}

func (r leaseRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.id
	return nil
}

// fakeLeaseDB keeps lease holders in memory and never expires them.
type fakeLeaseDB struct {
	mu      sync.Mutex
	holders map[string]string
	extends int
}

func newFakeLeaseDB() *fakeLeaseDB {
	return &fakeLeaseDB{holders: map[string]string{}}
}

func (f *fakeLeaseDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, holder := args[0].(string), args[1].(string)
	current, held := f.holders[id]

	switch sql {
	case claimLeaseSQL:
		if held {
			return leaseRow{err: pgx.ErrNoRows}
		}
		f.holders[id] = holder
		return leaseRow{id: id}
	case extendLeaseSQL:
		f.extends++
		if current != holder {
			return leaseRow{err: pgx.ErrNoRows}
		}
		return leaseRow{id: id}
	}
	return leaseRow{err: errors.New("unexpected query")}
}

func (f *fakeLeaseDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, holder := args[0].(string), args[1].(string)
	if sql == releaseLeaseSQL && f.holders[id] == holder {
		delete(f.holders, id)
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeLeaseDB) held(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.holders[id]
	return ok
}

func (f *fakeLeaseDB) takeOver(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holders[id] = "other-consumer"
}

func TestDocumentLeases_HoldReleases(t *testing.T) {
	db := newFakeLeaseDB()
	leases := NewDocumentLeases(db, time.Minute)

	ran := false
	err := leases.Hold(context.Background(), "doc1", func(ctx context.Context) error {
		ran = true
		require.True(t, db.held("doc1"))
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, db.held("doc1"))
}

func TestDocumentLeases_ReleasesOnError(t *testing.T) {
	db := newFakeLeaseDB()
	leases := NewDocumentLeases(db, time.Minute)

	boom := errors.New("integration failed")
	err := leases.Hold(context.Background(), "doc1", func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, db.held("doc1"))
}

func TestDocumentLeases_Busy(t *testing.T) {
	db := newFakeLeaseDB()
	leases := NewDocumentLeases(db, time.Minute)

	err := leases.Hold(context.Background(), "doc1", func(ctx context.Context) error {
		return leases.Hold(ctx, "doc1", func(context.Context) error {
			t.Fatal("must not run while the lease is held")
			return nil
		})
	})
	require.ErrorIs(t, err, ErrDocumentBusy)
	require.False(t, db.held("doc1"))

	require.NoError(t, leases.Hold(context.Background(), "doc2", func(context.Context) error { return nil }))
}

func TestDocumentLeases_Extends(t *testing.T) {
	db := newFakeLeaseDB()
	leases := NewDocumentLeases(db, 20*time.Millisecond)

	err := leases.Hold(context.Background(), "doc1", func(ctx context.Context) error {
		require.Eventually(t, func() bool {
			db.mu.Lock()
			defer db.mu.Unlock()
			return db.extends >= 2
		}, time.Second, 5*time.Millisecond)
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestDocumentLeases_LostLeaseCancels(t *testing.T) {
	db := newFakeLeaseDB()
	leases := NewDocumentLeases(db, 20*time.Millisecond)

	err := leases.Hold(context.Background(), "doc1", func(ctx context.Context) error {
		db.takeOver("doc1")
		<-ctx.Done()
		return nil
	})
	require.ErrorIs(t, err, ErrLeaseLost)
	require.True(t, db.held("doc1"), "the new holder keeps its lease")
}

func TestDocumentLeases_RequiresDocumentID(t *testing.T) {
	err := NewDocumentLeases(newFakeLeaseDB(), 0).Hold(context.Background(), "", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestLeasedIntegrator_ContendedDocumentIsRetried(t *testing.T) {
	db := newFakeLeaseDB()
	db.takeOver("doc1")

	ch := newFakeChannel()
	ack := &fakeAcknowledger{}
	inner := &fakeIntegrator{}
	li := &LeasedIntegrator{Integrator: inner, Leases: NewDocumentLeases(db, time.Minute)}

	HandleDelivery(context.Background(), ch, li, delivery(t, ack, nil), IngestQueue)

	require.Empty(t, inner.docs)
	require.Len(t, ch.published, 1)
	require.Equal(t, "ingest_queue_retry", ch.published[0].key)

	_, err := li.IntegrateDocument(context.Background(), &common.Document{ID: "doc2"})
	require.NoError(t, err)
	require.Equal(t, []string{"doc2"}, inner.docs)
}
