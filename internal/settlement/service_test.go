package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/fees"
	"github.com/odyssey-erp/obligations/internal/ledger"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

type stubLedger struct {
	mu          sync.Mutex
	result      ledger.Result
	err         error
	invalidated int
	gotAsOf     time.Time
	gotFilter   obligations.Filter
}

func (s *stubLedger) Ledger(_ context.Context, asOf time.Time, filter obligations.Filter) (ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotAsOf, s.gotFilter = asOf, filter
	return s.result, s.err
}

func (s *stubLedger) Invalidate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
	return nil
}

type memArchive struct {
	mu    sync.Mutex
	saved map[string][]Summary
}

func (a *memArchive) Save(_ context.Context, txID string, receipts []Summary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = make(map[string][]Summary)
	}
	a.saved[txID] = receipts
	return nil
}

func newService(store clients.Store, led Ledger, archive Archiver, reg prometheus.Registerer) *Service {
	return NewService(store, led, Config{
		Archive:    archive,
		Registerer: reg,
		Now:        func() time.Time { return paidNow },
		NewTxID:    func() string { return "TX-0000BEEF" },
	})
}

func TestServiceSettleCommitsBatch(t *testing.T) {
	store := clients.NewMemoryStore(fixture())
	led := &stubLedger{result: ledger.Result{Receivable: lines()}}
	archive := &memArchive{}
	reg := prometheus.NewRegistry()
	svc := newService(store, led, archive, reg)

	res, err := svc.Settle(context.Background(), Request{
		AsOf:   asOf,
		Filter: obligations.Filter(obligations.Mensual),
		Keys:   []string{"C1-2024-02", "C2-2024-02"},
	})
	require.NoError(t, err)
	require.Equal(t, "TX-0000BEEF", res.TransactionID)
	require.Equal(t, asOf, led.gotAsOf)
	require.Equal(t, obligations.Filter(obligations.Mensual), led.gotFilter)
	require.Equal(t, 1, led.invalidated)
	require.Len(t, archive.saved["TX-0000BEEF"], 2)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	c2, _ := clients.Find(snap, "C2")
	decl, ok := c2.Declaration("2024-02")
	require.True(t, ok)
	require.Equal(t, clients.StatusPagada, decl.Status)
	require.Equal(t, "TX-0000BEEF", decl.TransactionID)

	require.Equal(t, float64(1), testutil.ToFloat64(svc.batches.WithLabelValues("settled")))
	require.InDelta(t, 35.5, testutil.ToFloat64(svc.amount), 0.001)
}

func TestServiceSettleLeavesStoreUntouchedWhenNothingResolves(t *testing.T) {
	store := clients.NewMemoryStore(fixture())
	led := &stubLedger{result: ledger.Result{Receivable: lines()}}
	archive := &memArchive{}
	svc := newService(store, led, archive, nil)

	before, err := store.Snapshot(context.Background())
	require.NoError(t, err)

	_, err = svc.Settle(context.Background(), Request{AsOf: asOf, Keys: []string{"missing"}})
	require.ErrorIs(t, err, ErrNothingSettled)

	after, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, led.invalidated)
	require.Empty(t, archive.saved)
}

func TestServiceSettleEmptySelection(t *testing.T) {
	svc := newService(clients.NewMemoryStore(fixture()), &stubLedger{}, nil, nil)
	_, err := svc.Settle(context.Background(), Request{AsOf: asOf})
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestServiceSettleLedgerError(t *testing.T) {
	svc := newService(clients.NewMemoryStore(fixture()), &stubLedger{err: errors.New("redis down")}, nil, nil)
	_, err := svc.Settle(context.Background(), Request{AsOf: asOf, Keys: []string{"C1-2024-02"}})
	require.ErrorContains(t, err, "redis down")
}

func TestServiceSettleAgainstRealLedger(t *testing.T) {
	store := clients.NewMemoryStore(fixture())
	engine := ledger.NewEngine(obligations.NewSRICalendar(), fees.Table{Default: dec("20")})
	ledgerSvc := ledger.NewService(store, engine, ledger.ServiceConfig{})
	svc := newService(store, ledgerSvc, nil, nil)
	ctx := context.Background()

	view, err := ledgerSvc.Ledger(ctx, asOf, "")
	require.NoError(t, err)
	_, bucket, ok := view.Find("C1-2024-02")
	require.True(t, ok)
	require.Equal(t, ledger.BucketReceivable, bucket)

	res, err := svc.Settle(ctx, Request{AsOf: asOf, Keys: []string{"C1-2024-02"}})
	require.NoError(t, err)
	require.True(t, res.TotalPaid.Equal(dec("20")))

	// Paid within the month of asOf, so the line moves to collected.
	view, err = ledgerSvc.Ledger(ctx, asOf, "")
	require.NoError(t, err)
	_, bucket, ok = view.Find("C1-2024-02")
	require.True(t, ok)
	require.Equal(t, ledger.BucketCollected, bucket)
}

func TestServiceSettleTwiceKeepsFirstTransaction(t *testing.T) {
	store := clients.NewMemoryStore(fixture())
	engine := ledger.NewEngine(obligations.NewSRICalendar(), fees.Table{Default: dec("20")})
	ledgerSvc := ledger.NewService(store, engine, ledger.ServiceConfig{})
	ids := []string{"TX-AAAA0001", "TX-BBBB0002"}
	nextID := func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	svc := NewService(store, ledgerSvc, Config{Now: func() time.Time { return paidNow }, NewTxID: nextID})
	ctx := context.Background()
	req := Request{AsOf: asOf, Keys: []string{"C1-2024-02"}}

	first, err := svc.Settle(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "TX-AAAA0001", first.TransactionID)

	_, err = svc.Settle(ctx, req)
	require.ErrorIs(t, err, ErrNothingSettled)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	c1, _ := clients.Find(snap, "C1")
	decl, ok := c1.Declaration("2024-02")
	require.True(t, ok)
	require.Equal(t, "TX-AAAA0001", decl.TransactionID)
}

func TestServiceConcurrentBatchesDoNotLoseUpdates(t *testing.T) {
	store := clients.NewMemoryStore(fixture())
	led := &stubLedger{result: ledger.Result{Receivable: lines()}}
	svc := NewService(store, led, Config{Now: func() time.Time { return paidNow }})

	var wg sync.WaitGroup
	for _, key := range []string{"C1-2024-01", "C1-2024-02", "C2-2024-02"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, err := svc.Settle(context.Background(), Request{AsOf: asOf, Keys: []string{k}})
			assert.NoError(t, err)
		}(key)
	}
	wg.Wait()

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	paid := 0
	for _, c := range snap {
		for _, d := range c.Declarations {
			if d.Status == clients.StatusPagada {
				paid++
			}
		}
	}
	require.Equal(t, 3, paid)
}
