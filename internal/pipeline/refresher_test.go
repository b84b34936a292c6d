package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/types"
)

type staticCatalog struct{ err error }

func (c staticCatalog) Catalog(context.Context) (types.Catalog, error) {
	if c.err != nil {
		return types.Catalog{}, c.err
	}
	return types.NewCatalog([]types.Product{{ID: "p1", Name: "One"}}), nil
}

// gatedFetcher blocks each call until its gate is released, so tests can
// control the order in which overlapping fetches land.
type gatedFetcher struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	errs  map[string]error
	calls chan string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: map[string]chan struct{}{}, errs: map[string]error{}, calls: make(chan string, 10)}
}

func (f *gatedFetcher) gate(product string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[product]
	if !ok {
		g = make(chan struct{})
		f.gates[product] = g
	}
	return g
}

func (f *gatedFetcher) Fetch(ctx context.Context, productID, executiveID string) ([]types.Conversation, error) {
	f.calls <- productID
	select {
	case <-f.gate(productID):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	err := f.errs[productID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []types.Conversation{{ID: productID + "-conv", ProductID: productID, ExecutiveID: executiveID}}, nil
}

func TestRefresher_SetScopePublishesReadySnapshot(t *testing.T) {
	f := newGatedFetcher()
	close(f.gate("p1"))
	r := New(f, staticCatalog{}, time.Second, logger.Discard())
	assert.Equal(t, StateLoading, r.Snapshot().State)

	var published []Snapshot
	r.OnUpdate(func(s Snapshot) { published = append(published, s) })

	snap, err := r.SetScope(context.Background(), Scope{ProductID: "p1", ExecutiveID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, uint64(1), snap.Generation)
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, "e1", snap.Conversations[0].ExecutiveID)
	assert.Equal(t, 1, snap.Catalog.Len())
	assert.Equal(t, snap, r.Snapshot())
	assert.Len(t, published, 1)
}

func TestRefresher_StaleResponseIsDiscarded(t *testing.T) {
	f := newGatedFetcher()
	r := New(f, staticCatalog{}, 5*time.Second, logger.Discard())

	var published []Snapshot
	var pubMu sync.Mutex
	r.OnUpdate(func(s Snapshot) {
		pubMu.Lock()
		published = append(published, s)
		pubMu.Unlock()
	})

	slowErr := make(chan error, 1)
	go func() {
		_, err := r.SetScope(context.Background(), Scope{ProductID: "slow"})
		slowErr <- err
	}()
	require.Equal(t, "slow", <-f.calls)

	fastDone := make(chan Snapshot, 1)
	go func() {
		snap, _ := r.SetScope(context.Background(), Scope{ProductID: "fast"})
		fastDone <- snap
	}()
	require.Equal(t, "fast", <-f.calls)

	close(f.gate("fast"))
	fast := <-fastDone
	assert.Equal(t, StateReady, fast.State)

	close(f.gate("slow"))
	assert.ErrorIs(t, <-slowErr, ErrSuperseded)

	snap := r.Snapshot()
	assert.Equal(t, Scope{ProductID: "fast"}, snap.Scope)
	assert.Equal(t, "fast-conv", snap.Conversations[0].ID)

	pubMu.Lock()
	defer pubMu.Unlock()
	require.Len(t, published, 1)
	assert.Equal(t, Scope{ProductID: "fast"}, published[0].Scope)
}

func TestRefresher_SupersededEvenWhenStaleLandsFirst(t *testing.T) {
	f := newGatedFetcher()
	r := New(f, staticCatalog{}, 5*time.Second, logger.Discard())

	slowErr := make(chan error, 1)
	go func() {
		_, err := r.SetScope(context.Background(), Scope{ProductID: "a"})
		slowErr <- err
	}()
	<-f.calls

	newerDone := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background())
		newerDone <- err
	}()
	<-f.calls

	// Both fetches wait on the same gate and may land in either order; only
	// the newer generation publishes.
	close(f.gate("a"))
	errs := []error{<-slowErr, <-newerDone}
	assert.Contains(t, errs, ErrSuperseded)
	assert.Contains(t, errs, nil)
	assert.Equal(t, uint64(2), r.Snapshot().Generation)
}

func TestRefresher_FailureIsDistinctFromEmpty(t *testing.T) {
	f := newGatedFetcher()
	f.errs["p1"] = errors.New("db down")
	close(f.gate("p1"))
	close(f.gate(""))
	r := New(f, staticCatalog{}, time.Second, logger.Discard())

	_, err := r.SetScope(context.Background(), Scope{})
	require.NoError(t, err)
	require.Equal(t, StateReady, r.Snapshot().State)

	snap, err := r.SetScope(context.Background(), Scope{ProductID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, StateFailed, snap.State)
	assert.Nil(t, snap.Conversations)
	assert.Equal(t, 1, snap.Catalog.Len())
	assert.Equal(t, StateFailed, r.Snapshot().State)
}

func TestRefresher_CatalogFailure(t *testing.T) {
	f := newGatedFetcher()
	r := New(f, staticCatalog{err: errors.New("products unavailable")}, time.Second, logger.Discard())

	snap, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Contains(t, snap.Err.Error(), "load products")
}

func TestRefresher_Timeout(t *testing.T) {
	f := newGatedFetcher()
	r := New(f, staticCatalog{}, 20*time.Millisecond, logger.Discard())

	snap, err := r.SetScope(context.Background(), Scope{ProductID: "never"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, snap.State)
}

func TestRefresher_RefreshKeepsScope(t *testing.T) {
	f := newGatedFetcher()
	close(f.gate("p1"))
	r := New(f, staticCatalog{}, time.Second, logger.Discard())

	_, err := r.SetScope(context.Background(), Scope{ProductID: "p1"})
	require.NoError(t, err)

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Scope{ProductID: "p1"}, snap.Scope)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Equal(t, Scope{ProductID: "p1"}, r.Snapshot().Scope)
}
