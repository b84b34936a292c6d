// Package pipeline keeps the latest conversation snapshot for the dashboard and
// refreshes it whenever the scope changes or the data does.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/metrics"
	"scorecard-insights-go/internal/types"
)

// ErrSuperseded is returned to the caller of a fetch whose result was dropped
// because a newer fetch had already started.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

type Scope struct {
	ProductID   string `json:"product_id,omitempty"`
	ExecutiveID string `json:"executive_id,omitempty"`
}

type Snapshot struct {
	Generation    uint64               `json:"generation"`
	Scope         Scope                `json:"scope"`
	State         State                `json:"state"`
	Conversations []types.Conversation `json:"-"`
	Catalog       types.Catalog        `json:"-"`
	Err           error                `json:"-"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

type ConversationFetcher interface {
	Fetch(ctx context.Context, productID, executiveID string) ([]types.Conversation, error)
}

type CatalogSource interface {
	Catalog(ctx context.Context) (types.Catalog, error)
}

// Refresher lets fetches overlap; only the most recently started one may
// publish its result.
type Refresher struct {
	convs   ConversationFetcher
	catalog CatalogSource
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	gen   uint64
	scope Scope
	snap  Snapshot
	subs  []func(Snapshot)

	// held while subscribers run so they observe snapshots in generation order
	notifyMu sync.Mutex
}

func New(convs ConversationFetcher, catalog CatalogSource, timeout time.Duration, log *logger.Logger) *Refresher {
	return &Refresher{
		convs:   convs,
		catalog: catalog,
		timeout: timeout,
		log:     log.Component("refresher"),
		now:     time.Now,
		snap:    Snapshot{State: StateLoading},
	}
}

func (r *Refresher) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// OnUpdate registers fn to receive every snapshot that is published. fn runs
// synchronously in publish order and must not call Refresh or SetScope.
func (r *Refresher) OnUpdate(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// SetScope switches to a new product/executive selection and fetches it. The
// published snapshot goes back to loading until the fetch lands. The API
// server loads the unscoped set once at startup and narrows per request;
// embedders that show a single selection call SetScope whenever it changes,
// and a fetch still running for the previous selection is then discarded.
func (r *Refresher) SetScope(ctx context.Context, s Scope) (Snapshot, error) {
	r.mu.Lock()
	r.scope = s
	r.gen++
	gen := r.gen
	r.snap = Snapshot{Generation: gen, Scope: s, State: StateLoading, Catalog: r.snap.Catalog}
	r.mu.Unlock()

	return r.fetch(ctx, gen, s)
}

// Refresh re-fetches the current scope in full. The previous snapshot stays
// visible while the fetch runs.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	r.gen++
	gen, s := r.gen, r.scope
	r.mu.Unlock()

	return r.fetch(ctx, gen, s)
}

type fetchResult struct {
	convs   []types.Conversation
	catalog types.Catalog
	err     error
}

func (r *Refresher) fetch(ctx context.Context, gen uint64, s Scope) (Snapshot, error) {
	log := r.log.WithField("generation", gen).WithField("product_id", s.ProductID).WithField("executive_id", s.ExecutiveID)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resCh := make(chan fetchResult, 1)
	go func() {
		catalog, err := r.catalog.Catalog(ctx)
		if err != nil {
			resCh <- fetchResult{err: fmt.Errorf("load products: %w", err)}
			return
		}
		convs, err := r.convs.Fetch(ctx, s.ProductID, s.ExecutiveID)
		if err != nil {
			resCh <- fetchResult{catalog: catalog, err: fmt.Errorf("load conversations: %w", err)}
			return
		}
		resCh <- fetchResult{convs: convs, catalog: catalog}
	}()

	var res fetchResult
	select {
	case <-ctx.Done():
		res.err = fmt.Errorf("fetch timed out: %w", ctx.Err())
	case res = <-resCh:
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		metrics.SupersededFetches.Inc()
		log.Debug("discarding superseded fetch")
		return Snapshot{}, ErrSuperseded
	}
	snap := Snapshot{Generation: gen, Scope: s, FetchedAt: r.now()}
	if res.err != nil {
		snap.State = StateFailed
		snap.Err = res.err
		// keep the last good catalog so product lists still render
		snap.Catalog = res.catalog
		if snap.Catalog.Len() == 0 {
			snap.Catalog = r.snap.Catalog
		}
	} else {
		snap.State = StateReady
		snap.Conversations = res.convs
		snap.Catalog = res.catalog
	}
	r.snap = snap
	subs := append([]func(Snapshot){}, r.subs...)
	r.notifyMu.Lock()
	r.mu.Unlock()

	metrics.Refreshes.WithLabelValues(string(snap.State)).Inc()
	if res.err != nil {
		log.WithField("error", res.err.Error()).Warn("refresh failed")
	} else {
		log.WithField("conversations", len(snap.Conversations)).Debug("refresh complete")
	}

	for _, fn := range subs {
		fn(snap)
	}
	r.notifyMu.Unlock()
	return snap, res.err
}
