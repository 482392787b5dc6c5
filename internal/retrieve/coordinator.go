package retrieve

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vporoshin/evisearch/internal/model"
	"github.com/vporoshin/evisearch/internal/providers"
)

// Coordinator fans a query out to all eligible adapters concurrently and
// returns whatever came back within budget. One slow or failing source never
// fails the whole query: it just contributes an empty list.
type Coordinator struct {
	adapters map[model.SourceKind]providers.Adapter
	cfg      model.RetrievalConfig
	log      *zap.Logger
}

// New creates a coordinator over the given adapters
func New(adapters []providers.Adapter, cfg model.RetrievalConfig, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	byKind := make(map[model.SourceKind]providers.Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	return &Coordinator{adapters: byKind, cfg: cfg, log: log}
}

// Retrieve runs every adapter the query context routes to. The returned map
// has one entry per eligible source; sources that timed out or errored map to
// an empty list.
func (c *Coordinator) Retrieve(ctx context.Context, qctx model.QueryContext) map[model.SourceKind][]model.RawDocument {
	var kinds []model.SourceKind
	for kind := range c.adapters {
		if qctx.ShouldCall(kind) {
			kinds = append(kinds, kind)
		}
	}
	return c.RetrieveKinds(ctx, qctx, qctx.Variants, kinds)
}

// RetrieveKinds fans out to the named sources only. The supplementary round
// uses it to re-query just the web provider.
func (c *Coordinator) RetrieveKinds(ctx context.Context, qctx model.QueryContext, variants []string, kinds []model.SourceKind) map[model.SourceKind][]model.RawDocument {
	out := make(map[model.SourceKind][]model.RawDocument, len(kinds))
	var mu sync.Mutex

	// Every eligible source gets an entry even if its task never settles
	for _, kind := range kinds {
		out[kind] = nil
	}

	overallCtx, cancel := context.WithTimeout(ctx, c.overallTimeout())
	defer cancel()

	g, gctx := errgroup.WithContext(overallCtx)
	for _, kind := range kinds {
		kind := kind
		adapter, ok := c.adapters[kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			start := time.Now()

			// Each adapter gets its own deadline, shorter than the
			// overall one, so a hung source degrades alone.
			actx, acancel := context.WithTimeout(gctx, c.adapterTimeout())
			defer acancel()

			docs := adapter.Search(actx, variants, qctx)

			mu.Lock()
			out[kind] = docs
			mu.Unlock()

			c.log.Debug("adapter settled",
				zap.String("adapter", adapter.Name()),
				zap.Int("documents", len(docs)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}

	settled := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(settled)
	}()

	select {
	case <-settled:
	case <-overallCtx.Done():
		c.log.Warn("retrieval overall deadline hit, returning partial results")
	}

	// Merge only what settled: snapshot under the lock so a straggler
	// writing after the deadline cannot race the caller.
	mu.Lock()
	snapshot := make(map[model.SourceKind][]model.RawDocument, len(out))
	for kind, docs := range out {
		snapshot[kind] = docs
	}
	mu.Unlock()

	return snapshot
}

func (c *Coordinator) adapterTimeout() time.Duration {
	if d := c.cfg.AdapterTimeout(); d > 0 {
		return d
	}
	return 50 * time.Second
}

func (c *Coordinator) overallTimeout() time.Duration {
	if d := c.cfg.OverallTimeout(); d > 0 {
		return d
	}
	return 60 * time.Second
}
