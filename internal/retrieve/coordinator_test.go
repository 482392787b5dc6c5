package retrieve

import (
	"context"
	"testing"
	"time"

	"github.com/vporoshin/evisearch/internal/model"
	"github.com/vporoshin/evisearch/internal/providers"
)

// fakeAdapter implements providers.Adapter with scripted docs and latency
type fakeAdapter struct {
	kind  model.SourceKind
	docs  []model.RawDocument
	delay time.Duration
}

func (f *fakeAdapter) Name() string           { return string(f.kind) }
func (f *fakeAdapter) Kind() model.SourceKind { return f.kind }

func (f *fakeAdapter) Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return f.docs
}

func testContext() model.QueryContext {
	return model.SimpleContext("test query")
}

func TestCoordinator_AllAdaptersSucceed(t *testing.T) {
	adapters := []*fakeAdapter{
		{kind: model.SourcePubMed, docs: []model.RawDocument{model.PubMedArticle{PMID: "1"}}},
		{kind: model.SourceLabels, docs: []model.RawDocument{model.DrugLabel{SetID: "s1"}}},
		{kind: model.SourceWeb, docs: []model.RawDocument{model.WebResult{URL: "u1"}}},
	}
	c := newTestCoordinator(adapters, 5, 10)

	out := c.Retrieve(context.Background(), testContext())

	if len(out) != 3 {
		t.Fatalf("expected 3 source entries, got %d", len(out))
	}
	for _, a := range adapters {
		if len(out[a.kind]) != 1 {
			t.Errorf("source %s: expected 1 document, got %d", a.kind, len(out[a.kind]))
		}
	}
}

func TestCoordinator_SlowAdapterDegradesAlone(t *testing.T) {
	adapters := []*fakeAdapter{
		{kind: model.SourcePubMed, docs: []model.RawDocument{model.PubMedArticle{PMID: "1"}}},
		{kind: model.SourceTrials, delay: 10 * time.Second, docs: []model.RawDocument{model.TrialRecord{NCTID: "never"}}},
	}
	c := newTestCoordinator(adapters, 1, 2)

	start := time.Now()
	out := c.Retrieve(context.Background(), testContext())
	elapsed := time.Since(start)

	if elapsed > 1900*time.Millisecond {
		t.Errorf("retrieval took %v, expected the overall deadline to bound it", elapsed)
	}

	if _, ok := out[model.SourceTrials]; !ok {
		t.Fatalf("slow source must still have an entry")
	}
	if len(out[model.SourceTrials]) != 0 {
		t.Errorf("slow source should contribute nothing, got %d docs", len(out[model.SourceTrials]))
	}
	if len(out[model.SourcePubMed]) != 1 {
		t.Errorf("healthy source should still deliver, got %d docs", len(out[model.SourcePubMed]))
	}
}

func TestCoordinator_RespectsRouting(t *testing.T) {
	adapters := []*fakeAdapter{
		{kind: model.SourcePubMed, docs: []model.RawDocument{model.PubMedArticle{PMID: "1"}}},
		{kind: model.SourceWeb, docs: []model.RawDocument{model.WebResult{URL: "u1"}}},
	}
	c := newTestCoordinator(adapters, 5, 10)

	qctx := testContext()
	qctx.Routing[model.SourceWeb] = false

	out := c.Retrieve(context.Background(), qctx)

	if _, ok := out[model.SourceWeb]; ok {
		t.Errorf("unrouted source must not appear in the output")
	}
	if len(out[model.SourcePubMed]) != 1 {
		t.Errorf("routed source missing from output")
	}
}

func TestCoordinator_RetrieveKindsSubset(t *testing.T) {
	adapters := []*fakeAdapter{
		{kind: model.SourcePubMed, docs: []model.RawDocument{model.PubMedArticle{PMID: "1"}}},
		{kind: model.SourceWeb, docs: []model.RawDocument{model.WebResult{URL: "u1"}}},
	}
	c := newTestCoordinator(adapters, 5, 10)

	out := c.RetrieveKinds(context.Background(), testContext(), []string{"follow-up"}, []model.SourceKind{model.SourceWeb})

	if len(out) != 1 {
		t.Fatalf("expected only the requested kind, got %d entries", len(out))
	}
	if len(out[model.SourceWeb]) != 1 {
		t.Errorf("requested kind should deliver its documents")
	}
}

func newTestCoordinator(fakes []*fakeAdapter, adapterSec, overallSec int) *Coordinator {
	adapters := make([]providers.Adapter, 0, len(fakes))
	for _, f := range fakes {
		adapters = append(adapters, f)
	}
	return New(adapters, model.RetrievalConfig{
		AdapterTimeoutSeconds: adapterSec,
		OverallTimeoutSeconds: overallSec,
	}, nil)
}
