package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/model"
)

// Adapter is the uniform contract every knowledge source satisfies. Search
// never returns an error: on any internal failure (network, malformed
// payload, rate limit from the underlying source) an adapter logs and
// returns an empty list, so one bad provider never fails the query.
type Adapter interface {
	// Name returns the adapter name for logs
	Name() string

	// Kind returns the provider kind this adapter serves
	Kind() model.SourceKind

	// Search runs the query variants against the source and returns
	// provider-native documents, capped by the adapter's own limits.
	Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument
}

// maxVariantsPerSearch caps how many query rewrites one adapter runs
const maxVariantsPerSearch = 3

// searchCacheTTL is how long provider search results stay reusable
const searchCacheTTL = 15 * time.Minute

// httpJSON is the shared transport for adapter backends
type httpJSON struct {
	client *http.Client
	cache  cache.Cache
	log    *zap.Logger
}

func newHTTPJSON(store cache.Cache, log *zap.Logger) httpJSON {
	if store == nil {
		store = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return httpJSON{
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  store,
		log:    log,
	}
}

// getJSON performs a GET and decodes the body into target, consulting the
// advisory cache first. Cache failures are invisible to the caller.
func (h httpJSON) getJSON(ctx context.Context, url string, target any) error {
	key := cache.Key("http", url)
	if data, ok := h.cache.Get(key); ok {
		if err := json.Unmarshal(data, target); err == nil {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}

	h.cache.Set(key, body, searchCacheTTL)
	return nil
}

// postJSON performs a POST with a JSON payload and decodes the response
func (h httpJSON) postJSON(ctx context.Context, url string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// capVariants limits how many rewrites a search fans out to
func capVariants(variants []string) []string {
	if len(variants) > maxVariantsPerSearch {
		return variants[:maxVariantsPerSearch]
	}
	return variants
}
