package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/model"
)

// Fetcher retrieves full text for stage-2 reranking. Failures are expected:
// callers proceed with the candidate's abstract or snippet when FullText
// returns an error.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *robotsGate
	cache      cache.Cache
	log        *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New creates a fetcher from configuration
func New(cfg model.FetchConfig, store cache.Cache, log *zap.Logger) *Fetcher {
	if store == nil {
		store = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	rps := rate.Limit(cfg.PerHostRPS)
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.PerHostBurst
	if burst <= 0 {
		burst = 2
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		cache:      store,
		log:        log,
		limiters:   make(map[string]*rate.Limiter),
		rps:        rps,
		burst:      burst,
	}
	if cfg.RespectRobotsTxt {
		f.robots = newRobotsGate(cfg.UserAgent, timeout)
	}
	return f
}

// FullText fetches the document at rawURL and reduces it to plain text.
// Every call carries the caller's deadline; exceeding it is an error the
// caller degrades from, never a pipeline failure.
func (f *Fetcher) FullText(ctx context.Context, rawURL string) (string, error) {
	key := cache.Key("fulltext", rawURL)
	if data, ok := f.cache.Get(key); ok {
		return string(data), nil
	}

	if f.robots != nil {
		allowed, err := f.robots.canFetch(ctx, rawURL)
		if err == nil && !allowed {
			return "", eris.New("disallowed by robots.txt")
		}
	}

	if err := f.waitHost(ctx, rawURL); err != nil {
		return "", eris.Wrap(err, "per-host rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "fetch full text")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", eris.Wrap(err, "read body")
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		text = htmlToText(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", eris.New("empty document")
	}

	f.cache.Set(key, []byte(text), 0)
	return text, nil
}

// waitHost enforces per-host politeness
func (f *Fetcher) waitHost(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	f.mu.Lock()
	limiter, ok := f.limiters[parsed.Host]
	if !ok {
		limiter = rate.NewLimiter(f.rps, f.burst)
		f.limiters[parsed.Host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

// proxyFunc builds the transport proxy selector, falling back to the
// environment when nothing is configured.
func proxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
