package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/model"
)

func testFetchConfig() model.FetchConfig {
	return model.FetchConfig{
		TimeoutSeconds: 5,
		UserAgent:      "evisearch-test",
		MaxBodyBytes:   1 << 20,
		PerHostRPS:     100,
		PerHostBurst:   10,
	}
}

func TestFullText_ExtractsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>t</title><script>var x=1;</script></head>
<body><nav>menu</nav><p>The trial enrolled 500 patients.</p><p>Mortality fell.</p><footer>links</footer></body></html>`))
	}))
	defer server.Close()

	f := New(testFetchConfig(), nil, nil)

	text, err := f.FullText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "The trial enrolled 500 patients.") {
		t.Errorf("body text missing: %q", text)
	}
	if strings.Contains(text, "var x=1") {
		t.Errorf("script content leaked into text: %q", text)
	}
	if strings.Contains(text, "menu") || strings.Contains(text, "links") {
		t.Errorf("nav/footer content leaked into text: %q", text)
	}
}

func TestFullText_PlainTextPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain document body"))
	}))
	defer server.Close()

	f := New(testFetchConfig(), nil, nil)

	text, err := f.FullText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "plain document body" {
		t.Errorf("expected passthrough, got %q", text)
	}
}

func TestFullText_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	f := New(testFetchConfig(), nil, nil)

	if _, err := f.FullText(context.Background(), server.URL); err == nil {
		t.Errorf("expected error on 410 response")
	}
}

func TestFullText_RobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/private/doc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secret"))
	})
	mux.HandleFunc("/public/doc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("public document"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testFetchConfig()
	cfg.RespectRobotsTxt = true
	f := New(cfg, nil, nil)

	if _, err := f.FullText(context.Background(), server.URL+"/private/doc"); err == nil {
		t.Errorf("expected robots.txt to block the private path")
	}

	text, err := f.FullText(context.Background(), server.URL+"/public/doc")
	if err != nil {
		t.Fatalf("allowed path failed: %v", err)
	}
	if text != "public document" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestFullText_UsesCache(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("cached body"))
	}))
	defer server.Close()

	f := New(testFetchConfig(), cache.NewMemory(0), nil)

	for i := 0; i < 3; i++ {
		text, err := f.FullText(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
		if text != "cached body" {
			t.Errorf("fetch %d: unexpected text %q", i, text)
		}
	}
	if hits != 1 {
		t.Errorf("expected a single upstream request, got %d", hits)
	}
}

func TestHTMLToText_BlockSeparation(t *testing.T) {
	html := "<html><body><h1>Title</h1><p>First para.</p><p>Second para.</p></body></html>"
	text := htmlToText(html)

	if !strings.Contains(text, "Title") || !strings.Contains(text, "First para.") {
		t.Fatalf("text extraction lost content: %q", text)
	}
	if !strings.Contains(text, "\n") {
		t.Errorf("block elements should separate lines: %q", text)
	}
}
