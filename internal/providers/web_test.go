package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/vporoshin/evisearch/internal/model"
)

func TestWebAdapter_RelaxedRetryOnThinResults(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		q := r.URL.Query().Get("q")

		var results []model.WebResult
		if q == `"exact phrase" AND (qualifier)` {
			// The strict query finds a single thin hit
			results = []model.WebResult{{URL: "https://a.example/1", Title: "one"}}
		} else {
			results = []model.WebResult{
				{URL: "https://a.example/1", Title: "one"},
				{URL: "https://b.example/2", Title: "two"},
				{URL: "https://c.example/3", Title: "three"},
			}
		}
		_ = json.NewEncoder(w).Encode(webResponse{Results: results})
	}))
	defer server.Close()

	adapter := NewWebAdapter(model.WebConfig{
		BaseURL:    server.URL,
		Limit:      10,
		MinResults: 2,
	}, nil, nil)

	docs := adapter.Search(context.Background(), []string{`"exact phrase" AND (qualifier)`}, model.QueryContext{})

	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("expected strict then relaxed request, got %d requests", requests)
	}
	if len(docs) != 3 {
		t.Fatalf("expected merged deduped results, got %d", len(docs))
	}
}

func TestWebAdapter_NoRetryWhenEmpty(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_ = json.NewEncoder(w).Encode(webResponse{})
	}))
	defer server.Close()

	adapter := NewWebAdapter(model.WebConfig{BaseURL: server.URL, MinResults: 2}, nil, nil)

	docs := adapter.Search(context.Background(), []string{"no hits at all"}, model.QueryContext{})

	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Errorf("zero hits is final, expected 1 request, got %d", requests)
	}
}

func TestRelaxVariant(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"exact phrase" AND (qualifier)`, "exact phrase qualifier"},
		{"a b c d e f g h", "a b c d e f"},
		{"plain query", "plain query"},
		{"drug OR placebo NOT surgery", "drug placebo surgery"},
	}
	for _, tc := range cases {
		if got := relaxVariant(tc.in); got != tc.want {
			t.Errorf("relaxVariant(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
