package rerank

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/llm"
)

// Scorer assigns a semantic-relevance score in [0,1] to each text against the
// query. Implementations are swappable: the neural scorer and the
// deterministic fallback satisfy the same contract.
type Scorer interface {
	// Name returns the scorer name for logs
	Name() string

	// Score returns one score per input text
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// EmbeddingScorer scores by cosine similarity of embeddings obtained through
// the rate-limited completion client. It checks the client's circuit breaker
// before enqueueing work so a degraded capability is skipped, not hammered.
type EmbeddingScorer struct {
	client *llm.Client
	log    *zap.Logger
}

// NewEmbeddingScorer creates the neural scorer
func NewEmbeddingScorer(client *llm.Client, log *zap.Logger) *EmbeddingScorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingScorer{client: client, log: log}
}

// Name returns the scorer name
func (s *EmbeddingScorer) Name() string { return "embedding" }

// Score embeds the query and all texts in one request and compares vectors
func (s *EmbeddingScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if !s.client.Breaker().Allow() {
		return nil, fmt.Errorf("completion breaker open")
	}

	inputs := make([]string, 0, len(texts)+1)
	inputs = append(inputs, query)
	inputs = append(inputs, texts...)

	vectors, err := s.client.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", llm.ErrDimensionMismatch, len(inputs), len(vectors))
	}

	queryVec := vectors[0]
	scores := make([]float64, len(texts))
	for i, vec := range vectors[1:] {
		if len(vec) != len(queryVec) {
			return nil, fmt.Errorf("%w: query dim %d, text dim %d", llm.ErrDimensionMismatch, len(queryVec), len(vec))
		}
		scores[i] = (cosine(queryVec, vec) + 1) / 2 // [-1,1] -> [0,1]
	}
	return scores, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// LexicalScorer is the deterministic fallback: token overlap between query
// and text, with a small built-in clinical synonym table. It never fails.
type LexicalScorer struct {
	synonyms map[string][]string
}

// NewLexicalScorer creates the deterministic scorer
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{synonyms: clinicalSynonyms}
}

// Name returns the scorer name
func (s *LexicalScorer) Name() string { return "lexical" }

// Score computes expanded-token overlap, clamped to [0,1]
func (s *LexicalScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	queryTokens := s.expand(tokenize(query))
	if len(queryTokens) == 0 {
		return make([]float64, len(texts)), nil
	}

	scores := make([]float64, len(texts))
	for i, text := range texts {
		textTokens := make(map[string]bool)
		for _, t := range tokenize(text) {
			textTokens[t] = true
		}

		matched := 0
		for token := range queryTokens {
			if textTokens[token] {
				matched++
			}
		}
		scores[i] = clamp(float64(matched) / float64(len(queryTokens)))
	}
	return scores, nil
}

// expand adds synonyms of each query token to the match set
func (s *LexicalScorer) expand(tokens []string) map[string]bool {
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[t] = true
		for _, syn := range s.synonyms[t] {
			out[syn] = true
		}
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"to": true, "was": true, "what": true, "which": true, "with": true,
}

// clinicalSynonyms is a small bidirectional alias table; enough to keep the
// fallback useful when the neural scorer is down, not a real thesaurus.
var clinicalSynonyms = map[string][]string{
	"heart":        {"cardiac", "myocardial"},
	"cardiac":      {"heart", "myocardial"},
	"kidney":       {"renal"},
	"renal":        {"kidney"},
	"liver":        {"hepatic"},
	"hepatic":      {"liver"},
	"stroke":       {"cerebrovascular"},
	"cancer":       {"carcinoma", "neoplasm", "tumor"},
	"tumor":        {"neoplasm", "cancer"},
	"hypertension": {"blood-pressure"},
	"diabetes":     {"diabetic"},
	"treatment":    {"therapy", "management"},
	"therapy":      {"treatment", "management"},
	"drug":         {"medication", "agent"},
	"medication":   {"drug", "agent"},
	"efficacy":     {"effectiveness"},
	"adverse":      {"side-effect", "safety"},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	})
	var out []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FallbackScorer tries the primary scorer and transparently falls back to the
// deterministic one for that call only, per the failure policy.
type FallbackScorer struct {
	primary  Scorer
	fallback Scorer
	log      *zap.Logger
}

// NewFallbackScorer wraps primary with fallback. primary may be nil, which
// means always use the fallback.
func NewFallbackScorer(primary, fallback Scorer, log *zap.Logger) *FallbackScorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackScorer{primary: primary, fallback: fallback, log: log}
}

// Name returns the scorer name
func (s *FallbackScorer) Name() string { return "fallback" }

// Score delegates to primary, degrading per call
func (s *FallbackScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if s.primary != nil {
		scores, err := s.primary.Score(ctx, query, texts)
		if err == nil {
			return scores, nil
		}
		s.log.Warn("semantic scorer degraded to deterministic fallback",
			zap.String("primary", s.primary.Name()),
			zap.Error(err),
		)
	}
	return s.fallback.Score(ctx, query, texts)
}
