package nlp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// Embedder turns texts into vectors. *ollama.LLM satisfies it.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingConfig configures an embedding-backed Similarity.
type EmbeddingConfig struct {
	BaseURL   string  // Ollama server URL
	Model     string  // Embedding model name
	RateLimit float64 // Max embedding requests per second; <= 0 means unlimited
	CacheSize int     // Embeddings kept in memory for the life of the process
	MaxTokens int     // Inputs are clipped to roughly this many tokens; <= 0 disables
}

// EmbeddingSimilarity scores texts by the cosine of their embeddings. The
// query side of every comparison is the same string, so vectors are memoized
// in a bounded in-memory LRU.
type EmbeddingSimilarity struct {
	embedder  Embedder
	limiter   *rate.Limiter
	cache     *lru.Cache[string, []float32]
	maxTokens int

	// Stats records embedding call latencies; nil disables recording.
	Stats *LatencyStats
}

// NewOllama connects an EmbeddingSimilarity to an Ollama server.
func NewOllama(cfg EmbeddingConfig) (*EmbeddingSimilarity, error) {
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text:latest"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	return NewEmbeddingSimilarity(llm, cfg)
}

// NewEmbeddingSimilarity wraps any Embedder.
func NewEmbeddingSimilarity(e Embedder, cfg EmbeddingConfig) (*EmbeddingSimilarity, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &EmbeddingSimilarity{
		embedder:  e,
		limiter:   rate.NewLimiter(limit, 1),
		cache:     cache,
		maxTokens: cfg.MaxTokens,
		Stats:     NewLatencyStats(time.Hour),
	}, nil
}

func (s *EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, nil
	}
	va, err := s.embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosine(va, vb), nil
}

func (s *EmbeddingSimilarity) embed(ctx context.Context, text string) ([]float32, error) {
	text = clipTokens(text, s.maxTokens)
	if v, ok := s.cache.Get(text); ok {
		return v, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	vecs, err := s.embedder.CreateEmbedding(ctx, []string{text})
	s.Stats.Observe(start)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && ctx.Err() == nil {
			return nil, &RetryableError{Message: err.Error(), Err: err}
		}
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, errors.New("create embedding: empty vector")
	}

	s.cache.Add(text, vecs[0])
	return vecs[0], nil
}
