package main

import (
	"fmt"

	"github.com/dgallion1/doctriage/internal/api"
	"github.com/dgallion1/doctriage/internal/config"
	"github.com/dgallion1/doctriage/internal/nlp"
)

// backends holds the NLP capabilities selected by the configuration.
type backends struct {
	sim       nlp.Similarity
	extractor nlp.PhraseExtractor
	stats     []api.BackendStats
	closers   []func()
}

func newBackends(cfg config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.SimilarityBackend {
	case "ollama":
		emb, err := nlp.NewOllama(nlp.EmbeddingConfig{
			BaseURL:   cfg.OllamaBaseURL,
			Model:     cfg.EmbedModel,
			RateLimit: cfg.EmbedRateLimit,
			CacheSize: cfg.EmbedCacheSize,
			MaxTokens: cfg.EmbedMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		b.sim = emb
		b.stats = append(b.stats, api.BackendStats{Name: "similarity", Model: cfg.EmbedModel, Stats: emb.Stats})
	case "lexical", "":
		b.sim = nlp.NewLexical()
	default:
		return nil, fmt.Errorf("unknown similarity backend %q", cfg.SimilarityBackend)
	}

	switch cfg.KeywordBackend {
	case "claude":
		claude := nlp.NewClaudeExtractor(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		b.extractor = claude
		b.stats = append(b.stats, api.BackendStats{Name: "keywords", Model: claude.Model(), Stats: claude.Stats})
		b.closers = append(b.closers, claude.Close)
	case "prose", "":
		b.extractor = nlp.NewProse()
	case "rules":
		b.extractor = nlp.NewRules()
	default:
		return nil, fmt.Errorf("unknown keyword backend %q", cfg.KeywordBackend)
	}

	return b, nil
}

func (b *backends) Close() {
	for _, c := range b.closers {
		c()
	}
}
