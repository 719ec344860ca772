package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/doctriage/internal/nlp"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *nlp.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

type retrier struct {
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

func withRetry[T any](ctx context.Context, r retrier, op string, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := range MaxRetries {
		v, err = fn()
		if err == nil || !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		r.log.Warn("retryable backend error", "op", op, "attempt", attempt, "error", err)
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
	return v, err
}

// retryingSimilarity retries transient backend failures.
type retryingSimilarity struct {
	inner nlp.Similarity
	r     retrier
}

func (s retryingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	return withRetry(ctx, s.r, "similarity", func() (float64, error) {
		return s.inner.Similarity(ctx, a, b)
	})
}

type retryingExtractor struct {
	inner nlp.PhraseExtractor
	r     retrier
}

func (e retryingExtractor) ExtractPhrases(ctx context.Context, text string) (nlp.Phrases, error) {
	return withRetry(ctx, e.r, "extract_phrases", func() (nlp.Phrases, error) {
		return e.inner.ExtractPhrases(ctx, text)
	})
}
