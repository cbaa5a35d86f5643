// Package search finds historical tickets similar to a new request through
// an ordered list of fallback tiers.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

// MaxTopN bounds how many similar tickets a caller can ask for.
const MaxTopN = 10

// Cascade runs its tiers in order and returns the first non-empty result.
// A tier runs only when every tier before it errored or found nothing.
type Cascade struct {
	tiers       []Tier
	tierTimeout time.Duration
	cache       Cache
	cacheTTL    time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// CascadeOption customizes a Cascade.
type CascadeOption func(*Cascade)

// WithTierTimeout bounds each tier call.
func WithTierTimeout(d time.Duration) CascadeOption {
	return func(c *Cascade) { c.tierTimeout = d }
}

// WithCache reuses results for identical normalized text for ttl.
func WithCache(cache Cache, ttl time.Duration) CascadeOption {
	return func(c *Cascade) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithMetrics counts tier outcomes.
func WithMetrics(m *observability.Metrics) CascadeOption {
	return func(c *Cascade) { c.metrics = m }
}

// NewCascade builds a cascade over tiers.
func NewCascade(tiers []Tier, logger *zap.Logger, opts ...CascadeOption) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cascade{tiers: tiers, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultCascade wires the semantic, hybrid and recency tiers over corpus.
func NewDefaultCascade(corpus Corpus, threshold float64, logger *zap.Logger, opts ...CascadeOption) *Cascade {
	tiers := []Tier{
		SemanticTier{Corpus: corpus, Threshold: threshold},
		HybridTier{Corpus: corpus},
		RecencyTier{Corpus: corpus},
	}
	return NewCascade(tiers, logger, opts...)
}

// FindSimilar returns up to topN similar tickets, clamped to [1, MaxTopN].
// Tier failures are absorbed; when every tier fails or finds nothing the
// result is empty with a nil error. Only cancellation of ctx is returned.
func (c *Cascade) FindSimilar(ctx context.Context, title, description string, topN int) ([]domain.SimilarTicket, error) {
	q := Query{Title: title, Description: description, TopN: clampTopN(topN)}

	key := ""
	if c.cache != nil && c.cacheTTL > 0 {
		key = cacheKey(q)
		if hit, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Debug("similarity cache read failed", zap.Error(err))
		} else if ok {
			return hit, nil
		}
	}

	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results, err := c.runTier(ctx, tier, q)
		switch {
		case err != nil:
			c.metrics.RecordTier(tier.Name(), "error")
			c.logger.Warn("similarity tier failed", zap.String("tier", tier.Name()), zap.Error(err))
			continue
		case len(results) == 0:
			c.metrics.RecordTier(tier.Name(), "empty")
			c.logger.Info("similarity tier found nothing", zap.String("tier", tier.Name()))
			continue
		}

		c.metrics.RecordTier(tier.Name(), "hit")
		for i := range results {
			results[i].Tier = tier.Name()
		}
		c.logger.Info("similar tickets found",
			zap.String("tier", tier.Name()), zap.Int("count", len(results)))
		if key != "" {
			if err := c.cache.Set(ctx, key, results, c.cacheTTL); err != nil {
				c.logger.Debug("similarity cache write failed", zap.Error(err))
			}
		}
		return results, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []domain.SimilarTicket{}, nil
}

func (c *Cascade) runTier(ctx context.Context, tier Tier, q Query) ([]domain.SimilarTicket, error) {
	if c.tierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.tierTimeout)
		defer cancel()
	}
	return tier.Search(ctx, q)
}

func clampTopN(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxTopN {
		return MaxTopN
	}
	return n
}
