// Package keywords resolves a seed term into scored keyword
// candidates through an ordered provider chain with caching and
// per-candidate provenance.
package keywords

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

const defaultCacheTTL = 24 * time.Hour

// Provider is one strategy in the resolver chain.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, seed, locale string) ([]domain.KeywordCandidate, error)
}

// Resolver tries providers in order and returns the first non-empty
// result. Results are cached per seed and locale for the TTL, so
// repeated generation runs over the same cluster do not re-bill the
// upstream APIs. On total failure it degrades to a single candidate
// carrying just the seed term, never an error.
type Resolver struct {
	providers []Provider
	ttl       time.Duration
	logger    logger.Interface

	mu    sync.Mutex
	cache map[string]cacheEntry

	// now is swappable for TTL tests.
	now func() time.Time
}

type cacheEntry struct {
	candidates []domain.KeywordCandidate
	storedAt   time.Time
}

// NewResolver builds a Resolver over the given provider chain.
func NewResolver(providers []Provider, log logger.Interface) *Resolver {
	return &Resolver{
		providers: providers,
		ttl:       defaultCacheTTL,
		logger:    log.WithComponent("keyword-resolver"),
		cache:     make(map[string]cacheEntry),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for cache expiry. Test hook.
func (r *Resolver) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Resolve returns scored, sorted keyword candidates for the seed.
func (r *Resolver) Resolve(ctx context.Context, seed, locale string) []domain.KeywordCandidate {
	key := seed + "\x00" + locale

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && r.now().Sub(entry.storedAt) < r.ttl {
		r.mu.Unlock()
		return cloneCandidates(entry.candidates)
	}
	r.mu.Unlock()

	candidates := r.resolveUncached(ctx, seed, locale)

	r.mu.Lock()
	r.cache[key] = cacheEntry{candidates: cloneCandidates(candidates), storedAt: r.now()}
	r.mu.Unlock()

	return candidates
}

func (r *Resolver) resolveUncached(ctx context.Context, seed, locale string) []domain.KeywordCandidate {
	for _, provider := range r.providers {
		candidates, err := provider.Resolve(ctx, seed, locale)
		if err != nil {
			r.logger.Warn("keyword provider failed, trying next",
				"provider", provider.Name(),
				"seed", seed,
				"error", err)
			continue
		}
		if len(candidates) == 0 {
			r.logger.Debug("keyword provider returned nothing",
				"provider", provider.Name(),
				"seed", seed)
			continue
		}

		for i := range candidates {
			candidates[i].ComputeScore()
			if candidates[i].Intent == "" {
				candidates[i].Intent = ClassifyIntent(candidates[i].Keyword)
			}
		}
		domain.SortCandidates(candidates)

		r.logger.Info("keywords resolved",
			"provider", provider.Name(),
			"seed", seed,
			"count", len(candidates))
		return candidates
	}

	r.logger.Warn("all keyword providers failed, degrading to seed", "seed", seed)
	return []domain.KeywordCandidate{{
		Keyword:        seed,
		Intent:         ClassifyIntent(seed),
		ProviderSource: domain.ProviderSeed,
	}}
}

func cloneCandidates(candidates []domain.KeywordCandidate) []domain.KeywordCandidate {
	out := make([]domain.KeywordCandidate, len(candidates))
	copy(out, candidates)
	return out
}
