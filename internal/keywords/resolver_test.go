package keywords_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/keywords"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// fakeProvider returns canned candidates or an error, counting calls.
type fakeProvider struct {
	name       string
	candidates []domain.KeywordCandidate
	err        error
	calls      int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Resolve(context.Context, string, string) ([]domain.KeywordCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

func candidate(keyword string, volume int, cpc, competition float64) domain.KeywordCandidate {
	return domain.KeywordCandidate{
		Keyword:        keyword,
		Volume:         volume,
		CPC:            cpc,
		Competition:    competition,
		ProviderSource: "fake",
	}
}

func TestResolve_PrimaryProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "primary", candidates: []domain.KeywordCandidate{
		candidate("widget reviews", 500, 2.0, 0.5),
		candidate("best widgets", 1000, 2.0, 0.5),
	}}
	fallback := &fakeProvider{name: "fallback"}
	r := keywords.NewResolver([]keywords.Provider{primary, fallback}, logger.NewNoOp())

	got := r.Resolve(context.Background(), "widgets", "en-US")

	require.Len(t, got, 2)
	assert.Zero(t, fallback.calls)
	// Sorted by score descending: 1000*2/0.5 = 4000 over 500*2/0.5 = 2000.
	assert.Equal(t, "best widgets", got[0].Keyword)
	assert.InDelta(t, 4000, got[0].Score, 0.001)
	// Intent filled from the keyword text.
	assert.Equal(t, domain.IntentCommercial, got[0].Intent)
}

func TestResolve_FallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("quota exhausted")}
	fallback := &fakeProvider{name: "fallback", candidates: []domain.KeywordCandidate{
		candidate("how to choose widgets", 200, 0.5, 0.2),
	}}
	r := keywords.NewResolver([]keywords.Provider{primary, fallback}, logger.NewNoOp())

	got := r.Resolve(context.Background(), "widgets", "en-US")

	require.Len(t, got, 1)
	assert.Equal(t, "how to choose widgets", got[0].Keyword)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestResolve_EmptyResultAlsoFallsThrough(t *testing.T) {
	primary := &fakeProvider{name: "primary", candidates: nil}
	fallback := &fakeProvider{name: "fallback", candidates: []domain.KeywordCandidate{
		candidate("widgets guide", 100, 0.1, 0.1),
	}}
	r := keywords.NewResolver([]keywords.Provider{primary, fallback}, logger.NewNoOp())

	got := r.Resolve(context.Background(), "widgets", "en-US")

	require.Len(t, got, 1)
	assert.Equal(t, "widgets guide", got[0].Keyword)
}

func TestResolve_TotalFailureDegradesToSeedSingleton(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("down")}
	fallback := &fakeProvider{name: "fallback", err: errors.New("also down")}
	r := keywords.NewResolver([]keywords.Provider{primary, fallback}, logger.NewNoOp())

	got := r.Resolve(context.Background(), "acme widget", "en-US")

	require.Len(t, got, 1)
	assert.Equal(t, "acme widget", got[0].Keyword)
	assert.Equal(t, domain.ProviderSeed, got[0].ProviderSource)
	assert.Equal(t, domain.IntentInformational, got[0].Intent)
	assert.Zero(t, got[0].Volume)
}

func TestResolve_CachesPerSeedAndLocale(t *testing.T) {
	provider := &fakeProvider{name: "primary", candidates: []domain.KeywordCandidate{
		candidate("best widgets", 1000, 2.0, 0.5),
	}}
	r := keywords.NewResolver([]keywords.Provider{provider}, logger.NewNoOp())

	r.Resolve(context.Background(), "widgets", "en-US")
	r.Resolve(context.Background(), "widgets", "en-US")
	assert.Equal(t, 1, provider.calls)

	// A different locale is a different cache key.
	r.Resolve(context.Background(), "widgets", "fr-FR")
	assert.Equal(t, 2, provider.calls)
}

func TestResolve_CachedResultsAreIsolatedCopies(t *testing.T) {
	provider := &fakeProvider{name: "primary", candidates: []domain.KeywordCandidate{
		candidate("best widgets", 1000, 2.0, 0.5),
	}}
	r := keywords.NewResolver([]keywords.Provider{provider}, logger.NewNoOp())

	first := r.Resolve(context.Background(), "widgets", "en-US")
	first[0].Keyword = "mutated"
	second := r.Resolve(context.Background(), "widgets", "en-US")

	assert.Equal(t, "best widgets", second[0].Keyword)
}

func TestResolve_ScoreUsesCompetitionFloor(t *testing.T) {
	provider := &fakeProvider{name: "primary", candidates: []domain.KeywordCandidate{
		candidate("free widgets", 100, 1.0, 0.0),
	}}
	r := keywords.NewResolver([]keywords.Provider{provider}, logger.NewNoOp())

	got := r.Resolve(context.Background(), "widgets", "en-US")

	// Competition 0 is floored at 0.1: 100*1.0/0.1 = 1000, not infinity.
	assert.InDelta(t, 1000, got[0].Score, 0.001)
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		keyword string
		want    string
	}{
		{"buy acme widgets", domain.IntentTransactional},
		{"acme widget price", domain.IntentTransactional},
		{"widget discount code", domain.IntentTransactional},
		{"best widgets 2026", domain.IntentCommercial},
		{"acme vs initech widgets", domain.IntentCommercial},
		{"widget alternative", domain.IntentCommercial},
		{"what is a widget", domain.IntentInformational},
		{"how to install widgets", domain.IntentInformational},
		{"acme widget", domain.IntentInformational},
		// Word-boundary matching: "tops" is not "top".
		{"widget tops", domain.IntentInformational},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, keywords.ClassifyIntent(tt.keyword))
		})
	}
}

func TestResolve_CacheExpiresAfterTTL(t *testing.T) {
	provider := &fakeProvider{name: "primary", candidates: []domain.KeywordCandidate{
		candidate("best widgets", 1000, 2.0, 0.5),
	}}
	r := keywords.NewResolver([]keywords.Provider{provider}, logger.NewNoOp())
	current := time.Now()
	r.SetClock(func() time.Time { return current })

	r.Resolve(context.Background(), "widgets", "en-US")
	current = current.Add(25 * time.Hour)
	r.Resolve(context.Background(), "widgets", "en-US")

	assert.Equal(t, 2, provider.calls)
}
