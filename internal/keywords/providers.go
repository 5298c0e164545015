package keywords

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/funnelforge/internal/dataforseo"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/gemini"
)

// geminiKeywordCount bounds the number of ideas requested from the
// generative fallback.
const geminiKeywordCount = 10

// MetricsProvider resolves keywords through the DataForSEO Labs API.
type MetricsProvider struct {
	client *dataforseo.Client
}

// NewMetricsProvider wraps a DataForSEO client as a resolver provider.
func NewMetricsProvider(client *dataforseo.Client) *MetricsProvider {
	return &MetricsProvider{client: client}
}

func (p *MetricsProvider) Name() string { return domain.ProviderDataForSEO }

func (p *MetricsProvider) Resolve(ctx context.Context, seed, locale string) ([]domain.KeywordCandidate, error) {
	metrics, err := p.client.KeywordIdeas(ctx, seed, locale)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.KeywordCandidate, 0, len(metrics))
	for _, m := range metrics {
		candidates = append(candidates, domain.KeywordCandidate{
			Keyword:        m.Keyword,
			Volume:         m.Volume,
			CPC:            m.CPC,
			Competition:    m.Competition,
			ProviderSource: domain.ProviderDataForSEO,
		})
	}
	return candidates, nil
}

// GenerativeProvider estimates keywords with a web-grounded model call
// when no metrics API is available.
type GenerativeProvider struct {
	client *gemini.Client
}

// NewGenerativeProvider wraps a Gemini client as a resolver provider.
func NewGenerativeProvider(client *gemini.Client) *GenerativeProvider {
	return &GenerativeProvider{client: client}
}

func (p *GenerativeProvider) Name() string { return domain.ProviderGemini }

const generativePromptFormat = `You are an SEO keyword researcher. Using current web search data,
list the %d strongest search keywords for the topic %q targeting the %q market.
Respond with only a JSON array, no prose, where each element is:
{"keyword": string, "volume": estimated monthly searches as integer,
"cpc": estimated cost per click in USD as number,
"competition": 0.0-1.0 number}`

func (p *GenerativeProvider) Resolve(ctx context.Context, seed, locale string) ([]domain.KeywordCandidate, error) {
	prompt := fmt.Sprintf(generativePromptFormat, geminiKeywordCount, seed, locale)
	raw, err := p.client.Generate(ctx, prompt, gemini.GenerateOptions{Grounding: true})
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Keyword     string  `json:"keyword"`
		Volume      int     `json:"volume"`
		CPC         float64 `json:"cpc"`
		Competition float64 `json:"competition"`
	}
	if err := json.Unmarshal([]byte(gemini.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing generated keyword list: %w", err)
	}

	candidates := make([]domain.KeywordCandidate, 0, len(parsed))
	for _, item := range parsed {
		if item.Keyword == "" {
			continue
		}
		candidates = append(candidates, domain.KeywordCandidate{
			Keyword:        item.Keyword,
			Volume:         item.Volume,
			CPC:            item.CPC,
			Competition:    item.Competition,
			ProviderSource: domain.ProviderGemini,
		})
	}
	return candidates, nil
}
