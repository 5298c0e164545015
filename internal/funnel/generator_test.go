package funnel_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/funnel"
	"github.com/jonesrussell/funnelforge/internal/gemini"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// fakeLLM answers prompts by substring routing, recording each prompt.
type fakeLLM struct {
	responses map[string]string // prompt substring -> response
	fallback  string
	err       error
	prompts   []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ gemini.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for marker, response := range f.responses {
		if strings.Contains(prompt, marker) {
			return response, nil
		}
	}
	return f.fallback, nil
}

type fakeResolver struct {
	candidates []domain.KeywordCandidate
}

func (f *fakeResolver) Resolve(context.Context, string, string) []domain.KeywordCandidate {
	return f.candidates
}

type fakePages struct {
	byID map[string]*domain.Page
}

func (f *fakePages) GetByID(_ context.Context, id string) (*domain.Page, error) {
	page, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("page %s not found", id)
	}
	return page, nil
}

func keywordSet(keywords ...string) []domain.KeywordCandidate {
	out := make([]domain.KeywordCandidate, 0, len(keywords))
	for i, kw := range keywords {
		out = append(out, domain.KeywordCandidate{
			Keyword:        kw,
			Volume:         1000 - i,
			CPC:            1.0,
			Competition:    0.5,
			ProviderSource: domain.ProviderGemini,
		})
	}
	return out
}

func topicsJSON(t *testing.T, proposals ...map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"topics": proposals})
	require.NoError(t, err)
	return string(raw)
}

func productParent() *domain.Page {
	return &domain.Page{
		ID:          "parent-1",
		ProjectID:   "proj",
		URL:         "https://example.com/products/acme-widget",
		ContentType: domain.ContentTypeProduct,
		FunnelStage: domain.StageBottom,
		Signals:     domain.JSONBMap{"title": "Acme Widget"},
	}
}

func TestGenerateChildren_ProductParentYieldsMiddleTopics(t *testing.T) {
	// Primary keyword provider failed upstream; the resolver already
	// degraded to a generative set of 8 keywords.
	keywords := keywordSet(
		"best widgets", "widget reviews", "widget comparison", "widget guide",
		"cheap widgets", "widget alternatives", "widget brands", "industrial widgets")
	proposals := make([]map[string]any, 0, 6)
	for i := 0; i < 6; i++ {
		proposals = append(proposals, map[string]any{
			"title":           fmt.Sprintf("Widget Topic %d", i),
			"slug":            fmt.Sprintf("widget-topic-%d", i),
			"description":     "About widgets",
			"keyword_cluster": []string{keywords[i].Keyword, keywords[(i+1)%8].Keyword},
			"primary_keyword": keywords[i].Keyword,
		})
	}
	llm := &fakeLLM{responses: map[string]string{
		"generic product-category term": "widgets",
		"Propose":                       topicsJSON(t, proposals...),
	}}
	g := funnel.New(llm, &fakeResolver{candidates: keywords}, &fakePages{}, 6, logger.NewNoOp())

	children, err := g.GenerateChildren(context.Background(), productParent(), "en-US")

	require.NoError(t, err)
	require.Len(t, children, 6)
	allowed := make(map[string]bool)
	for _, kw := range keywords {
		allowed[kw.Keyword] = true
	}
	for _, child := range children {
		assert.Equal(t, domain.StageMiddle, child.FunnelStage)
		assert.Equal(t, domain.ContentTypeTopic, child.ContentType)
		require.NotNil(t, child.ParentPageID)
		assert.Equal(t, "parent-1", *child.ParentPageID)
		assert.Equal(t, domain.GenerationIdle, child.GenerationState)
		assert.NotEmpty(t, child.ID)
		assert.True(t, strings.HasPrefix(child.URL, "https://example.com/products/acme-widget/"))

		require.NotEmpty(t, child.KeywordCluster)
		assert.True(t, child.KeywordCluster[0].IsPrimary)
		for _, ref := range child.KeywordCluster {
			assert.True(t, allowed[ref.Keyword], "keyword %q not in resolved set", ref.Keyword)
		}
	}
}

func TestGenerateChildren_MiddleTopicParentYieldsTopStage(t *testing.T) {
	parentID := "mid-1"
	parent := &domain.Page{
		ID:          parentID,
		ProjectID:   "proj",
		URL:         "https://example.com/products/acme-widget/widget-guide",
		ContentType: domain.ContentTypeTopic,
		FunnelStage: domain.StageMiddle,
		Signals:     domain.JSONBMap{"title": "Widget Guide"},
	}
	llm := &fakeLLM{fallback: topicsJSON(t, map[string]any{
		"title":           "What Is A Widget",
		"slug":            "what-is-a-widget",
		"keyword_cluster": []string{"what is a widget"},
		"primary_keyword": "what is a widget",
	})}
	g := funnel.New(llm, &fakeResolver{candidates: keywordSet("what is a widget")}, &fakePages{}, 6, logger.NewNoOp())

	children, err := g.GenerateChildren(context.Background(), parent, "en-US")

	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, domain.StageTop, children[0].FunnelStage)
	// Non-bottom parents skip seed broadening; only the topic prompt fires.
	assert.Len(t, llm.prompts, 1)
}

func TestGenerateChildren_IneligibleParents(t *testing.T) {
	g := funnel.New(&fakeLLM{}, &fakeResolver{}, &fakePages{}, 6, logger.NewNoOp())

	tests := []struct {
		name string
		page *domain.Page
	}{
		{"unclassified page", &domain.Page{ContentType: domain.ContentTypeUnclassified, FunnelStage: domain.StageUnassigned}},
		{"category page", &domain.Page{ContentType: domain.ContentTypeCategory, FunnelStage: domain.StageUnassigned}},
		{"top stage topic", &domain.Page{ContentType: domain.ContentTypeTopic, FunnelStage: domain.StageTop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.GenerateChildren(context.Background(), tt.page, "en-US")

			assert.ErrorIs(t, err, funnel.ErrIneligibleParent)
		})
	}
}

func TestGenerateChildren_DuplicateSlugsCollapse(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{
		"generic product-category term": "widgets",
		"Propose": topicsJSON(t,
			map[string]any{"title": "A", "slug": "shared-slug", "keyword_cluster": []string{"best widgets"}, "primary_keyword": "best widgets"},
			map[string]any{"title": "B", "slug": "shared-slug", "keyword_cluster": []string{"widget reviews"}, "primary_keyword": "widget reviews"},
		),
	}}
	g := funnel.New(llm, &fakeResolver{candidates: keywordSet("best widgets", "widget reviews")}, &fakePages{}, 6, logger.NewNoOp())

	children, err := g.GenerateChildren(context.Background(), productParent(), "en-US")

	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "https://example.com/products/acme-widget/shared-slug", children[0].URL)
}

func TestGenerateChildren_FencedResponseIsParsed(t *testing.T) {
	fenced := "```json\n" + topicsJSON(t, map[string]any{
		"title":           "Widget Guide",
		"slug":            "widget-guide",
		"keyword_cluster": []string{"best widgets"},
		"primary_keyword": "best widgets",
	}) + "\n```"
	llm := &fakeLLM{responses: map[string]string{
		"generic product-category term": "widgets",
		"Propose":                       fenced,
	}}
	g := funnel.New(llm, &fakeResolver{candidates: keywordSet("best widgets")}, &fakePages{}, 6, logger.NewNoOp())

	children, err := g.GenerateChildren(context.Background(), productParent(), "en-US")

	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestGenerateChildren_SeedBroadeningFailureFallsBackToTitle(t *testing.T) {
	// The broadening prompt errors; the topic prompt must still run,
	// seeded with the literal title.
	llm := &recordingLLM{
		failOn: "generic product-category term",
		topics: topicsJSON(t, map[string]any{
			"title":           "Widget Guide",
			"slug":            "widget-guide",
			"keyword_cluster": []string{"best widgets"},
			"primary_keyword": "best widgets",
		}),
	}
	g := funnel.New(llm, &fakeResolver{candidates: keywordSet("best widgets")}, &fakePages{}, 6, logger.NewNoOp())

	children, err := g.GenerateChildren(context.Background(), productParent(), "en-US")

	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Contains(t, llm.topicPrompt, `"Acme Widget"`)
}

type recordingLLM struct {
	failOn      string
	topics      string
	topicPrompt string
}

func (r *recordingLLM) Generate(_ context.Context, prompt string, _ gemini.GenerateOptions) (string, error) {
	if strings.Contains(prompt, r.failOn) {
		return "", errors.New("model unavailable")
	}
	r.topicPrompt = prompt
	return r.topics, nil
}
