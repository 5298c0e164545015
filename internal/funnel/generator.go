// Package funnel generates mid- and top-funnel Topic pages beneath
// transactional anchor pages, and drafts their article bodies with a
// mandatory link back to the anchor.
package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonesrussell/funnelforge/internal/dataforseo"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/gemini"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

var (
	// ErrIneligibleParent is returned when the parent page cannot hold
	// children at any funnel stage.
	ErrIneligibleParent = errors.New("funnel: parent page is not eligible for child generation")
	// ErrNoTopics is returned when the model proposed nothing usable.
	ErrNoTopics = errors.New("funnel: no usable topic proposals")
	// ErrMissingAnchorLinks is returned when a drafted article fails
	// the anchor-link contract.
	ErrMissingAnchorLinks = errors.New("funnel: article does not satisfy anchor link requirements")
)

const minAnchorMentions = 2

// TextGenerator is the generative model surface the generator needs.
// Satisfied by *gemini.Client.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// KeywordResolver supplies scored keyword candidates for a seed term.
// Satisfied by *keywords.Resolver.
type KeywordResolver interface {
	Resolve(ctx context.Context, seed, locale string) []domain.KeywordCandidate
}

// PageLookup loads pages by id, used to walk the ancestor chain when
// drafting.
type PageLookup interface {
	GetByID(ctx context.Context, pageID string) (*domain.Page, error)
}

// CompetitorSource lists the top organic results for a keyword.
// Satisfied by *dataforseo.Client.
type CompetitorSource interface {
	TopCompetitors(ctx context.Context, keyword, locale string) ([]dataforseo.Competitor, error)
}

// Generator builds Topic child pages and drafts their articles.
type Generator struct {
	llm         TextGenerator
	resolver    KeywordResolver
	pages       PageLookup
	competitors CompetitorSource
	topicCount  int
	logger      logger.Interface
}

// SetCompetitorSource enables organic-result context in middle-stage
// article prompts. Without a source, prompts omit the section.
func (g *Generator) SetCompetitorSource(src CompetitorSource) {
	g.competitors = src
}

// New wires a Generator. topicCount is the number of child topics
// requested per parent.
func New(llm TextGenerator, resolver KeywordResolver, pages PageLookup, topicCount int, log logger.Interface) *Generator {
	return &Generator{
		llm:        llm,
		resolver:   resolver,
		pages:      pages,
		topicCount: topicCount,
		logger:     log.WithComponent("funnel-generator"),
	}
}

// targetStage maps a parent page to the stage its children occupy.
func targetStage(parent *domain.Page) (domain.FunnelStage, error) {
	switch {
	case parent.FunnelStage == domain.StageBottom,
		parent.ContentType == domain.ContentTypeProduct,
		parent.ContentType == domain.ContentTypeService:
		return domain.StageMiddle, nil
	case parent.FunnelStage == domain.StageMiddle && parent.ContentType == domain.ContentTypeTopic:
		return domain.StageTop, nil
	default:
		return domain.StageUnassigned, fmt.Errorf("%w: type %s, stage %s",
			ErrIneligibleParent, parent.ContentType, parent.FunnelStage)
	}
}

// GenerateChildren proposes topics under the parent and synthesizes
// one child Page per distinct topic. Children are returned unsaved;
// the caller persists them and resolves URL collisions at insert time.
func (g *Generator) GenerateChildren(ctx context.Context, parent *domain.Page, locale string) ([]*domain.Page, error) {
	stage, err := targetStage(parent)
	if err != nil {
		return nil, err
	}

	seed := g.deriveSeed(ctx, parent)
	candidates := g.resolver.Resolve(ctx, seed, locale)

	proposals, err := g.proposeTopics(ctx, parent, seed, candidates)
	if err != nil {
		return nil, err
	}

	byKeyword := make(map[string]domain.KeywordCandidate, len(candidates))
	for _, cand := range candidates {
		byKeyword[strings.ToLower(cand.Keyword)] = cand
	}

	seenSlugs := make(map[string]bool)
	children := make([]*domain.Page, 0, len(proposals))
	for _, proposal := range proposals {
		slug := slugify(proposal.Slug)
		if slug == "" {
			slug = slugify(proposal.Title)
		}
		if slug == "" || seenSlugs[slug] {
			continue
		}
		seenSlugs[slug] = true

		cluster := assignCluster(proposal, candidates, byKeyword)
		if len(cluster) == 0 {
			continue
		}

		child := &domain.Page{
			ID:              uuid.NewString(),
			ProjectID:       parent.ProjectID,
			URL:             strings.TrimRight(parent.URL, "/") + "/" + slug,
			ContentType:     domain.ContentTypeTopic,
			FunnelStage:     stage,
			ParentPageID:    &parent.ID,
			KeywordCluster:  cluster,
			GenerationState: domain.GenerationIdle,
			Signals: domain.JSONBMap{
				"title":           proposal.Title,
				"metaDescription": proposal.Description,
			},
		}
		children = append(children, child)
	}

	if len(children) == 0 {
		return nil, ErrNoTopics
	}

	g.logger.Info("child topics generated",
		"parent_id", parent.ID,
		"stage", stage,
		"count", len(children))
	return children, nil
}

// deriveSeed picks the keyword research seed for a parent. Bottom
// parents get broadened to a category-level term so the keyword set
// is not locked to one product name; any broadening failure falls
// back to the literal title.
func (g *Generator) deriveSeed(ctx context.Context, parent *domain.Page) string {
	title := parent.Title()
	if title == "" {
		title = slugTitle(parent.URL)
	}

	if parent.FunnelStage != domain.StageBottom {
		return title
	}

	prompt := fmt.Sprintf(
		"Give the short generic product-category term for %q. Respond with only the term, two to four words, no punctuation.",
		title)
	broadened, err := g.llm.Generate(ctx, prompt, gemini.GenerateOptions{})
	if err != nil {
		g.logger.Warn("seed broadening failed, using literal title", "title", title, "error", err)
		return title
	}
	broadened = strings.TrimSpace(broadened)
	if broadened == "" || len(strings.Fields(broadened)) > 6 {
		return title
	}
	return broadened
}

type topicProposal struct {
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Description    string   `json:"description"`
	KeywordCluster []string `json:"keyword_cluster"`
	PrimaryKeyword string   `json:"primary_keyword"`
}

type topicResponse struct {
	Topics []topicProposal `json:"topics"`
}

const topicPromptFormat = `You are planning SEO content for the page %q (%s).
Propose %d article topics covering the theme %q.
Assign each topic the subset of these keywords it genuinely covers; a keyword
may appear under more than one topic:
%s
Respond with only JSON of the shape
{"topics":[{"title":string,"slug":string,"description":string,"keyword_cluster":[string],"primary_keyword":string}]}.
Slugs must be lowercase-hyphenated and distinct.`

func (g *Generator) proposeTopics(ctx context.Context, parent *domain.Page, seed string, candidates []domain.KeywordCandidate) ([]topicProposal, error) {
	keywordList := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		keywordList = append(keywordList, "- "+cand.Keyword)
	}

	prompt := fmt.Sprintf(topicPromptFormat,
		parent.Title(), parent.URL, g.topicCount, seed, strings.Join(keywordList, "\n"))
	raw, err := g.llm.Generate(ctx, prompt, gemini.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("proposing topics: %w", err)
	}

	var parsed topicResponse
	if err := json.Unmarshal([]byte(gemini.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing topic proposals: %w", err)
	}
	if len(parsed.Topics) == 0 {
		return nil, ErrNoTopics
	}
	if len(parsed.Topics) > g.topicCount {
		parsed.Topics = parsed.Topics[:g.topicCount]
	}
	return parsed.Topics, nil
}

// assignCluster maps a proposal's keyword strings back onto the
// resolved candidates, keeping the primary keyword first. A proposal
// that claims no resolved keyword falls back to the top candidate.
func assignCluster(proposal topicProposal, candidates []domain.KeywordCandidate, byKeyword map[string]domain.KeywordCandidate) domain.KeywordCluster {
	ordered := make([]domain.KeywordCandidate, 0, len(proposal.KeywordCluster)+1)
	seen := make(map[string]bool)

	appendKeyword := func(keyword string) {
		key := strings.ToLower(strings.TrimSpace(keyword))
		if key == "" || seen[key] {
			return
		}
		if cand, ok := byKeyword[key]; ok {
			ordered = append(ordered, cand)
			seen[key] = true
		}
	}

	appendKeyword(proposal.PrimaryKeyword)
	for _, keyword := range proposal.KeywordCluster {
		appendKeyword(keyword)
	}

	if len(ordered) == 0 && len(candidates) > 0 {
		ordered = append(ordered, candidates[0])
	}
	return domain.ClusterFromCandidates(ordered)
}

func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// slugTitle recovers a human-readable title from the last URL path
// segment.
func slugTitle(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	segment := trimmed[idx+1:]
	return strings.ReplaceAll(strings.ReplaceAll(segment, "-", " "), "_", " ")
}
