package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/funnelforge/internal/database"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/funnel"
	"github.com/jonesrussell/funnelforge/internal/jobs"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// fakeGenerator produces canned children and fails drafting for
// selected page ids.
type fakeGenerator struct {
	children  []*domain.Page
	childErr  error
	draftFail map[string]error
}

func (f *fakeGenerator) GenerateChildren(context.Context, *domain.Page, string) ([]*domain.Page, error) {
	return f.children, f.childErr
}

func (f *fakeGenerator) DraftArticle(_ context.Context, page *domain.Page) (string, error) {
	if err, ok := f.draftFail[page.ID]; ok {
		return "", err
	}
	return "article body for " + page.ID, nil
}

// fakeGenStore tracks inserts, state transitions, and saved articles.
type fakeGenStore struct {
	existingURLs map[string]bool
	states       map[string]domain.GenerationState
	errorMsgs    map[string]string
	articles     map[string]string
	inserted     []*domain.Page
	saveErr      error
}

func newFakeGenStore() *fakeGenStore {
	return &fakeGenStore{
		existingURLs: make(map[string]bool),
		states:       make(map[string]domain.GenerationState),
		errorMsgs:    make(map[string]string),
		articles:     make(map[string]string),
	}
}

func (s *fakeGenStore) Insert(_ context.Context, page *domain.Page) (bool, error) {
	if s.existingURLs[page.URL] {
		return false, nil
	}
	s.existingURLs[page.URL] = true
	s.inserted = append(s.inserted, page)
	s.states[page.ID] = page.GenerationState
	return true, nil
}

func (s *fakeGenStore) UpdateGenerationState(_ context.Context, pageID string, from, to domain.GenerationState, errorMessage *string) error {
	if s.states[pageID] != from {
		return database.ErrStateConflict
	}
	s.states[pageID] = to
	if errorMessage != nil {
		s.errorMsgs[pageID] = *errorMessage
	}
	return nil
}

func (s *fakeGenStore) SaveArticle(_ context.Context, pageID, body string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.states[pageID] != domain.GenerationProcessing {
		return database.ErrStateConflict
	}
	s.states[pageID] = domain.GenerationDone
	s.articles[pageID] = body
	return nil
}

func topicPage(id string) *domain.Page {
	return &domain.Page{
		ID:              id,
		URL:             "https://example.com/products/widget/" + id,
		ContentType:     domain.ContentTypeTopic,
		FunnelStage:     domain.StageMiddle,
		GenerationState: domain.GenerationIdle,
	}
}

func TestCreateChildren_PersistsNewAndSkipsExisting(t *testing.T) {
	childA := topicPage("child-a")
	childB := topicPage("child-b")
	store := newFakeGenStore()
	store.existingURLs[childB.URL] = true
	runner := jobs.NewGenerationRunner(&fakeGenerator{children: []*domain.Page{childA, childB}}, store, logger.NewNoOp())

	stats, err := runner.CreateChildren(context.Background(), topicPage("parent"), "en-US")

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "child-a", store.inserted[0].ID)
}

func TestCreateChildren_IneligibleParentSurfaces(t *testing.T) {
	runner := jobs.NewGenerationRunner(&fakeGenerator{childErr: funnel.ErrIneligibleParent}, newFakeGenStore(), logger.NewNoOp())

	_, err := runner.CreateChildren(context.Background(), topicPage("parent"), "en-US")

	assert.ErrorIs(t, err, funnel.ErrIneligibleParent)
}

func TestDraftArticles_OneFailureDoesNotStopTheBatch(t *testing.T) {
	good := topicPage("good")
	bad := topicPage("bad")
	also := topicPage("also-good")
	store := newFakeGenStore()
	for _, p := range []*domain.Page{good, bad, also} {
		store.states[p.ID] = domain.GenerationIdle
	}
	gen := &fakeGenerator{draftFail: map[string]error{
		"bad": funnel.ErrMissingAnchorLinks,
	}}
	runner := jobs.NewGenerationRunner(gen, store, logger.NewNoOp())

	stats := runner.DraftArticles(context.Background(), []*domain.Page{good, bad, also})

	assert.Equal(t, 2, stats.Drafted)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.GenerationDone, store.states["good"])
	assert.Equal(t, domain.GenerationDone, store.states["also-good"])
	assert.Equal(t, domain.GenerationFailed, store.states["bad"])
	assert.Contains(t, store.errorMsgs["bad"], "anchor link")
	assert.NotEmpty(t, store.articles["good"])
}

func TestDraftArticles_SaveFailureReachesTerminalState(t *testing.T) {
	page := topicPage("unsavable")
	store := newFakeGenStore()
	store.states[page.ID] = domain.GenerationIdle
	store.saveErr = errors.New("disk full")
	runner := jobs.NewGenerationRunner(&fakeGenerator{}, store, logger.NewNoOp())

	stats := runner.DraftArticles(context.Background(), []*domain.Page{page})

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.GenerationFailed, store.states[page.ID])
	assert.Contains(t, store.errorMsgs[page.ID], "disk full")
}

func TestDraftArticles_NonIdlePagesAreSkipped(t *testing.T) {
	busy := topicPage("busy")
	store := newFakeGenStore()
	store.states["busy"] = domain.GenerationProcessing
	runner := jobs.NewGenerationRunner(&fakeGenerator{}, store, logger.NewNoOp())

	stats := runner.DraftArticles(context.Background(), []*domain.Page{busy})

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Drafted)
	// Still processing: the skip leaves the other run's claim alone.
	assert.Equal(t, domain.GenerationProcessing, store.states["busy"])
}

func TestResetGenerationState(t *testing.T) {
	store := newFakeGenStore()
	runner := jobs.NewGenerationRunner(&fakeGenerator{}, store, logger.NewNoOp())

	failed := topicPage("failed-page")
	failed.GenerationState = domain.GenerationFailed
	store.states[failed.ID] = domain.GenerationFailed

	require.NoError(t, runner.ResetGenerationState(context.Background(), failed))
	assert.Equal(t, domain.GenerationIdle, store.states[failed.ID])

	idle := topicPage("idle-page")
	store.states[idle.ID] = domain.GenerationIdle
	err := runner.ResetGenerationState(context.Background(), idle)
	assert.Error(t, err)
}
