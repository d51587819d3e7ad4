package process

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/analyze"
	"github.com/shelfwise/shelfwise/internal/loop"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/policy"
	"github.com/shelfwise/shelfwise/internal/suppress"
	"github.com/shelfwise/shelfwise/pkg/docstore"
	"github.com/shelfwise/shelfwise/pkg/llm"
)

// fakeDocs records applied changes.
type fakeDocs struct {
	doc     docstore.Document
	patches []docstore.DocumentPatch
	tags    []string
	types   []string
}

func (f *fakeDocs) ListDocuments(context.Context, int) ([]docstore.Document, error) {
	return []docstore.Document{f.doc}, nil
}

func (f *fakeDocs) GetDocument(ctx context.Context, id string) (*docstore.Document, error) {
	d := f.doc
	return &d, nil
}

func (f *fakeDocs) UpdateDocument(ctx context.Context, id string, patch docstore.DocumentPatch) error {
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeDocs) ListCorrespondents(context.Context) ([]docstore.Entity, error) {
	return []docstore.Entity{{ID: "c-1", Name: "Acme Corp"}}, nil
}
func (f *fakeDocs) ListDocumentTypes(context.Context) ([]docstore.Entity, error) { return nil, nil }
func (f *fakeDocs) ListTags(context.Context) ([]docstore.Entity, error)          { return nil, nil }

func (f *fakeDocs) GetOrCreateDocumentType(ctx context.Context, name string) (string, error) {
	f.types = append(f.types, name)
	return "dt-1", nil
}

func (f *fakeDocs) AddTag(ctx context.Context, docID, tagName string) error {
	f.tags = append(f.tags, tagName)
	return nil
}

func (f *fakeDocs) TransitionTag(context.Context, string, string, string) error { return nil }

// scriptedLLM replies with each response once, in order.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
}

func (s *scriptedLLM) CreateMessage(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	text := s.responses[0]
	s.responses = s.responses[1:]
	return &llm.MessageResponse{Content: []llm.ContentBlock{{Type: "text", Text: text}}}, nil
}

// memStore keeps pending reviews in memory; the blocklist is empty.
type memStore struct {
	reviews []model.PendingReviewItem
}

func (m *memStore) AddPendingReview(ctx context.Context, item *model.PendingReviewItem) (string, error) {
	item.ID = fmt.Sprintf("rev-%d", len(m.reviews)+1)
	m.reviews = append(m.reviews, *item)
	return item.ID, nil
}

func (m *memStore) ListPendingReviews(context.Context, model.SuggestionKind) ([]model.PendingReviewItem, error) {
	return m.reviews, nil
}
func (m *memStore) GetPendingReview(context.Context, string) (*model.PendingReviewItem, error) {
	return nil, nil
}
func (m *memStore) DeletePendingReview(context.Context, string) error { return nil }
func (m *memStore) AddBlocked(ctx context.Context, e *model.BlockedSuggestion) (string, error) {
	return "", nil
}
func (m *memStore) ListBlocked(context.Context, model.Scope) ([]model.BlockedSuggestion, error) {
	return nil, nil
}
func (m *memStore) ListAllBlocked(context.Context) ([]model.BlockedSuggestion, error) {
	return nil, nil
}
func (m *memStore) RemoveBlocked(context.Context, string) error            { return nil }
func (m *memStore) GetSetting(context.Context, string) (string, error)     { return "", nil }
func (m *memStore) SetSetting(context.Context, string, string) error       { return nil }
func (m *memStore) AllSettings(context.Context) (map[string]string, error) { return nil, nil }
func (m *memStore) Migrate(context.Context) error                          { return nil }
func (m *memStore) Close() error                                           { return nil }

func testPolicies() Policies {
	return Policies{
		Tag:           policy.Config{Mode: policy.ModeTiered, HighThreshold: 0.85, LowThreshold: 0.5, ReviewTier: true},
		Correspondent: policy.Config{Mode: policy.ModeConfirmAll, HighThreshold: 0.85, LowThreshold: 0.5},
		DocumentType:  policy.Config{Mode: policy.ModeConfirmAll, HighThreshold: 0.85, LowThreshold: 0.5},
	}
}

func newTestProcessor(docs *fakeDocs, st *memStore, responses ...string) *Processor {
	return newPolicyProcessor(docs, st, testPolicies(), responses...)
}

func newPolicyProcessor(docs *fakeDocs, st *memStore, policies Policies, responses ...string) *Processor {
	analyzer := analyze.New(&scriptedLLM{responses: responses}, analyze.Config{
		AnalysisModel:     "analysis-model",
		ConfirmationModel: "confirmation-model",
	})
	return New(docs, analyzer, st, suppress.NewRegistry(st), policies, 3)
}

func longDoc() docstore.Document {
	return docstore.Document{ID: "doc-1", Title: "scan_0001.pdf", Content: "Dear customer, your policy statement is enclosed."}
}

func TestRunTitleAppliedOnConfirm(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	p := newTestProcessor(docs, &memStore{},
		`{"title": "Policy Statement 2024", "reasoning": "from header", "confidence": 0.9}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindTitle)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Policy Statement 2024", result.Value)
	assert.Equal(t, 1, result.Attempts)

	require.Len(t, docs.patches, 1)
	require.NotNil(t, docs.patches[0].Title)
	assert.Equal(t, "Policy Statement 2024", *docs.patches[0].Title)
}

func TestRunTitleRejectedThenAccepted(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	p := newTestProcessor(docs, &memStore{},
		`{"title": "Document", "reasoning": "fallback", "confidence": 0.4}`,
		`{"confirmed": false, "feedback": "too generic"}`,
		`{"title": "Policy Statement 2024", "reasoning": "from header", "confidence": 0.9}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindTitle)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "Policy Statement 2024", result.Value)
	require.Len(t, docs.patches, 1)
}

func TestRunExhaustionQueuesReview(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	st := &memStore{}
	p := newTestProcessor(docs, st,
		`{"title": "Doc", "reasoning": "", "confidence": 0.3}`,
		`{"confirmed": false, "feedback": "no"}`,
		`{"title": "Doc", "reasoning": "", "confidence": 0.3}`,
		`{"confirmed": false, "feedback": "no"}`,
		`{"title": "Doc", "reasoning": "", "confidence": 0.3}`,
		`{"confirmed": false, "feedback": "no"}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindTitle)
	require.NoError(t, err)

	assert.True(t, result.NeedsReview)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, docs.patches)

	require.Len(t, st.reviews, 1)
	assert.Equal(t, model.KindTitle, st.reviews[0].Kind)
	assert.Equal(t, "Doc", st.reviews[0].Value)

	// The queued item records how hard the loop tried and why the last
	// attempt was turned down.
	assert.Equal(t, 3, st.reviews[0].Attempts)
	assert.Equal(t, "no", st.reviews[0].LastFeedback)
}

func TestRunTagsTieredApply(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	st := &memStore{}
	p := newTestProcessor(docs, st,
		`{"candidates": [{"value": "insurance", "confidence": 0.95, "reasoning": "policy"}, {"value": "home", "confidence": 0.6, "reasoning": "address"}, {"value": "misc", "confidence": 0.2, "reasoning": "guess"}], "reasoning": "household"}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindTag)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// High tier attached, middle tier queued, low tier dropped.
	assert.Equal(t, []string{"insurance"}, docs.tags)
	require.Len(t, st.reviews, 1)
	assert.Equal(t, "home", st.reviews[0].Value)
	assert.Equal(t, model.KindTag, st.reviews[0].Kind)
}

func TestRunTagsConfirmAllAppliesWholeSet(t *testing.T) {
	t.Parallel()

	policies := testPolicies()
	policies.Tag = policy.Config{Mode: policy.ModeConfirmAll, HighThreshold: 0.85, LowThreshold: 0.5}

	docs := &fakeDocs{doc: longDoc()}
	st := &memStore{}
	p := newPolicyProcessor(docs, st, policies,
		`{"candidates": [{"value": "insurance", "confidence": 0.95, "reasoning": "policy"}, {"value": "home", "confidence": 0.6, "reasoning": "address"}], "reasoning": "household"}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindTag)
	require.NoError(t, err)
	require.True(t, result.Success)

	// Under confirm-all the confirmed set is attached whole; nothing is
	// split off for review by confidence.
	assert.ElementsMatch(t, []string{"insurance", "home"}, docs.tags)
	assert.Empty(t, st.reviews)
}

func TestRunCorrespondentTieredAppliesHighConfidence(t *testing.T) {
	t.Parallel()

	policies := testPolicies()
	policies.Correspondent = policy.Config{Mode: policy.ModeTiered, HighThreshold: 0.85, LowThreshold: 0.5, ReviewTier: true}

	docs := &fakeDocs{doc: longDoc()}
	p := newPolicyProcessor(docs, &memStore{}, policies,
		`{"candidates": [{"value": "Acme Insurance", "confidence": 0.9, "reasoning": "letterhead"}], "reasoning": "sender"}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindCorrespondent)
	require.NoError(t, err)

	assert.Equal(t, "Acme Insurance", result.Value)
	require.Len(t, docs.patches, 1)
	require.NotNil(t, docs.patches[0].Correspondent)
}

func TestRunCorrespondentTieredQueuesMidConfidence(t *testing.T) {
	t.Parallel()

	policies := testPolicies()
	policies.Correspondent = policy.Config{Mode: policy.ModeTiered, HighThreshold: 0.85, LowThreshold: 0.5, ReviewTier: true}

	docs := &fakeDocs{doc: longDoc()}
	st := &memStore{}
	p := newPolicyProcessor(docs, st, policies,
		`{"candidates": [{"value": "Acme Insurance", "confidence": 0.7, "reasoning": "footer"}], "reasoning": "sender"}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindCorrespondent)
	require.NoError(t, err)

	// Mid-tier confidence is never written to the document: it goes to the
	// review queue instead.
	assert.True(t, result.Success)
	assert.Empty(t, docs.patches)
	require.Len(t, st.reviews, 1)
	assert.Equal(t, "Acme Insurance", st.reviews[0].Value)
	assert.Equal(t, model.KindCorrespondent, st.reviews[0].Kind)
}

func TestRunCorrespondentAppliesTopCandidate(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	p := newTestProcessor(docs, &memStore{},
		`{"candidates": [{"value": "Budget Insurance", "confidence": 0.7, "reasoning": "footer"}, {"value": "Acme Insurance", "confidence": 0.9, "reasoning": "letterhead"}], "reasoning": "sender"}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindCorrespondent)
	require.NoError(t, err)

	assert.Equal(t, "Acme Insurance", result.Value)
	require.Len(t, docs.patches, 1)
	require.NotNil(t, docs.patches[0].Correspondent)
	assert.Equal(t, "Acme Insurance", *docs.patches[0].Correspondent)
}

func TestRunDocumentTypeCreatesEntity(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	p := newTestProcessor(docs, &memStore{},
		`{"candidates": [{"value": "Insurance Policy", "confidence": 0.9, "reasoning": "layout"}], "reasoning": ""}`,
		`{"confirmed": true}`,
	)

	_, err := p.Run(context.Background(), "doc-1", model.KindDocumentType)
	require.NoError(t, err)

	assert.Equal(t, []string{"Insurance Policy"}, docs.types)
	require.Len(t, docs.patches, 1)
	require.NotNil(t, docs.patches[0].DocumentType)
}

func TestRunConfirmedAbstentionIsNoOp(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	st := &memStore{}
	p := newTestProcessor(docs, st,
		`{"candidates": [], "reasoning": "no recognizable sender"}`,
		`{"confirmed": true}`,
	)

	result, err := p.Run(context.Background(), "doc-1", model.KindCorrespondent)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Value)
	assert.Empty(t, docs.patches)
	assert.Empty(t, st.reviews)
}

func TestRunUnknownKind(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(&fakeDocs{doc: longDoc()}, &memStore{})
	_, err := p.Run(context.Background(), "doc-1", "flavor")
	assert.Error(t, err)
}

func TestStreamEmitsOrderedEvents(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{doc: longDoc()}
	p := newTestProcessor(docs, &memStore{},
		`{"title": "Policy Statement 2024", "reasoning": "from header", "confidence": 0.9}`,
		`{"confirmed": true}`,
	)

	events, err := p.Stream(context.Background(), "doc-1", model.KindTitle)
	require.NoError(t, err)

	var last loop.Event
	terminals := 0
	for ev := range events {
		last = ev
		if ev.Type.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, loop.EventComplete, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "Policy Statement 2024", last.Result.Value)
}
