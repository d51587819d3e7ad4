// Package process wires the confirmation loop to the analyzers, the
// auto-apply policy and the document store for single-document runs.
package process

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/analyze"
	"github.com/shelfwise/shelfwise/internal/loop"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/policy"
	"github.com/shelfwise/shelfwise/internal/store"
	"github.com/shelfwise/shelfwise/internal/suppress"
	"github.com/shelfwise/shelfwise/pkg/docstore"
)

// Policies maps each suggestion kind to its candidate handling policy.
type Policies struct {
	Tag           policy.Config
	Correspondent policy.Config
	DocumentType  policy.Config
}

// For returns the policy for kind. Title proposals are single-valued and
// have no candidate policy.
func (p Policies) For(kind model.SuggestionKind) policy.Config {
	switch kind {
	case model.KindTag:
		return p.Tag
	case model.KindCorrespondent:
		return p.Correspondent
	default:
		return p.DocumentType
	}
}

// Processor runs the confirmation loop for one document and one kind.
type Processor struct {
	docs       docstore.Client
	analyzer   *analyze.Analyzer
	store      store.Store
	registry   *suppress.Registry
	policies   Policies
	maxRetries int
}

// New creates a Processor.
func New(docs docstore.Client, analyzer *analyze.Analyzer, st store.Store, registry *suppress.Registry, policies Policies, maxRetries int) *Processor {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Processor{
		docs:       docs,
		analyzer:   analyzer,
		store:      st,
		registry:   registry,
		policies:   policies,
		maxRetries: maxRetries,
	}
}

// Run executes the confirmation loop for the document and kind and blocks
// until it terminates.
func (p *Processor) Run(ctx context.Context, docID string, kind model.SuggestionKind) (*model.ProcessResult, error) {
	hooks, err := p.hooks(ctx, docID, kind)
	if err != nil {
		return nil, err
	}
	return loop.Run(ctx, hooks, p.maxRetries)
}

// Stream executes the confirmation loop and returns its ordered lifecycle
// event channel.
func (p *Processor) Stream(ctx context.Context, docID string, kind model.SuggestionKind) (<-chan loop.Event, error) {
	hooks, err := p.hooks(ctx, docID, kind)
	if err != nil {
		return nil, err
	}
	return loop.RunStream(ctx, hooks, p.maxRetries), nil
}

// hooks fetches the document and its surrounding context and builds the
// loop hooks for the given kind.
func (p *Processor) hooks(ctx context.Context, docID string, kind model.SuggestionKind) (loop.Hooks, error) {
	if !kind.Valid() {
		return loop.Hooks{}, eris.Errorf("process: unknown suggestion kind %q", kind)
	}

	doc, err := p.docs.GetDocument(ctx, docID)
	if err != nil {
		return loop.Hooks{}, model.NewAdapterError("get_document", err)
	}
	dc := analyze.DocumentContext{ID: doc.ID, Title: doc.Title, Content: doc.Content}

	var analyzeHook func(ctx context.Context, feedback string) (*model.AnalysisResult, error)
	if kind == model.KindTitle {
		analyzeHook = func(ctx context.Context, feedback string) (*model.AnalysisResult, error) {
			return p.analyzer.AnalyzeTitle(ctx, dc, feedback)
		}
	} else {
		pc, blocked, err := p.entityContext(ctx, kind)
		if err != nil {
			return loop.Hooks{}, err
		}
		analyzeHook = func(ctx context.Context, feedback string) (*model.AnalysisResult, error) {
			return p.analyzer.AnalyzeEntities(ctx, kind, dc, pc, blocked, feedback)
		}
	}

	return loop.Hooks{
		Analyze: analyzeHook,
		Confirm: func(ctx context.Context, analysis *model.AnalysisResult) (*model.ConfirmationVerdict, error) {
			return p.analyzer.Confirm(ctx, kind, dc, analysis)
		},
		Apply: func(ctx context.Context, analysis *model.AnalysisResult) (*model.ProcessResult, error) {
			return p.apply(ctx, doc, kind, analysis)
		},
		OnExhausted: func(ctx context.Context, last *model.AnalysisResult, attempts int, lastFeedback string) (*model.ProcessResult, error) {
			return p.queueForReview(ctx, doc, kind, last, attempts, lastFeedback)
		},
	}, nil
}

// entityContext loads the existing entity names and the suppression
// snapshot used by entity analysis prompts.
func (p *Processor) entityContext(ctx context.Context, kind model.SuggestionKind) (analyze.PromptContext, *suppress.BlockSet, error) {
	var (
		entities []docstore.Entity
		err      error
	)
	switch kind {
	case model.KindCorrespondent:
		entities, err = p.docs.ListCorrespondents(ctx)
	case model.KindDocumentType:
		entities, err = p.docs.ListDocumentTypes(ctx)
	case model.KindTag:
		entities, err = p.docs.ListTags(ctx)
	}
	if err != nil {
		return analyze.PromptContext{}, nil, model.NewAdapterError("list_entities", err)
	}

	blocked, err := p.registry.Snapshot(ctx)
	if err != nil {
		return analyze.PromptContext{}, nil, err
	}

	existing := make([]string, 0, len(entities))
	for _, e := range entities {
		existing = append(existing, e.Name)
	}
	return analyze.PromptContext{
		Existing:   existing,
		Suppressed: blocked.Names(model.Scope(kind)),
	}, blocked, nil
}

// apply commits a confirmed analysis to the document store, dispatching on
// the kind's configured policy mode. A confirmed abstention is a successful
// no-op.
func (p *Processor) apply(ctx context.Context, doc *docstore.Document, kind model.SuggestionKind, analysis *model.AnalysisResult) (*model.ProcessResult, error) {
	if analysis.Abstained() {
		return &model.ProcessResult{Success: true, Reasoning: analysis.Reasoning}, nil
	}

	if kind == model.KindTitle {
		return p.applyTitle(ctx, doc, analysis)
	}

	cfg := p.policies.For(kind)
	if kind == model.KindTag {
		if cfg.Mode == policy.ModeConfirmAll {
			return p.applyTagSet(ctx, doc, analysis)
		}
		return p.applyTags(ctx, doc, analysis, cfg)
	}
	if cfg.Mode == policy.ModeTiered {
		return p.applyEntityTiered(ctx, doc, kind, analysis, cfg)
	}
	return p.applyEntity(ctx, doc, kind, analysis)
}

func (p *Processor) applyTitle(ctx context.Context, doc *docstore.Document, analysis *model.AnalysisResult) (*model.ProcessResult, error) {
	title := analysis.Value
	if err := p.docs.UpdateDocument(ctx, doc.ID, docstore.DocumentPatch{Title: &title}); err != nil {
		return nil, model.NewAdapterError("update_title", err)
	}
	return &model.ProcessResult{
		Success:      true,
		Value:        title,
		Reasoning:    analysis.Reasoning,
		Confidence:   analysis.Confidence,
		Alternatives: analysis.Alternatives,
	}, nil
}

// applyEntity commits a single-valued entity proposal under the confirm-all
// policy: the confirmation already covered the whole set, so the top
// candidate is applied.
func (p *Processor) applyEntity(ctx context.Context, doc *docstore.Document, kind model.SuggestionKind, analysis *model.AnalysisResult) (*model.ProcessResult, error) {
	value := analysis.Value
	confidence := analysis.Confidence
	if value == "" {
		top := topCandidate(analysis.Candidates)
		value, confidence = top.Value, top.Confidence
	}
	return p.patchEntity(ctx, doc, kind, value, confidence, analysis)
}

// applyEntityTiered commits a single-valued entity proposal under the tiered
// policy: the top candidate is applied only above the high threshold, queued
// for review in the middle tier, and discarded below.
func (p *Processor) applyEntityTiered(ctx context.Context, doc *docstore.Document, kind model.SuggestionKind, analysis *model.AnalysisResult, cfg policy.Config) (*model.ProcessResult, error) {
	candidates := analysis.Candidates
	if len(candidates) == 0 {
		candidates = []model.Candidate{{Value: analysis.Value, Confidence: analysis.Confidence, Reasoning: analysis.Reasoning}}
	}
	part := policy.PartitionCandidates(candidates, cfg)

	if len(part.AutoApply) > 0 {
		top := topCandidate(part.AutoApply)
		return p.patchEntity(ctx, doc, kind, top.Value, top.Confidence, analysis)
	}

	if len(part.Review) > 0 {
		top := topCandidate(part.Review)
		item := &model.PendingReviewItem{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Kind:          kind,
			Value:         top.Value,
			Reasoning:     top.Reasoning,
			Metadata:      map[string]any{"confidence": top.Confidence, "source": "process"},
		}
		if _, err := p.store.AddPendingReview(ctx, item); err != nil {
			return nil, eris.Wrapf(err, "process: queue %s for review", kind)
		}
	}

	return &model.ProcessResult{Success: true, Reasoning: analysis.Reasoning}, nil
}

// patchEntity writes the winning entity value to the document.
func (p *Processor) patchEntity(ctx context.Context, doc *docstore.Document, kind model.SuggestionKind, value string, confidence float64, analysis *model.AnalysisResult) (*model.ProcessResult, error) {
	var patch docstore.DocumentPatch
	switch kind {
	case model.KindCorrespondent:
		patch.Correspondent = &value
	case model.KindDocumentType:
		if _, err := p.docs.GetOrCreateDocumentType(ctx, value); err != nil {
			return nil, model.NewAdapterError("create_document_type", err)
		}
		patch.DocumentType = &value
	}

	if err := p.docs.UpdateDocument(ctx, doc.ID, patch); err != nil {
		return nil, model.NewAdapterError("update_document", err)
	}
	return &model.ProcessResult{
		Success:    true,
		Value:      value,
		Reasoning:  analysis.Reasoning,
		Confidence: confidence,
	}, nil
}

// applyTagSet attaches every candidate under the confirm-all policy: the
// confirmation tier accepted the set as a whole, so it is applied whole.
func (p *Processor) applyTagSet(ctx context.Context, doc *docstore.Document, analysis *model.AnalysisResult) (*model.ProcessResult, error) {
	var applied []string
	for _, c := range analysis.Candidates {
		if err := p.docs.AddTag(ctx, doc.ID, c.Value); err != nil {
			return nil, model.NewAdapterError("add_tag", err)
		}
		applied = append(applied, c.Value)
	}

	result := &model.ProcessResult{Success: true, Reasoning: analysis.Reasoning}
	if len(applied) > 0 {
		result.Value = applied[0]
		result.Alternatives = applied[1:]
	}
	return result, nil
}

// applyTags commits tag candidates under the tiered policy: high-confidence
// tags are attached, middle-tier tags are queued for review, the rest are
// dropped.
func (p *Processor) applyTags(ctx context.Context, doc *docstore.Document, analysis *model.AnalysisResult, cfg policy.Config) (*model.ProcessResult, error) {
	part := policy.PartitionCandidates(analysis.Candidates, cfg)

	var applied []string
	for _, c := range part.AutoApply {
		if err := p.docs.AddTag(ctx, doc.ID, c.Value); err != nil {
			return nil, model.NewAdapterError("add_tag", err)
		}
		applied = append(applied, c.Value)
	}

	for _, c := range part.Review {
		item := &model.PendingReviewItem{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Kind:          model.KindTag,
			Value:         c.Value,
			Reasoning:     c.Reasoning,
			Metadata:      map[string]any{"confidence": c.Confidence, "source": "process"},
		}
		if _, err := p.store.AddPendingReview(ctx, item); err != nil {
			return nil, eris.Wrap(err, "process: queue tag for review")
		}
	}

	zap.L().Info("process: tags applied",
		zap.String("doc_id", doc.ID),
		zap.Int("applied", len(part.AutoApply)),
		zap.Int("review", len(part.Review)),
		zap.Int("discarded", len(part.Discard)),
	)

	result := &model.ProcessResult{
		Success:   true,
		Reasoning: analysis.Reasoning,
	}
	if len(applied) > 0 {
		result.Value = applied[0]
		result.Alternatives = applied[1:]
	}
	return result, nil
}

// queueForReview persists the last unconfirmed analysis as a pending review
// item when the loop exhausts its retries. The item carries the attempt
// count and the final rejection feedback for the reviewer.
func (p *Processor) queueForReview(ctx context.Context, doc *docstore.Document, kind model.SuggestionKind, last *model.AnalysisResult, attempts int, lastFeedback string) (*model.ProcessResult, error) {
	value := last.Value
	if value == "" {
		value = topCandidate(last.Candidates).Value
	}

	item := &model.PendingReviewItem{
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Kind:          kind,
		Value:         value,
		Reasoning:     last.Reasoning,
		Alternatives:  last.Alternatives,
		Attempts:      attempts,
		LastFeedback:  lastFeedback,
		Metadata:      map[string]any{"source": "process"},
	}
	if _, err := p.store.AddPendingReview(ctx, item); err != nil {
		return nil, eris.Wrap(err, "process: queue exhausted proposal")
	}

	return &model.ProcessResult{
		Success:      false,
		Value:        value,
		Reasoning:    last.Reasoning,
		Alternatives: last.Alternatives,
	}, nil
}

func topCandidate(candidates []model.Candidate) model.Candidate {
	if len(candidates) == 0 {
		return model.Candidate{}
	}
	sorted := make([]model.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted[0]
}
