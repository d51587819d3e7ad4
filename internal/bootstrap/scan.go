package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shelfwise/shelfwise/internal/analyze"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/suppress"
	"github.com/shelfwise/shelfwise/pkg/docstore"
)

// etaWindow is how many recent per-document durations feed the ETA.
const etaWindow = 20

func nowUTC() time.Time { return time.Now().UTC() }

// baseline is the corpus-wide context fetched before the per-document loop.
type baseline struct {
	existing map[model.SuggestionKind][]string
	blocked  *suppress.BlockSet
	docs     []docstore.Document
}

// fetchBaseline loads entity names, the blocklist snapshot and the corpus
// concurrently. Any failure here aborts the scan before it touches a
// document.
func (m *Manager) fetchBaseline(ctx context.Context, kinds []model.SuggestionKind) (*baseline, error) {
	b := &baseline{existing: make(map[model.SuggestionKind][]string)}

	listers := map[model.SuggestionKind]func(context.Context) ([]docstore.Entity, error){
		model.KindCorrespondent: m.docs.ListCorrespondents,
		model.KindDocumentType:  m.docs.ListDocumentTypes,
		model.KindTag:           m.docs.ListTags,
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, kind := range kinds {
		list := listers[kind]
		g.Go(func() error {
			entities, err := list(gctx)
			if err != nil {
				return model.NewSetupError("entities", err)
			}
			names := make([]string, 0, len(entities))
			for _, e := range entities {
				names = append(names, e.Name)
			}
			mu.Lock()
			b.existing[kind] = names
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		bs, err := m.registry.Snapshot(gctx)
		if err != nil {
			return model.NewSetupError("blocklist", err)
		}
		b.blocked = bs
		return nil
	})

	g.Go(func() error {
		docs, err := m.docs.ListDocuments(gctx, m.cfg.PageSize)
		if err != nil {
			return model.NewSetupError("corpus", err)
		}
		b.docs = docs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}

// scan is the body of the background scan goroutine. The deferred finish
// guarantees the scan slot is released and a terminal status recorded on
// every exit path, including a panic in a hook.
func (m *Manager) scan(ctx context.Context, kinds []model.SuggestionKind) {
	log := zap.L().With(zap.Any("kinds", kinds))
	log.Info("bootstrap: scan starting")

	status, message := model.ScanStatusError, "scan aborted"
	defer func() {
		if r := recover(); r != nil {
			log.Error("bootstrap: scan panicked", zap.Any("panic", r))
			status, message = model.ScanStatusError, fmt.Sprintf("panic: %v", r)
		}
		m.finish(status, message)
	}()

	status, message = m.run(ctx, kinds, log)
}

// run walks the corpus and returns the terminal status. It is the sole
// writer of the progress snapshot while it runs.
func (m *Manager) run(ctx context.Context, kinds []model.SuggestionKind, log *zap.Logger) (model.ScanStatus, string) {
	base, err := m.fetchBaseline(ctx, kinds)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("bootstrap: scan cancelled during setup")
			return model.ScanStatusCancelled, "cancelled during setup"
		}
		log.Error("bootstrap: setup failed", zap.Error(err))
		return model.ScanStatusError, err.Error()
	}

	m.update(func(p *model.ScanProgress) {
		p.Total = len(base.docs)
		p.StartedAt = nowUTC()
	})

	// Names proposed earlier in this run, normalized, per kind. A name
	// surfaced once is not queued again for the same kind.
	proposed := make(map[model.SuggestionKind]map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		proposed[kind] = make(map[string]struct{})
	}

	limiter := m.limiter()
	durations := make([]time.Duration, 0, etaWindow)

	for i, doc := range base.docs {
		if ctx.Err() != nil {
			log.Info("bootstrap: scan cancelled", zap.Int("processed", i))
			return model.ScanStatusCancelled, "cancelled"
		}

		if m.skip.Load() > 0 {
			m.skip.Add(-1)
			m.update(func(p *model.ScanProgress) { p.Processed++ })
			continue
		}

		if len(doc.Content) < m.cfg.MinContentLength {
			m.update(func(p *model.ScanProgress) { p.Processed++ })
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return model.ScanStatusCancelled, "cancelled"
			}
		}

		m.update(func(p *model.ScanProgress) {
			p.CurrentDocID = doc.ID
			p.CurrentDocTitle = doc.Title
		})

		start := time.Now()
		for _, kind := range kinds {
			if err := m.scanDocument(ctx, doc, kind, base, proposed[kind]); err != nil {
				if ctx.Err() != nil {
					return model.ScanStatusCancelled, "cancelled"
				}
				log.Warn("bootstrap: document analysis failed",
					zap.String("doc_id", doc.ID),
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				m.update(func(p *model.ScanProgress) { p.Errors++ })
			}
		}

		durations = append(durations, time.Since(start))
		if len(durations) > etaWindow {
			durations = durations[1:]
		}
		avg := avgSeconds(durations)
		remaining := len(base.docs) - i - 1

		m.update(func(p *model.ScanProgress) {
			p.Processed++
			p.AvgSecsPerDoc = avg
			p.ETASeconds = avg * float64(remaining)
		})
	}

	// A cancel that lands while the last document is in flight must still
	// win over completion.
	if ctx.Err() != nil {
		log.Info("bootstrap: scan cancelled", zap.Int("processed", len(base.docs)))
		return model.ScanStatusCancelled, "cancelled"
	}

	log.Info("bootstrap: scan complete")
	return model.ScanStatusCompleted, ""
}

// scanDocument analyzes one document for one kind and queues surviving
// candidates for review.
func (m *Manager) scanDocument(ctx context.Context, doc docstore.Document, kind model.SuggestionKind, base *baseline, seen map[string]struct{}) error {
	pc := analyze.PromptContext{
		Existing:        base.existing[kind],
		Suppressed:      base.blocked.Names(model.Scope(kind)),
		AlreadyProposed: setToSlice(seen),
	}

	result, err := m.analyzer.AnalyzeEntities(ctx, kind, analyze.DocumentContext{
		ID:      doc.ID,
		Title:   doc.Title,
		Content: doc.Content,
	}, pc, base.blocked, "")
	if err != nil {
		return err
	}

	for _, c := range result.Candidates {
		if c.Confidence < m.cfg.ConfidenceThreshold {
			continue
		}
		normalized := suppress.Normalize(c.Value)
		if _, dup := seen[normalized]; dup {
			continue
		}

		item := &model.PendingReviewItem{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Kind:          kind,
			Value:         c.Value,
			Reasoning:     c.Reasoning,
			Attempts:      1,
			Metadata:      map[string]any{"confidence": c.Confidence, "source": "bootstrap"},
		}
		if _, err := m.store.AddPendingReview(ctx, item); err != nil {
			return err
		}

		seen[normalized] = struct{}{}
		m.update(func(p *model.ScanProgress) {
			p.SuggestionsFound++
			p.ByKind[kind]++
		})
	}
	return nil
}

func avgSeconds(durations []time.Duration) float64 {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total.Seconds() / float64(len(durations))
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
