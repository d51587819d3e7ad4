// Package bootstrap runs the one-shot corpus scan that seeds the pending
// review queue with recurring entity suggestions.
package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/shelfwise/shelfwise/internal/analyze"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/store"
	"github.com/shelfwise/shelfwise/internal/suppress"
	"github.com/shelfwise/shelfwise/pkg/docstore"
)

// Config tunes a bootstrap scan.
type Config struct {
	// MinContentLength skips documents with less extracted text than this.
	// Skipped documents still count as processed.
	MinContentLength int `yaml:"min_content_length" mapstructure:"min_content_length"`

	// ConfidenceThreshold drops candidates scored below it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`

	// DocsPerSecond paces the scan. Zero or negative disables pacing.
	DocsPerSecond float64 `yaml:"docs_per_second" mapstructure:"docs_per_second"`

	// PageSize is the document store page size for the corpus fetch.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

func (c Config) withDefaults() Config {
	if c.MinContentLength <= 0 {
		c.MinContentLength = 100
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	return c
}

// Manager owns the single bootstrap scan slot. At most one scan runs at a
// time; progress is readable by any number of pollers while it runs.
type Manager struct {
	docs     docstore.Client
	analyzer *analyze.Analyzer
	store    store.Store
	registry *suppress.Registry
	cfg      Config

	mu       sync.RWMutex
	running  bool
	progress model.ScanProgress
	cancel   context.CancelFunc

	skip atomic.Int64
}

// NewManager creates a Manager. The returned Manager is idle.
func NewManager(docs docstore.Client, analyzer *analyze.Analyzer, st store.Store, registry *suppress.Registry, cfg Config) *Manager {
	return &Manager{
		docs:     docs,
		analyzer: analyzer,
		store:    st,
		registry: registry,
		cfg:      cfg.withDefaults(),
		progress: model.ScanProgress{Status: model.ScanStatusIdle},
	}
}

// Start launches a scan for the given kind, or for every entity kind when
// kind is empty. It returns model.ErrAlreadyRunning, leaving the current
// scan and its progress untouched, if a scan is already in flight.
func (m *Manager) Start(ctx context.Context, kind model.SuggestionKind) error {
	kinds, err := scanKinds(kind)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return model.ErrAlreadyRunning
	}

	// The scan outlives the request that started it.
	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.running = true
	m.cancel = cancel
	m.skip.Store(0)
	m.progress = model.ScanProgress{
		Status: model.ScanStatusRunning,
		Kind:   kind,
		ByKind: make(map[model.SuggestionKind]int),
	}
	m.mu.Unlock()

	go m.scan(scanCtx, kinds)
	return nil
}

// Progress returns a copy of the current scan snapshot. The copy is safe to
// retain; the ByKind map is cloned.
func (m *Manager) Progress() model.ScanProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.progress
	if p.ByKind != nil {
		byKind := make(map[model.SuggestionKind]int, len(p.ByKind))
		for k, v := range p.ByKind {
			byKind[k] = v
		}
		p.ByKind = byKind
	}
	return p
}

// Cancel stops the running scan, if any. The scan finishes its current
// document and lands in the cancelled state.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Skip requests that the next n documents be passed over without analysis.
// Skipped documents still count as processed.
func (m *Manager) Skip(n int) {
	if n > 0 {
		m.skip.Add(int64(n))
	}
}

// update applies fn to the progress snapshot under the write lock.
func (m *Manager) update(fn func(*model.ScanProgress)) {
	m.mu.Lock()
	fn(&m.progress)
	m.mu.Unlock()
}

// finish records the terminal snapshot and releases the scan slot.
func (m *Manager) finish(status model.ScanStatus, message string) {
	m.mu.Lock()
	m.progress.Status = status
	m.progress.Message = message
	m.progress.CurrentDocID = ""
	m.progress.CurrentDocTitle = ""
	m.progress.ETASeconds = 0
	m.progress.CompletedAt = nowUTC()
	m.running = false
	m.cancel = nil
	m.mu.Unlock()
}

// limiter returns the pacing limiter, or nil when pacing is disabled.
func (m *Manager) limiter() *rate.Limiter {
	if m.cfg.DocsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(m.cfg.DocsPerSecond), 1)
}

func scanKinds(kind model.SuggestionKind) ([]model.SuggestionKind, error) {
	if kind == "" {
		return []model.SuggestionKind{model.KindCorrespondent, model.KindDocumentType, model.KindTag}, nil
	}
	if !kind.Valid() || kind == model.KindTitle {
		return nil, model.NewValidationError(kind, "not a scannable suggestion kind")
	}
	return []model.SuggestionKind{kind}, nil
}
