// Package analyze builds prompts for the two model tiers, validates their
// structured output, and filters candidates against the suppression
// registry before they are ever surfaced as proposals.
package analyze

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/resilience"
	"github.com/shelfwise/shelfwise/internal/suppress"
	"github.com/shelfwise/shelfwise/pkg/llm"
)

// Config holds the model tier assignments.
type Config struct {
	AnalysisModel     string `yaml:"analysis_model" mapstructure:"analysis_model"`
	ConfirmationModel string `yaml:"confirmation_model" mapstructure:"confirmation_model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DocumentContext is the slice of a document the analyzers see.
type DocumentContext struct {
	ID      string
	Title   string
	Content string
}

// Analyzer drives analysis- and confirmation-tier model calls for every
// suggestion kind.
type Analyzer struct {
	client llm.Client
	cfg    Config
	retry  resilience.RetryConfig
}

// New creates an Analyzer using the given model client.
func New(client llm.Client, cfg Config) *Analyzer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Analyzer{
		client: client,
		cfg:    cfg,
		retry:  resilience.DefaultRetryConfig(),
	}
}

// AnalyzeTitle proposes a title for the document. Feedback from a prior
// rejection, when present, is included in the prompt.
func (a *Analyzer) AnalyzeTitle(ctx context.Context, doc DocumentContext, feedback string) (*model.AnalysisResult, error) {
	text, err := a.complete(ctx, "analyze_title", llm.MessageRequest{
		Model:     a.cfg.AnalysisModel,
		MaxTokens: a.cfg.MaxTokens,
		System:    llm.BuildCachedSystemBlocks(titleSystemPrompt),
		Messages: []llm.Message{
			{Role: "user", Content: buildTitleUserPrompt(doc.Title, doc.Content, feedback)},
		},
	})
	if err != nil {
		return nil, err
	}
	return parseTitleResponse(text)
}

// AnalyzeEntities proposes candidates of the given kind for the document.
// Candidates matching the block set are dropped after parsing; when every
// candidate is dropped the result is an abstention, which callers still
// route through the confirmation tier.
func (a *Analyzer) AnalyzeEntities(ctx context.Context, kind model.SuggestionKind, doc DocumentContext, pc PromptContext, blocked *suppress.BlockSet, feedback string) (*model.AnalysisResult, error) {
	text, err := a.complete(ctx, fmt.Sprintf("analyze_%s", kind), llm.MessageRequest{
		Model:     a.cfg.AnalysisModel,
		MaxTokens: a.cfg.MaxTokens,
		System:    llm.BuildCachedSystemBlocks(fmt.Sprintf(entitySystemPromptFmt, entityNouns[kind])),
		Messages: []llm.Message{
			{Role: "user", Content: buildEntityUserPrompt(doc, pc, feedback)},
		},
	})
	if err != nil {
		return nil, err
	}

	result, err := parseEntityResponse(kind, text)
	if err != nil {
		return nil, err
	}

	if blocked != nil {
		kept := result.Candidates[:0]
		for _, c := range result.Candidates {
			if blocked.Blocked(c.Value, model.Scope(kind)) {
				zap.L().Debug("analyze: dropped suppressed candidate",
					zap.String("kind", string(kind)),
					zap.String("value", c.Value),
				)
				continue
			}
			kept = append(kept, c)
		}
		result.Candidates = kept
	}
	return result, nil
}

// Confirm independently validates an analysis with the cheaper model tier.
func (a *Analyzer) Confirm(ctx context.Context, kind model.SuggestionKind, doc DocumentContext, analysis *model.AnalysisResult) (*model.ConfirmationVerdict, error) {
	text, err := a.complete(ctx, fmt.Sprintf("confirm_%s", kind), llm.MessageRequest{
		Model:     a.cfg.ConfirmationModel,
		MaxTokens: 256,
		System:    llm.BuildCachedSystemBlocks(fmt.Sprintf(confirmSystemPromptFmt, kind)),
		Messages: []llm.Message{
			{Role: "user", Content: buildConfirmUserPrompt(kind, doc, analysis)},
		},
	})
	if err != nil {
		return nil, err
	}
	return parseConfirmResponse(kind, text)
}

// complete runs one model call under the retry-with-timeout policy and
// wraps failures as adapter errors.
func (a *Analyzer) complete(ctx context.Context, stage string, req llm.MessageRequest) (string, error) {
	cfg := a.retry
	cfg.OnRetry = resilience.RetryLogger("llm", stage)

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*llm.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", model.NewAdapterError(stage, err)
	}

	resp.Usage.LogUsage(req.Model, stage)
	return resp.Text(), nil
}
