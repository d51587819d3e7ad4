package model

import (
	"time"
)

// SuggestionKind identifies the kind of metadata a proposal targets.
type SuggestionKind string

// Supported suggestion kinds.
const (
	KindTitle         SuggestionKind = "title"
	KindCorrespondent SuggestionKind = "correspondent"
	KindDocumentType  SuggestionKind = "document_type"
	KindTag           SuggestionKind = "tag"
)

// AllSuggestionKinds returns every valid suggestion kind.
func AllSuggestionKinds() []SuggestionKind {
	return []SuggestionKind{KindTitle, KindCorrespondent, KindDocumentType, KindTag}
}

// Valid reports whether k is a known suggestion kind.
func (k SuggestionKind) Valid() bool {
	switch k {
	case KindTitle, KindCorrespondent, KindDocumentType, KindTag:
		return true
	}
	return false
}

// Scope identifies where a blocklist entry applies. It is either a
// SuggestionKind or ScopeGlobal, which blocks the name under every kind.
type Scope string

// ScopeGlobal blocks a normalized name across all suggestion kinds.
const ScopeGlobal Scope = "global"

// Candidate is a single scored proposal produced by an analysis call.
type Candidate struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// AnalysisResult is the immutable output of one analysis-tier model call.
// An empty Value signals abstention: the analyzer found no usable proposal
// (for example, every candidate was suppressed). Abstentions still flow
// through the confirmation tier so retry accounting stays uniform.
type AnalysisResult struct {
	Value        string      `json:"value"`
	Candidates   []Candidate `json:"candidates,omitempty"`
	Reasoning    string      `json:"reasoning"`
	Confidence   float64     `json:"confidence"`
	Alternatives []string    `json:"alternatives,omitempty"`
}

// Abstained reports whether the analysis produced no usable proposal.
func (r AnalysisResult) Abstained() bool {
	return r.Value == "" && len(r.Candidates) == 0
}

// ConfirmationVerdict is the output of one confirmation-tier model call.
// Feedback is present iff the proposal was not confirmed.
type ConfirmationVerdict struct {
	Confirmed bool   `json:"confirmed"`
	Feedback  string `json:"feedback,omitempty"`
}

// ProcessResult is the terminal output of a confirmation loop invocation.
type ProcessResult struct {
	Success      bool     `json:"success"`
	Value        string   `json:"value,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternatives,omitempty"`
	Attempts     int      `json:"attempts"`
	NeedsReview  bool     `json:"needs_review"`
}

// PendingReviewItem is a proposal awaiting a human accept/reject decision.
type PendingReviewItem struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	DocumentTitle string         `json:"document_title"`
	Kind          SuggestionKind `json:"kind"`
	Value         string         `json:"value"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Alternatives  []string       `json:"alternatives,omitempty"`
	Attempts      int            `json:"attempts"`
	LastFeedback  string         `json:"last_feedback,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// BlockedSuggestion is a deny-list entry preventing a name from being
// re-proposed. NormalizedName is the canonical comparison form.
type BlockedSuggestion struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Scope          Scope     `json:"scope"`
	Reason         string    `json:"reason,omitempty"`
	SourceDocument string    `json:"source_document,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
