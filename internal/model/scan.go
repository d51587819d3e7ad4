package model

import "time"

// ScanStatus is the lifecycle state of a bootstrap scan.
type ScanStatus string

// Scan statuses. Completed, Cancelled and Error are terminal.
const (
	ScanStatusIdle      ScanStatus = "idle"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusCancelled ScanStatus = "cancelled"
	ScanStatusError     ScanStatus = "error"
)

// Terminal reports whether the status is a terminal state.
func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusCancelled, ScanStatusError:
		return true
	}
	return false
}

// ScanProgress is a point-in-time snapshot of a bootstrap scan. It is
// written only by the scan goroutine and read by any number of pollers;
// readers always receive a whole copy, never a partially updated record.
type ScanProgress struct {
	Status           ScanStatus             `json:"status"`
	Kind             SuggestionKind         `json:"kind,omitempty"`
	Total            int                    `json:"total"`
	Processed        int                    `json:"processed"`
	SuggestionsFound int                    `json:"suggestions_found"`
	ByKind           map[SuggestionKind]int `json:"by_kind,omitempty"`
	Errors           int                    `json:"errors"`
	CurrentDocID     string                 `json:"current_doc_id,omitempty"`
	CurrentDocTitle  string                 `json:"current_doc_title,omitempty"`
	StartedAt        time.Time              `json:"started_at,omitempty"`
	CompletedAt      time.Time              `json:"completed_at,omitempty"`
	Message          string                 `json:"message,omitempty"`
	AvgSecsPerDoc    float64                `json:"avg_secs_per_doc"`
	ETASeconds       float64                `json:"eta_seconds"`
}

