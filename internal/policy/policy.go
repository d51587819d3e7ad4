// Package policy decides what happens to multi-candidate proposals:
// auto-apply, queue for human review, discard, or confirm-all-or-nothing.
package policy

import (
	"github.com/rotisserie/eris"

	"github.com/shelfwise/shelfwise/internal/model"
)

// Mode selects how a proposal kind treats multi-candidate analyses.
type Mode string

// Candidate handling modes.
const (
	// ModeTiered partitions candidates by confidence: auto-apply above the
	// high threshold, review between low and high, discard below low.
	ModeTiered Mode = "tiered"

	// ModeConfirmAll runs every candidate through the confirmation tier and
	// applies them atomically only if confirmed as a set.
	ModeConfirmAll Mode = "confirm_all"
)

// Config holds the thresholds and mode for one proposal kind.
type Config struct {
	Mode          Mode    `yaml:"mode" mapstructure:"mode"`
	HighThreshold float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	LowThreshold  float64 `yaml:"low_threshold" mapstructure:"low_threshold"`

	// ReviewTier disables the middle tier when false: candidates below the
	// high threshold are discarded instead of queued.
	ReviewTier bool `yaml:"review_tier" mapstructure:"review_tier"`
}

// Validate checks threshold ordering and range.
func (c Config) Validate() error {
	if c.Mode != ModeTiered && c.Mode != ModeConfirmAll {
		return eris.Errorf("policy: unknown mode %q", c.Mode)
	}
	if c.HighThreshold < 0 || c.HighThreshold > 1 || c.LowThreshold < 0 || c.LowThreshold > 1 {
		return eris.New("policy: thresholds must be in [0,1]")
	}
	if c.LowThreshold > c.HighThreshold {
		return eris.Errorf("policy: low threshold %.2f exceeds high %.2f", c.LowThreshold, c.HighThreshold)
	}
	return nil
}

// Partition is the three-way split of candidates under ModeTiered.
type Partition struct {
	AutoApply []model.Candidate
	Review    []model.Candidate
	Discard   []model.Candidate
}

// PartitionCandidates splits candidates into disjoint sets by confidence
// against the configured thresholds.
func PartitionCandidates(candidates []model.Candidate, cfg Config) Partition {
	var p Partition
	for _, c := range candidates {
		switch {
		case c.Confidence >= cfg.HighThreshold:
			p.AutoApply = append(p.AutoApply, c)
		case cfg.ReviewTier && c.Confidence >= cfg.LowThreshold:
			p.Review = append(p.Review, c)
		default:
			p.Discard = append(p.Discard, c)
		}
	}
	return p
}
