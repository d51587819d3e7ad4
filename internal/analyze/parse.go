package analyze

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shelfwise/shelfwise/internal/model"
)

// cleanJSON strips markdown code fences and surrounding prose so the model
// output can be unmarshalled.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// strictUnmarshal decodes into out rejecting unknown fields, so a drifting
// model output schema surfaces as a validation failure instead of being
// silently defaulted.
func strictUnmarshal(kind model.SuggestionKind, text string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(cleanJSON(text))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return model.NewValidationError(kind, err.Error())
	}
	return nil
}

type titleResponse struct {
	Title        string   `json:"title"`
	Reasoning    string   `json:"reasoning"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternatives"`
}

func parseTitleResponse(text string) (*model.AnalysisResult, error) {
	var resp titleResponse
	if err := strictUnmarshal(model.KindTitle, text, &resp); err != nil {
		return nil, err
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return nil, model.NewValidationError(model.KindTitle, "confidence out of range")
	}
	return &model.AnalysisResult{
		Value:        strings.TrimSpace(resp.Title),
		Reasoning:    resp.Reasoning,
		Confidence:   resp.Confidence,
		Alternatives: resp.Alternatives,
	}, nil
}

type entityResponse struct {
	Candidates []struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"candidates"`
	Reasoning string `json:"reasoning"`
}

func parseEntityResponse(kind model.SuggestionKind, text string) (*model.AnalysisResult, error) {
	var resp entityResponse
	if err := strictUnmarshal(kind, text, &resp); err != nil {
		return nil, err
	}

	result := &model.AnalysisResult{Reasoning: resp.Reasoning}
	for _, c := range resp.Candidates {
		value := strings.TrimSpace(c.Value)
		if value == "" {
			continue
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return nil, model.NewValidationError(kind, "candidate confidence out of range")
		}
		result.Candidates = append(result.Candidates, model.Candidate{
			Value:      value,
			Confidence: c.Confidence,
			Reasoning:  c.Reasoning,
		})
	}
	return result, nil
}

type confirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Feedback  string `json:"feedback"`
}

func parseConfirmResponse(kind model.SuggestionKind, text string) (*model.ConfirmationVerdict, error) {
	var resp confirmResponse
	if err := strictUnmarshal(kind, text, &resp); err != nil {
		return nil, err
	}
	if !resp.Confirmed && resp.Feedback == "" {
		resp.Feedback = "rejected without feedback"
	}
	return &model.ConfirmationVerdict{Confirmed: resp.Confirmed, Feedback: resp.Feedback}, nil
}
