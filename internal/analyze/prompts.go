package analyze

import (
	"fmt"
	"strings"

	"github.com/shelfwise/shelfwise/internal/model"
)

// maxContentChars bounds how much document text is sent to the model.
const maxContentChars = 4000

const titleSystemPrompt = `You propose concise, descriptive titles for archived documents. Respond with a valid JSON object: {"title": "<proposed title>", "reasoning": "<one sentence>", "confidence": <0.0-1.0>, "alternatives": ["<other plausible title>", ...]}. If no good title can be derived, use an empty string for "title".`

const entitySystemPromptFmt = `You identify the %s of archived documents. Propose only names that plausibly recur across an archive. Never propose a name listed as suppressed or already proposed. Respond with a valid JSON object: {"candidates": [{"value": "<name>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}], "reasoning": "<overall rationale>"}. Return an empty candidates array when nothing fits.`

const confirmSystemPromptFmt = `You independently validate a proposed document %s. Be strict: confirm only when the proposal is clearly supported by the document text. Respond with a valid JSON object: {"confirmed": <true|false>, "feedback": "<why not, when rejecting>"}.`

// entityNouns maps suggestion kinds to the noun used in prompts.
var entityNouns = map[model.SuggestionKind]string{
	model.KindCorrespondent: "correspondent (sender or institution)",
	model.KindDocumentType:  "document type (invoice, contract, letter, ...)",
	model.KindTag:           "topical tags",
	model.KindTitle:         "title",
}

// PromptContext carries the entity names the analysis prompt must reference
// so the model avoids re-proposing known, suppressed, or in-run names.
type PromptContext struct {
	Existing        []string
	Suppressed      []string
	AlreadyProposed []string
}

func buildTitleUserPrompt(title, content, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current title: %s\n\n", title)
	fmt.Fprintf(&b, "Document content (first %d chars):\n%s\n", maxContentChars, truncate(content, maxContentChars))
	if feedback != "" {
		fmt.Fprintf(&b, "\nYour previous proposal was rejected with this feedback:\n%s\n", feedback)
	}
	return b.String()
}

func buildEntityUserPrompt(doc DocumentContext, pc PromptContext, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document title: %s\n\n", doc.Title)
	fmt.Fprintf(&b, "Document content (first %d chars):\n%s\n", maxContentChars, truncate(doc.Content, maxContentChars))

	writeList := func(label string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", label)
		for _, n := range names {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	writeList("Existing names (prefer reusing these)", pc.Existing)
	writeList("Suppressed names (never propose)", pc.Suppressed)
	writeList("Already proposed in this run (never propose)", pc.AlreadyProposed)

	if feedback != "" {
		fmt.Fprintf(&b, "\nYour previous proposal was rejected with this feedback:\n%s\n", feedback)
	}
	return b.String()
}

func buildConfirmUserPrompt(kind model.SuggestionKind, doc DocumentContext, analysis *model.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document title: %s\n\n", doc.Title)
	fmt.Fprintf(&b, "Document content (first %d chars):\n%s\n", maxContentChars, truncate(doc.Content, maxContentChars))

	if analysis.Abstained() {
		fmt.Fprintf(&b, "\nProposed %s: (none; the analysis produced no usable proposal)\n", kind)
		return b.String()
	}

	if analysis.Value != "" {
		fmt.Fprintf(&b, "\nProposed %s: %s\n", kind, analysis.Value)
	}
	for _, c := range analysis.Candidates {
		fmt.Fprintf(&b, "\nProposed %s: %s (confidence %.2f)\n", kind, c.Value, c.Confidence)
	}
	if analysis.Reasoning != "" {
		fmt.Fprintf(&b, "\nProposer's reasoning: %s\n", analysis.Reasoning)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
