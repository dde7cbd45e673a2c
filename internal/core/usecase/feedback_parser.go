package usecase

import (
	"encoding/json"
	"strings"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

// ParseFeedback keeps analysis output that is a single JSON object whole,
// without normalizing it. Anything else is kept verbatim as raw-text
// feedback; it never fails.
func ParseFeedback(raw string) domain.Feedback {
	candidate := stripCodeFence(raw)
	if !strings.HasPrefix(candidate, "{") {
		return domain.Feedback{RawText: raw}
	}

	// Unmarshal rejects trailing data, so only a single object gets through.
	var object map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &object); err != nil {
		return domain.Feedback{RawText: raw}
	}
	feedback, err := domain.StructuredFeedback([]byte(candidate))
	if err != nil {
		return domain.Feedback{RawText: raw}
	}
	return feedback
}

// stripCodeFence removes a ```json ... ``` wrapper around the payload.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		lang := text[:idx]
		if len(lang) < 20 && !strings.ContainsAny(lang, " {") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
