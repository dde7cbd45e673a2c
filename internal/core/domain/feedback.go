package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Feedback is either the JSON object the analysis service produced, kept
// as-is, or the raw text it returned when that output was not an object.
type Feedback struct {
	// Document holds the compacted object. Unknown keys, missing scores and
	// fractional numbers are preserved exactly.
	Document json.RawMessage
	RawText  string
}

// StructuredFeedback wraps an already decoded JSON object.
func StructuredFeedback(document []byte) (Feedback, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, document); err != nil {
		return Feedback{}, fmt.Errorf("compact feedback: %w", err)
	}
	if buf.Len() == 0 || buf.Bytes()[0] != '{' {
		return Feedback{}, errors.New("feedback is not a JSON object")
	}
	return Feedback{Document: buf.Bytes()}, nil
}

func (f Feedback) IsRaw() bool {
	return f.Document == nil
}

// Analysis is a typed view over the known sections of the document. Absent
// scores stay nil; filling them in is left to presentation.
func (f Feedback) Analysis() (*AnalysisFeedback, error) {
	if f.IsRaw() {
		return nil, errors.New("raw text feedback has no sections")
	}
	var view AnalysisFeedback
	if err := json.Unmarshal(f.Document, &view); err != nil {
		return &view, fmt.Errorf("decode feedback sections: %w", err)
	}
	return &view, nil
}

// OverallScore reports the top-level score when the document carries one.
func (f Feedback) OverallScore() (float64, bool) {
	view, err := f.Analysis()
	if err != nil || view.OverallScore == nil {
		return 0, false
	}
	return *view.OverallScore, true
}

type AnalysisFeedback struct {
	OverallScore *float64       `json:"overallScore,omitempty"`
	ATS          *ScoredSection `json:"ATS,omitempty"`
	ToneAndStyle *ScoredSection `json:"toneAndStyle,omitempty"`
	Content      *ScoredSection `json:"content,omitempty"`
	Structure    *ScoredSection `json:"structure,omitempty"`
	Skills       *ScoredSection `json:"skills,omitempty"`
}

type ScoredSection struct {
	Score *float64 `json:"score,omitempty"`
	Tips  []Tip    `json:"tips,omitempty"`
}

type Tip struct {
	Type        string `json:"type"`
	Tip         string `json:"tip"`
	Explanation string `json:"explanation,omitempty"`
}

type rawTextFeedback struct {
	Text string `json:"text"`
}

func (f Feedback) MarshalJSON() ([]byte, error) {
	if !f.IsRaw() {
		return f.Document, nil
	}
	return json.Marshal(rawTextFeedback{Text: f.RawText})
}

// UnmarshalJSON treats an object whose only key is a string "text" as the
// raw-text variant and any other object as structured feedback.
func (f *Feedback) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("decode feedback: %w", err)
	}
	if keys == nil {
		return errors.New("decode feedback: null")
	}
	if raw, ok := keys["text"]; ok && len(keys) == 1 {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			*f = Feedback{RawText: text}
			return nil
		}
	}

	structured, err := StructuredFeedback(data)
	if err != nil {
		return fmt.Errorf("decode feedback: %w", err)
	}
	*f = structured
	return nil
}
