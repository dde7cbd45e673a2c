package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnalysisResponse mirrors {message: {content: string | [{text}, ...]}}.
type AnalysisResponse struct {
	Message AnalysisMessage `json:"message"`
}

type AnalysisMessage struct {
	Content MessageContent `json:"content"`
}

type ContentBlock struct {
	Text string `json:"text"`
}

// MessageContent holds either a single text payload or ordered blocks.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

// Text returns the string payload, or the first block's text.
func (r *AnalysisResponse) Text() string {
	if r == nil {
		return ""
	}
	if r.Message.Content.Text != "" {
		return r.Message.Content.Text
	}
	if len(r.Message.Content.Blocks) > 0 {
		return r.Message.Content.Blocks[0].Text
	}
	return ""
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = MessageContent{}
		return nil
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("decode message content: %w", err)
		}
		*c = MessageContent{Text: text}
		return nil
	case trimmed[0] == '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return fmt.Errorf("decode message content blocks: %w", err)
		}
		*c = MessageContent{Blocks: blocks}
		return nil
	default:
		return fmt.Errorf("decode message content: unsupported shape %q", string(trimmed[:1]))
	}
}
