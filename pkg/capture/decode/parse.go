package decode

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/trainloop/capture/pkg/capture"
)

// ParsedRequest is the generic {model, messages, params} view of an LLM
// request body.
type ParsedRequest struct {
	Model       string
	Messages    []capture.Message
	ModelParams map[string]any
}

// ParseRequest recognizes a JSON object carrying both "model" and
// "messages". Every other key becomes a model parameter. It returns nil for
// anything else.
func ParseRequest(body []byte) *ParsedRequest {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	modelVal, hasModel := raw["model"]
	messagesVal, hasMessages := raw["messages"]
	if !hasModel || !hasMessages {
		return nil
	}
	items, ok := messagesVal.([]any)
	if !ok {
		return nil
	}

	model, _ := modelVal.(string)
	messages := make([]capture.Message, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		messages = append(messages, capture.Message{
			Role:    role,
			Content: flattenContent(m["content"]),
		})
	}

	params := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "model" || k == "messages" {
			continue
		}
		params[k] = v
	}

	return &ParsedRequest{
		Model:       model,
		Messages:    messages,
		ModelParams: params,
	}
}

// flattenContent turns a message content value into a string. Content-part
// arrays keep their text parts; other shapes are kept as compact JSON.
func flattenContent(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		var parts []string
		for _, p := range c {
			if pm, ok := p.(map[string]any); ok {
				if text, ok := pm["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "")
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParseResponse recognizes {"content": string} and
// {"content": {"content": string}}, the shape produced by Reconstruct, along
// with the single-shot provider shapes Reconstruct may pass through
// unchanged. It returns nil for anything else.
func ParseResponse(body []byte) *capture.Output {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	if content, ok := raw["content"]; ok {
		switch c := content.(type) {
		case string:
			return &capture.Output{Content: c}
		case map[string]any:
			if nested, ok := c["content"].(string); ok {
				return &capture.Output{Content: nested}
			}
		case []any:
			// Anthropic messages: [{"type":"text","text":"..."}]
			if text, ok := joinTextBlocks(c); ok {
				return &capture.Output{Content: text}
			}
		}
	}

	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if text, ok := msg["content"].(string); ok {
					return &capture.Output{Content: text}
				}
			}
			if delta, ok := choice["delta"].(map[string]any); ok {
				if text, ok := delta["content"].(string); ok {
					return &capture.Output{Content: text}
				}
			}
		}
	}

	return nil
}

func joinTextBlocks(blocks []any) (string, bool) {
	var sb strings.Builder
	found := false
	for _, b := range blocks {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := bm["text"].(string); ok {
			sb.WriteString(text)
			found = true
		}
	}
	return sb.String(), found
}
