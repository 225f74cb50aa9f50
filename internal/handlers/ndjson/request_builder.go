package ndjson

import (
	"encoding/json"
)

// buildOpenAIRequest projects a ChatStreamRequest onto the OpenAI chat-
// completions shape internal/translator already knows how to turn into the
// upstream Gemini envelope (OpenAIToGeminiRequest), so the NDJSON bridge
// reuses the same translation path as internal/handlers/openai instead of
// hand-rolling a fourth dict-walker.
func buildOpenAIRequest(req ChatStreamRequest, store *ConversationStore) ([]byte, error) {
	var messages []map[string]any

	for _, raw := range req.ChatHistory {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil && len(m) > 0 {
			messages = append(messages, m)
		}
	}

	if msgs := toolResultMessages(req, store); len(msgs) > 0 {
		messages = append(messages, msgs...)
	} else if req.Message != "" {
		messages = append(messages, map[string]any{"role": "user", "content": req.Message})
	}

	body := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   true,
	}
	if tools := openAIToolDeclarations(req.ToolDefinitions); len(tools) > 0 {
		body["tools"] = tools
	}
	return json.Marshal(body)
}

// toolResultMessages reconstructs the OpenAI-shape {assistant tool_calls},
// {tool result} message pair(s) for every tool_result_node in req.Nodes,
// looking up each tool_use_id's original name/arguments in store (spec §4.5:
// "reconstruct an OpenAI-shape tool-use assistant message + tool result").
func toolResultMessages(req ChatStreamRequest, store *ConversationStore) []map[string]any {
	var calls []map[string]any
	var results []map[string]any
	for _, n := range req.Nodes {
		if n.Type != NodeTypeToolResult || n.ToolResultNode == nil {
			continue
		}
		tr := n.ToolResultNode
		name, args, ok := store.ToolCall(req.ConversationID, tr.ToolUseID)
		if !ok {
			name, args = "unknown_tool", "{}"
		}
		calls = append(calls, map[string]any{
			"id":   tr.ToolUseID,
			"type": "function",
			"function": map[string]any{
				"name":      name,
				"arguments": args,
			},
		})
		results = append(results, map[string]any{
			"role":         "tool",
			"tool_call_id": tr.ToolUseID,
			"content":      tr.Content,
		})
	}
	if len(calls) == 0 {
		return nil
	}
	msgs := []map[string]any{{"role": "assistant", "content": nil, "tool_calls": calls}}
	return append(msgs, results...)
}

// openAIToolDeclarations converts the bridge's flat tool-definition list into
// OpenAI's `{type: "function", function: {name, description, parameters}}`
// tool entries, the shape internal/translator's applyToolDeclarations reads.
func openAIToolDeclarations(defs []ToolDefinition) []map[string]any {
	if len(defs) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		fn := map[string]any{"name": d.Name}
		if d.Description != "" {
			fn["description"] = d.Description
		}
		if len(d.Parameters) > 0 {
			fn["parameters"] = json.RawMessage(d.Parameters)
		}
		out = append(out, map[string]any{"type": "function", "function": fn})
	}
	return out
}
