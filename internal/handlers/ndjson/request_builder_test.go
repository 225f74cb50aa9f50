package ndjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOpenAIRequestPlainMessage(t *testing.T) {
	store := NewConversationStore()
	req := ChatStreamRequest{
		Message:        "hello there",
		ConversationID: "conv-1",
		Model:          "gemini-2.5-pro",
	}

	raw, err := buildOpenAIRequest(req, store)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "gemini-2.5-pro", body["model"])
	assert.Equal(t, true, body["stream"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	m := msgs[0].(map[string]any)
	assert.Equal(t, "user", m["role"])
	assert.Equal(t, "hello there", m["content"])
}

func TestBuildOpenAIRequestWithHistory(t *testing.T) {
	store := NewConversationStore()
	req := ChatStreamRequest{
		Message:        "follow up",
		ConversationID: "conv-1",
		ChatHistory: []json.RawMessage{
			json.RawMessage(`{"role":"user","content":"first turn"}`),
			json.RawMessage(`{"role":"assistant","content":"first reply"}`),
		},
	}

	raw, err := buildOpenAIRequest(req, store)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "follow up", msgs[2].(map[string]any)["content"])
}

func TestBuildOpenAIRequestToolResultReconstruction(t *testing.T) {
	store := NewConversationStore()
	store.RecordToolCall("conv-1", "toolu_1", "read_file", `{"path":"a.go"}`)

	req := ChatStreamRequest{
		ConversationID: "conv-1",
		Nodes: []Node{
			{Type: NodeTypeToolResult, ToolResultNode: &ToolResultNode{
				ToolUseID: "toolu_1",
				Content:   "file contents here",
			}},
		},
	}

	raw, err := buildOpenAIRequest(req, store)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)

	assistant := msgs[0].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "read_file", fn["name"])
	assert.Equal(t, `{"path":"a.go"}`, fn["arguments"])

	toolMsg := msgs[1].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "toolu_1", toolMsg["tool_call_id"])
	assert.Equal(t, "file contents here", toolMsg["content"])
}

func TestBuildOpenAIRequestUnknownToolResultFallsBack(t *testing.T) {
	store := NewConversationStore()
	req := ChatStreamRequest{
		ConversationID: "conv-1",
		Nodes: []Node{
			{Type: NodeTypeToolResult, ToolResultNode: &ToolResultNode{
				ToolUseID: "toolu_missing",
				Content:   "result",
			}},
		},
	}

	raw, err := buildOpenAIRequest(req, store)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	msgs := body["messages"].([]any)
	assistant := msgs[0].(map[string]any)
	fn := assistant["tool_calls"].([]any)[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "unknown_tool", fn["name"])
	assert.Equal(t, "{}", fn["arguments"])
}

func TestOpenAIToolDeclarations(t *testing.T) {
	defs := []ToolDefinition{
		{Name: "read_file", Description: "reads a file", Parameters: json.RawMessage(`{"type":"object"}`)},
	}
	out := openAIToolDeclarations(defs)
	require.Len(t, out, 1)
	assert.Equal(t, "function", out[0]["type"])
	fn := out[0]["function"].(map[string]any)
	assert.Equal(t, "read_file", fn["name"])
	assert.Equal(t, "reads a file", fn["description"])

	assert.Nil(t, openAIToolDeclarations(nil))
}
