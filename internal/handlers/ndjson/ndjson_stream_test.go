package ndjson

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, body string) []OutputLine {
	t.Helper()
	var lines []OutputLine
	dec := json.NewDecoder(strings.NewReader(body))
	for dec.More() {
		var l OutputLine
		require.NoError(t, dec.Decode(&l))
		lines = append(lines, l)
	}
	return lines
}

func sseFrame(resp map[string]any) string {
	b, _ := json.Marshal(map[string]any{"response": resp})
	return "data: " + string(b) + "\n"
}

func TestPumpNDJSONTextThenEndTurn(t *testing.T) {
	upstream := sseFrame(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"text": "hello"},
			}}},
		},
	})

	w := httptest.NewRecorder()
	store := NewConversationStore()
	err := pumpNDJSON(w, strings.NewReader(upstream), "conv-1", "gemini-2.5-pro", false, store)
	require.NoError(t, err)

	lines := decodeLines(t, w.Body.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "hello", lines[0].Text)
	assert.Equal(t, StopReasonEndTurn, lines[1].StopReason)
}

func TestPumpNDJSONDropsThoughtsByDefault(t *testing.T) {
	upstream := sseFrame(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"text": "thinking...", "thought": true},
				map[string]any{"text": "final answer"},
			}}},
		},
	})

	w := httptest.NewRecorder()
	store := NewConversationStore()
	err := pumpNDJSON(w, strings.NewReader(upstream), "conv-1", "gemini-2.5-pro", false, store)
	require.NoError(t, err)

	lines := decodeLines(t, w.Body.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "final answer", lines[0].Text)
	assert.Equal(t, StopReasonEndTurn, lines[1].StopReason)
}

func TestPumpNDJSONIncludesThoughtsWhenEnabled(t *testing.T) {
	upstream := sseFrame(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"text": "thinking...", "thought": true},
			}}},
		},
	})

	w := httptest.NewRecorder()
	store := NewConversationStore()
	err := pumpNDJSON(w, strings.NewReader(upstream), "conv-1", "gemini-2.5-pro", true, store)
	require.NoError(t, err)

	lines := decodeLines(t, w.Body.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "thinking...", lines[0].Text)
}

func TestPumpNDJSONFunctionCallRecordsToolUseAndSkipsEndTurn(t *testing.T) {
	upstream := sseFrame(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"functionCall": map[string]any{
					"id":   "toolu_1",
					"name": "read_file",
					"args": map[string]any{"path": "a.go"},
				}},
			}}},
		},
	})

	w := httptest.NewRecorder()
	store := NewConversationStore()
	err := pumpNDJSON(w, strings.NewReader(upstream), "conv-1", "gemini-2.5-pro", false, store)
	require.NoError(t, err)

	lines := decodeLines(t, w.Body.String())
	require.Len(t, lines, 1, "a tool_use line carries its own stop_reason; no trailing end_turn line")
	require.Len(t, lines[0].Nodes, 1)
	node := lines[0].Nodes[0]
	assert.Equal(t, NodeTypeToolUse, node.Type)
	require.NotNil(t, node.ToolUse)
	assert.Equal(t, "toolu_1", node.ToolUse.ToolUseID)
	assert.Equal(t, "read_file", node.ToolUse.ToolName)
	assert.Equal(t, StopReasonToolUse, lines[0].StopReason)

	name, args, ok := store.ToolCall("conv-1", "toolu_1")
	require.True(t, ok)
	assert.Equal(t, "read_file", name)
	assert.JSONEq(t, `{"path":"a.go"}`, args)
}

func TestPumpNDJSONSynthesizesMissingToolUseID(t *testing.T) {
	upstream := sseFrame(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"functionCall": map[string]any{
					"name": "list_dir",
					"args": map[string]any{},
				}},
			}}},
		},
	})

	w := httptest.NewRecorder()
	store := NewConversationStore()
	err := pumpNDJSON(w, strings.NewReader(upstream), "conv-1", "gemini-2.5-pro", false, store)
	require.NoError(t, err)

	lines := decodeLines(t, w.Body.String())
	require.Len(t, lines, 1)
	id := lines[0].Nodes[0].ToolUse.ToolUseID
	assert.True(t, strings.HasPrefix(id, "toolu_"))
	_, _, ok := store.ToolCall("conv-1", id)
	assert.True(t, ok)
}

func TestPumpNDJSONIgnoresNonDataLinesAndDoneSentinel(t *testing.T) {
	body := "event: ping\n" +
		sseFrame(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{
					map[string]any{"text": "hi"},
				}}},
			},
		}) +
		"data: [DONE]\n"

	w := httptest.NewRecorder()
	store := NewConversationStore()
	err := pumpNDJSON(w, strings.NewReader(body), "conv-1", "gemini-2.5-pro", false, store)
	require.NoError(t, err)

	lines := decodeLines(t, w.Body.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "hi", lines[0].Text)
	assert.Equal(t, StopReasonEndTurn, lines[1].StopReason)
}
