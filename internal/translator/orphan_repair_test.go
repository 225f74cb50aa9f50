package translator

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/stretchr/testify/require"
)

func TestRepairOrphanToolBlocksDropsUnmatchedResult(t *testing.T) {
	input := []byte(`{
		"messages": [
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_missing", "content": "stray"}
			]},
			{"role": "user", "content": "hello"}
		]
	}`)

	out := RepairOrphanToolBlocks(input)
	result := gjson.ParseBytes(out)

	require.Equal(t, 1, len(result.Get("messages").Array()), "message with only an orphan tool_result should be dropped entirely")
	require.Equal(t, "hello", result.Get("messages.0.content").String())
}

func TestRepairOrphanToolBlocksSynthesizesMissingResult(t *testing.T) {
	input := []byte(`{
		"messages": [
			{"role": "user", "content": "call a tool please"},
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "search", "input": {}}
			]}
		]
	}`)

	out := RepairOrphanToolBlocks(input)
	result := gjson.ParseBytes(out)
	messages := result.Get("messages").Array()

	require.Len(t, messages, 3, "a synthetic tool_result message should be appended after the dangling tool_use")
	last := messages[2]
	require.Equal(t, "user", last.Get("role").String())
	require.Equal(t, "toolu_1", last.Get("content.0.tool_use_id").String())
	require.True(t, last.Get("content.0.is_error").Bool())
}

func TestRepairOrphanToolBlocksLeavesMatchedPairsAlone(t *testing.T) {
	input := []byte(`{
		"messages": [
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "search", "input": {}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "result"}
			]}
		]
	}`)

	out := RepairOrphanToolBlocks(input)
	result := gjson.ParseBytes(out)
	require.Len(t, result.Get("messages").Array(), 2)
	require.Equal(t, "result", result.Get("messages.1.content.0.content").String())
}
