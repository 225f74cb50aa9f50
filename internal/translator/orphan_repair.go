package translator

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RepairOrphanToolBlocks scans an Anthropic-shaped "messages" array for
// tool_use blocks with no matching tool_result (most often the last assistant
// turn of a conversation that was interrupted mid-tool-call) and for
// tool_result blocks with no matching preceding tool_use (a truncated or
// hand-edited history). A tool_use only counts as orphaned once the whole
// array has been scanned and no later message supplied its tool_result; each
// still-pending tool_use then gets a synthetic "cancelled"-content
// tool_result appended as a trailing message so the upstream model never
// sees a dangling call. Orphan tool_result blocks are dropped outright.
// rawJSON is returned unchanged if it has no "messages" array or is
// malformed.
func RepairOrphanToolBlocks(rawJSON []byte) []byte {
	messages := gjson.GetBytes(rawJSON, "messages")
	if !messages.Exists() || !messages.IsArray() {
		return rawJSON
	}

	raw := messages.Array()
	var repaired []interface{}
	pendingToolUse := make(map[string]bool)

	for _, msg := range raw {
		content := msg.Get("content")

		if !content.IsArray() {
			var decoded interface{}
			json.Unmarshal([]byte(msg.Raw), &decoded)
			repaired = append(repaired, decoded)
			continue
		}

		var keptBlocks []interface{}
		for _, block := range content.Array() {
			switch block.Get("type").String() {
			case "tool_use":
				id := block.Get("id").String()
				if id != "" {
					pendingToolUse[id] = true
				}
				var decoded interface{}
				json.Unmarshal([]byte(block.Raw), &decoded)
				keptBlocks = append(keptBlocks, decoded)

			case "tool_result":
				id := block.Get("tool_use_id").String()
				if id != "" && !pendingToolUse[id] {
					continue // orphan tool_result: drop
				}
				delete(pendingToolUse, id)
				var decoded interface{}
				json.Unmarshal([]byte(block.Raw), &decoded)
				keptBlocks = append(keptBlocks, decoded)

			default:
				var decoded interface{}
				json.Unmarshal([]byte(block.Raw), &decoded)
				keptBlocks = append(keptBlocks, decoded)
			}
		}

		if len(keptBlocks) == 0 {
			continue
		}
		var decodedMsg map[string]interface{}
		json.Unmarshal([]byte(msg.Raw), &decodedMsg)
		decodedMsg["content"] = keptBlocks
		repaired = append(repaired, decodedMsg)
	}

	if len(pendingToolUse) > 0 {
		repaired = append(repaired, syntheticToolResults(pendingToolUse))
	}

	out, err := json.Marshal(repaired)
	if err != nil {
		return rawJSON
	}
	patched, err := sjson.SetRawBytes(rawJSON, "messages", out)
	if err != nil {
		return rawJSON
	}
	return patched
}

// syntheticToolResults builds a single user-role message carrying a
// cancelled-tool_result block for every still-pending tool_use id, so the
// next turn in the repaired history is never missing a required result.
func syntheticToolResults(pending map[string]bool) map[string]interface{} {
	var blocks []interface{}
	for id := range pending {
		blocks = append(blocks, map[string]interface{}{
			"type":        "tool_result",
			"tool_use_id": id,
			"content":     "cancelled: no result was recorded for this tool call",
			"is_error":    true,
		})
	}
	return map[string]interface{}{
		"role":    "user",
		"content": blocks,
	}
}
