package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// pumpNDJSON consumes an upstream Gemini SSE body and writes one NDJSON line
// per part per spec §4.5: thinking parts are dropped unless returnThoughts,
// text parts coalesce into `{text}` lines, functionCall parts become
// `{nodes: [{type: 5, tool_use: ...}], stop_reason: "tool_use"}` lines and are
// recorded into store so a later tool_result node can be rematerialized
// (request_builder.go), and stream end always emits a trailing
// `{text: "", stop_reason: "end_turn"}` line (unless the stream ended on a
// tool call, which already carries its own stop_reason).
func pumpNDJSON(w http.ResponseWriter, body io.Reader, conversationID, model string, returnThoughts bool, store *ConversationStore) error {
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	write := func(line OutputLine) error {
		if err := enc.Encode(line); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lastWasToolUse := false
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data: "):])
		if bytes.EqualFold(data, []byte("[DONE]")) {
			break
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			continue
		}
		resp, _ := obj["response"].(map[string]any)
		if resp == nil {
			resp = obj
		}
		cands, _ := resp["candidates"].([]any)
		if len(cands) == 0 {
			continue
		}
		cand, _ := cands[0].(map[string]any)
		content, _ := cand["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, rawPart := range parts {
			part, ok := rawPart.(map[string]any)
			if !ok {
				continue
			}
			isThought, _ := part["thought"].(bool)
			if isThought {
				if !returnThoughts {
					continue
				}
				if text, _ := part["text"].(string); text != "" {
					if err := write(OutputLine{Text: text}); err != nil {
						return err
					}
					lastWasToolUse = false
				}
				continue
			}
			if fc, ok := part["functionCall"].(map[string]any); ok {
				name, _ := fc["name"].(string)
				args := fc["args"]
				argsJSON, _ := json.Marshal(args)
				toolUseID, _ := fc["id"].(string)
				if toolUseID == "" {
					toolUseID = "toolu_" + uuid.NewString()
				}
				store.RecordToolCall(conversationID, toolUseID, name, string(argsJSON))
				node := Node{Type: NodeTypeToolUse, ToolUse: &ToolUseNode{
					ToolUseID: toolUseID,
					ToolName:  name,
					InputJSON: string(argsJSON),
				}}
				if err := write(OutputLine{Nodes: []Node{node}, StopReason: StopReasonToolUse}); err != nil {
					return err
				}
				lastWasToolUse = true
				continue
			}
			if text, _ := part["text"].(string); text != "" {
				if err := write(OutputLine{Text: text}); err != nil {
					return err
				}
				lastWasToolUse = false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ndjson: reading upstream stream: %w", err)
	}
	if !lastWasToolUse {
		return write(OutputLine{Text: "", StopReason: StopReasonEndTurn})
	}
	return nil
}
