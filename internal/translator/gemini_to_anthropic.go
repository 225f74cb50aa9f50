package translator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"
)

func init() {
	Register(FormatGemini, FormatAnthropic, TranslatorConfig{
		ResponseTransform: GeminiToAnthropicResponse,
		StreamTransform:   GeminiToAnthropicStream,
	})
}

// GeminiToAnthropicResponse converts a non-streaming Gemini response into an
// Anthropic Messages API response, mirroring GeminiToOpenAIResponse's
// candidate/part walk.
func GeminiToAnthropicResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	result := gjson.ParseBytes(responseBody)
	if errMsg := result.Get("error"); errMsg.Exists() {
		return responseBody, nil
	}

	candidates := result.Get("candidates")
	if !candidates.Exists() || len(candidates.Array()) == 0 {
		return responseBody, nil
	}
	candidate := candidates.Array()[0]
	parts := candidate.Get("content.parts").Array()

	blocks, hasToolUse := anthropicBlocksFromParts(parts)

	stopReason := "end_turn"
	if hasToolUse {
		stopReason = "tool_use"
	} else if fr := candidate.Get("finishReason"); fr.Exists() && fr.String() == "MAX_TOKENS" {
		stopReason = "max_tokens"
	}

	usage := result.Get("usageMetadata")
	response := map[string]interface{}{
		"id":          fmt.Sprintf("msg_%d", time.Now().UnixNano()),
		"type":        "message",
		"role":        "assistant",
		"model":       model,
		"content":     blocks,
		"stop_reason": stopReason,
		"usage": map[string]interface{}{
			"input_tokens":  usage.Get("promptTokenCount").Int(),
			"output_tokens": usage.Get("candidatesTokenCount").Int(),
		},
	}
	return json.Marshal(response)
}

func anthropicBlocksFromParts(parts []gjson.Result) ([]map[string]interface{}, bool) {
	var blocks []map[string]interface{}
	hasToolUse := false

	for _, part := range parts {
		if thought := part.Get("thought"); thought.Exists() {
			text := part.Get("text").String()
			block := map[string]interface{}{"type": "thinking", "thinking": text}
			if sig := part.Get("thoughtSignature").String(); sig != "" {
				block["signature"] = sig
				if SignatureStore != nil {
					SignatureStore.Put(text, sig, "")
				}
			}
			blocks = append(blocks, block)
			continue
		}
		if text := part.Get("text"); text.Exists() {
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": text.String()})
			continue
		}
		if fnCall := part.Get("functionCall"); fnCall.Exists() {
			hasToolUse = true
			id := fnCall.Get("id").String()
			if id == "" {
				id = fmt.Sprintf("toolu_%s_%d", fnCall.Get("name").String(), len(blocks))
			}
			var args interface{} = map[string]interface{}{}
			if fnArgs := fnCall.Get("args"); fnArgs.Exists() {
				args = fnArgs.Value()
			}
			if sig := part.Get("thoughtSignature").String(); sig != "" && SignatureStore != nil {
				SignatureStore.PutTool(id, sig)
			}
			blocks = append(blocks, map[string]interface{}{
				"type":  "tool_use",
				"id":    id,
				"name":  fnCall.Get("name").String(),
				"input": args,
			})
		}
	}
	return blocks, hasToolUse
}

// GeminiToAnthropicStream converts Gemini SSE chunks to Anthropic's
// content-block streaming event sequence (message_start ->
// content_block_start/delta/stop per block -> message_delta -> message_stop),
// reusing the same scan-line idiom as GeminiToOpenAIStream.
func GeminiToAnthropicStream(ctx context.Context, model string, reader io.Reader) (io.Reader, error) {
	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		writeEvent(pw, "message_start", map[string]interface{}{
			"type": "message_start",
			"message": map[string]interface{}{
				"id":      fmt.Sprintf("msg_%d", time.Now().UnixNano()),
				"type":    "message",
				"role":    "assistant",
				"model":   model,
				"content": []interface{}{},
				"usage":   map[string]interface{}{"input_tokens": 0, "output_tokens": 0},
			},
		})

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

		blockIndex := -1
		openBlockType := ""
		stopReason := "end_turn"
		var outputTokens int64

		closeBlock := func() {
			if blockIndex >= 0 {
				writeEvent(pw, "content_block_stop", map[string]interface{}{
					"type":  "content_block_stop",
					"index": blockIndex,
				})
				openBlockType = ""
			}
		}

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			jsonData := bytes.TrimPrefix(line, []byte("data: "))
			if bytes.Equal(jsonData, []byte("[DONE]")) {
				break
			}

			result := gjson.ParseBytes(jsonData)
			if usage := result.Get("usageMetadata"); usage.Exists() {
				outputTokens = usage.Get("candidatesTokenCount").Int()
			}

			for _, candidate := range result.Get("candidates").Array() {
				if fr := candidate.Get("finishReason"); fr.Exists() {
					if fr.String() == "MAX_TOKENS" {
						stopReason = "max_tokens"
					}
				}
				for _, part := range candidate.Get("content.parts").Array() {
					blockIndex, openBlockType = emitAnthropicStreamPart(pw, part, blockIndex, openBlockType, &stopReason, closeBlock)
				}
			}
		}

		closeBlock()

		writeEvent(pw, "message_delta", map[string]interface{}{
			"type":  "message_delta",
			"delta": map[string]interface{}{"stop_reason": stopReason},
			"usage": map[string]interface{}{"output_tokens": outputTokens},
		})
		writeEvent(pw, "message_stop", map[string]interface{}{"type": "message_stop"})
	}()

	return pr, nil
}

// emitAnthropicStreamPart writes the content_block_start/delta events for one
// Gemini part, switching block type (and closing the previous block) when the
// part kind changes. Returns the updated block index and open block type.
func emitAnthropicStreamPart(pw *io.PipeWriter, part gjson.Result, blockIndex int, openBlockType string, stopReason *string, closeBlock func()) (int, string) {
	switch {
	case part.Get("thought").Exists():
		if openBlockType != "thinking" {
			closeBlock()
			blockIndex++
			writeEvent(pw, "content_block_start", map[string]interface{}{
				"type":  "content_block_start",
				"index": blockIndex,
				"content_block": map[string]interface{}{
					"type": "thinking", "thinking": "",
				},
			})
			openBlockType = "thinking"
		}
		text := part.Get("text").String()
		if text != "" {
			writeEvent(pw, "content_block_delta", map[string]interface{}{
				"type":  "content_block_delta",
				"index": blockIndex,
				"delta": map[string]interface{}{"type": "thinking_delta", "thinking": text},
			})
		}
		if sig := part.Get("thoughtSignature").String(); sig != "" {
			writeEvent(pw, "content_block_delta", map[string]interface{}{
				"type":  "content_block_delta",
				"index": blockIndex,
				"delta": map[string]interface{}{"type": "signature_delta", "signature": sig},
			})
		}

	case part.Get("text").Exists():
		if openBlockType != "text" {
			closeBlock()
			blockIndex++
			writeEvent(pw, "content_block_start", map[string]interface{}{
				"type":  "content_block_start",
				"index": blockIndex,
				"content_block": map[string]interface{}{
					"type": "text", "text": "",
				},
			})
			openBlockType = "text"
		}
		writeEvent(pw, "content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": blockIndex,
			"delta": map[string]interface{}{"type": "text_delta", "text": part.Get("text").String()},
		})

	case part.Get("functionCall").Exists():
		*stopReason = "tool_use"
		closeBlock()
		blockIndex++
		fnCall := part.Get("functionCall")
		id := fnCall.Get("id").String()
		if id == "" {
			id = fmt.Sprintf("toolu_%s_%d", fnCall.Get("name").String(), blockIndex)
		}
		writeEvent(pw, "content_block_start", map[string]interface{}{
			"type":  "content_block_start",
			"index": blockIndex,
			"content_block": map[string]interface{}{
				"type": "tool_use", "id": id, "name": fnCall.Get("name").String(), "input": map[string]interface{}{},
			},
		})
		var argsJSON []byte
		if args := fnCall.Get("args"); args.Exists() {
			argsJSON, _ = json.Marshal(args.Value())
		} else {
			argsJSON = []byte("{}")
		}
		writeEvent(pw, "content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": blockIndex,
			"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": string(argsJSON)},
		})
		openBlockType = "tool_use"
	}
	return blockIndex, openBlockType
}

func writeEvent(w io.Writer, event string, payload map[string]interface{}) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
