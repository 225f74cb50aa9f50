package translator

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func init() {
	Register(FormatAnthropic, FormatGemini, TranslatorConfig{
		RequestTransform: AnthropicToGeminiRequest,
	})
}

// AnthropicToGeminiRequest converts an Anthropic Messages API request into
// the upstream Gemini-shaped wire format, mirroring OpenAIToGeminiRequest's
// contents/systemInstruction/generationConfig assembly.
func AnthropicToGeminiRequest(model string, rawJSON []byte, stream bool) []byte { // stream kept for interface compatibility
	rawJSON = RepairOrphanToolBlocks(rawJSON)
	out := `{"contents":[]}`

	genConfig := buildAnthropicGenerationConfig(rawJSON)
	genConfigJSON, _ := json.Marshal(genConfig)
	out, _ = sjson.SetRaw(out, "generationConfig", string(genConfigJSON))

	contents, systemInstructions := translateAnthropicMessages(rawJSON)
	if shouldMergeAdjacent(rawJSON) {
		contents = mergeConsecutiveMessages(contents)
	}

	contentsJSON, _ := json.Marshal(contents)
	out, _ = sjson.SetRaw(out, "contents", string(contentsJSON))

	if sys := gjson.GetBytes(rawJSON, "system"); sys.Exists() {
		if sys.IsArray() {
			for _, block := range sys.Array() {
				systemInstructions = append(systemInstructions, map[string]interface{}{
					"text": sanitizeText(block.Get("text").String()),
				})
			}
		} else if sys.String() != "" {
			systemInstructions = append([]interface{}{
				map[string]interface{}{"text": sanitizeText(sys.String())},
			}, systemInstructions...)
		}
	}

	if len(systemInstructions) > 0 {
		ensureDoneInstruction(&systemInstructions)
		systemInstructions = sanitizeParts(systemInstructions)
		sysJSON, _ := json.Marshal(map[string]interface{}{"parts": systemInstructions})
		out, _ = sjson.SetRaw(out, "systemInstruction", string(sysJSON))
	}

	out = applyAnthropicTools(out, rawJSON)

	return []byte(out)
}

func buildAnthropicGenerationConfig(rawJSON []byte) map[string]interface{} {
	genConfig := map[string]interface{}{"candidateCount": 1}

	if maxTokens := gjson.GetBytes(rawJSON, "max_tokens"); maxTokens.Exists() {
		genConfig["maxOutputTokens"] = maxTokens.Int()
	}
	if temp := gjson.GetBytes(rawJSON, "temperature"); temp.Exists() {
		genConfig["temperature"] = temp.Value()
	}
	if topP := gjson.GetBytes(rawJSON, "top_p"); topP.Exists() {
		genConfig["topP"] = topP.Value()
	}
	if topK := gjson.GetBytes(rawJSON, "top_k"); topK.Exists() {
		genConfig["topK"] = topK.Int()
	}
	if stop := gjson.GetBytes(rawJSON, "stop_sequences"); stop.Exists() && stop.IsArray() {
		var seqs []string
		for _, s := range stop.Array() {
			seqs = append(seqs, s.String())
		}
		if len(seqs) > 0 {
			genConfig["stopSequences"] = seqs
		}
	}

	if thinking := gjson.GetBytes(rawJSON, "thinking"); thinking.Exists() {
		switch thinking.Get("type").String() {
		case "enabled":
			budget := thinking.Get("budget_tokens").Int()
			if budget <= 0 {
				budget = -1
			}
			genConfig["thinkingConfig"] = map[string]interface{}{
				"thinkingBudget":  budget,
				"includeThoughts": true,
			}
		case "disabled":
			genConfig["thinkingConfig"] = map[string]interface{}{"thinkingBudget": 0}
		}
	}

	return genConfig
}

// translateAnthropicMessages converts the Anthropic "messages" array (roles
// user/assistant, block-array content) to Gemini contents, returning any
// leading system-role-shaped content as system instruction parts (Anthropic
// has no "system" role in messages, but translateMessages' signature is
// mirrored here for symmetry with the OpenAI path).
func translateAnthropicMessages(rawJSON []byte) ([]interface{}, []interface{}) {
	messages := gjson.GetBytes(rawJSON, "messages")
	var contents []interface{}
	var systemInstructions []interface{}

	for _, msg := range messages.Array() {
		role := msg.Get("role").String()
		content := msg.Get("content")

		geminiRole := "user"
		if role == "assistant" {
			geminiRole = "model"
		}

		var parts []interface{}
		if content.IsArray() {
			for _, block := range content.Array() {
				if p := convertAnthropicBlock(block, geminiRole); p != nil {
					parts = append(parts, p...)
				}
			}
		} else if content.String() != "" {
			parts = append(parts, map[string]interface{}{"text": sanitizeText(content.String())})
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, map[string]interface{}{
			"role":  geminiRole,
			"parts": parts,
		})
	}

	contents = sanitizeMessages(contents)
	return contents, systemInstructions
}

// convertAnthropicBlock converts one Anthropic content block to zero or more
// Gemini parts. tool_result blocks always surface as a "user"-role
// functionResponse regardless of the owning message's role, matching the
// teacher's OpenAI "tool" message handling in translateMessages.
func convertAnthropicBlock(block gjson.Result, geminiRole string) []interface{} {
	switch block.Get("type").String() {
	case "text":
		return []interface{}{map[string]interface{}{"text": sanitizeText(block.Get("text").String())}}

	case "thinking":
		part := map[string]interface{}{
			"thought": true,
			"text":    block.Get("thinking").String(),
		}
		if sig := block.Get("signature").String(); sig != "" {
			part["thoughtSignature"] = sig
			if SignatureStore != nil {
				SignatureStore.Put(block.Get("thinking").String(), sig, "")
			}
		}
		return []interface{}{part}

	case "redacted_thinking":
		part := map[string]interface{}{"thought": true, "text": ""}
		if data := block.Get("data").String(); data != "" {
			part["thoughtSignature"] = data
		}
		return []interface{}{part}

	case "image":
		source := block.Get("source")
		switch source.Get("type").String() {
		case "base64":
			return []interface{}{map[string]interface{}{
				"inlineData": map[string]interface{}{
					"mimeType": source.Get("media_type").String(),
					"data":     source.Get("data").String(),
				},
			}}
		case "url":
			return []interface{}{map[string]interface{}{
				"fileData": map[string]interface{}{"fileUri": source.Get("url").String()},
			}}
		}
		return nil

	case "tool_use":
		var args interface{}
		if err := json.Unmarshal([]byte(block.Get("input").Raw), &args); err != nil {
			args = map[string]interface{}{}
		}
		fnCall := map[string]interface{}{
			"name": block.Get("name").String(),
			"args": args,
		}
		part := map[string]interface{}{"functionCall": fnCall}
		if id := block.Get("id").String(); id != "" {
			fnCall["id"] = id
			if sig, ok := lookupToolSignature(id); ok {
				part["thoughtSignature"] = sig
			}
		}
		return []interface{}{part}

	case "tool_result":
		content := block.Get("content")
		var respContent interface{}
		if content.IsArray() {
			var texts string
			for _, c := range content.Array() {
				if c.Get("type").String() == "text" {
					texts += c.Get("text").String()
				}
			}
			respContent = map[string]interface{}{"result": texts}
		} else {
			text := content.String()
			if err := json.Unmarshal([]byte(text), &respContent); err != nil {
				respContent = map[string]interface{}{"result": text}
			}
		}
		funcResp := map[string]interface{}{
			"name":     "",
			"response": respContent,
		}
		if id := block.Get("tool_use_id").String(); id != "" {
			funcResp["id"] = id
		}
		return []interface{}{map[string]interface{}{"functionResponse": funcResp}}
	}
	return nil
}

func lookupToolSignature(toolUseID string) (string, bool) {
	if SignatureStore == nil {
		return "", false
	}
	return SignatureStore.GetTool(toolUseID)
}

// applyAnthropicTools maps Anthropic "tools" (name/description/input_schema)
// to Gemini functionDeclarations, cleaning each input_schema through
// CleanJSONSchema (blocklist/validation-keyword/nullable normalization).
func applyAnthropicTools(out string, rawJSON []byte) string {
	tools := gjson.GetBytes(rawJSON, "tools")
	if !tools.Exists() {
		return out
	}
	var decls []interface{}
	for _, tool := range tools.Array() {
		if tool.Get("type").String() != "" && tool.Get("input_schema").Exists() == false {
			continue // skip server/built-in tool defs we can't forward
		}
		schema := CleanJSONSchema([]byte(tool.Get("input_schema").Raw))
		decls = append(decls, map[string]interface{}{
			"name":        tool.Get("name").String(),
			"description": tool.Get("description").String(),
			"parameters":  json.RawMessage(schema),
		})
	}
	if len(decls) == 0 {
		return out
	}
	geminiTools := []interface{}{map[string]interface{}{"functionDeclarations": decls}}
	toolsJSON, _ := json.Marshal(geminiTools)
	out, _ = sjson.SetRaw(out, "tools", string(toolsJSON))
	return out
}
