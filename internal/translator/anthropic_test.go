package translator

import (
	"context"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/stretchr/testify/require"
)

func TestAnthropicToGeminiRequestBasic(t *testing.T) {
	input := []byte(`{
		"model": "gemini-3-pro",
		"max_tokens": 1024,
		"messages": [
			{"role": "user", "content": "Hello there"}
		]
	}`)

	out := AnthropicToGeminiRequest("gemini-3-pro", input, false)
	result := gjson.ParseBytes(out)

	require.True(t, result.Get("contents").Exists())
	require.Equal(t, "user", result.Get("contents.0.role").String())
	require.Equal(t, "Hello there", result.Get("contents.0.parts.0.text").String())
	require.EqualValues(t, 1024, result.Get("generationConfig.maxOutputTokens").Int())
}

func TestAnthropicToGeminiRequestSystemPrompt(t *testing.T) {
	input := []byte(`{
		"model": "gemini-3-pro",
		"max_tokens": 100,
		"system": "You are concise.",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out := AnthropicToGeminiRequest("gemini-3-pro", input, false)
	result := gjson.ParseBytes(out)
	require.Contains(t, result.Get("systemInstruction.parts.0.text").String(), "You are concise.")
}

func TestAnthropicToGeminiRequestToolUseAndResult(t *testing.T) {
	input := []byte(`{
		"model": "gemini-3-pro",
		"max_tokens": 100,
		"messages": [
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "NYC"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "72F and sunny"}
			]}
		]
	}`)

	out := AnthropicToGeminiRequest("gemini-3-pro", input, false)
	result := gjson.ParseBytes(out)

	require.Equal(t, "model", result.Get("contents.0.role").String())
	require.Equal(t, "get_weather", result.Get("contents.0.parts.0.functionCall.name").String())
	require.Equal(t, "NYC", result.Get("contents.0.parts.0.functionCall.args.city").String())

	require.Equal(t, "user", result.Get("contents.1.role").String())
	require.True(t, result.Get("contents.1.parts.0.functionResponse").Exists())
}

func TestAnthropicToGeminiRequestThinkingConfig(t *testing.T) {
	input := []byte(`{
		"model": "gemini-3-pro",
		"max_tokens": 100,
		"thinking": {"type": "enabled", "budget_tokens": 4096},
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out := AnthropicToGeminiRequest("gemini-3-pro", input, false)
	result := gjson.ParseBytes(out)
	require.EqualValues(t, 4096, result.Get("generationConfig.thinkingConfig.thinkingBudget").Int())
	require.True(t, result.Get("generationConfig.thinkingConfig.includeThoughts").Bool())
}

func TestAnthropicToolsSchemaCleaned(t *testing.T) {
	input := []byte(`{
		"model": "gemini-3-pro",
		"max_tokens": 100,
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [
			{
				"name": "search",
				"description": "search the web",
				"input_schema": {
					"type": "object",
					"properties": {
						"query": {"type": "string", "minLength": 1, "$schema": "x"}
					},
					"additionalProperties": false
				}
			}
		]
	}`)

	out := AnthropicToGeminiRequest("gemini-3-pro", input, false)
	result := gjson.ParseBytes(out)

	require.Equal(t, "search", result.Get("tools.0.functionDeclarations.0.name").String())
	require.False(t, result.Get("tools.0.functionDeclarations.0.parameters.additionalProperties").Exists())
	require.False(t, result.Get("tools.0.functionDeclarations.0.parameters.properties.query.$schema").Exists())
	require.Contains(t, result.Get("tools.0.functionDeclarations.0.parameters.properties.query.description").String(), "minLength")
}

func TestGeminiToAnthropicResponseTextAndToolUse(t *testing.T) {
	body := []byte(`{
		"candidates": [{
			"content": {"parts": [
				{"text": "Here is the weather: "},
				{"functionCall": {"name": "get_weather", "args": {"city": "NYC"}}}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5}
	}`)

	out, err := GeminiToAnthropicResponse(context.Background(), "gemini-3-pro", body)
	require.NoError(t, err)

	result := gjson.ParseBytes(out)
	require.Equal(t, "message", result.Get("type").String())
	require.Equal(t, "tool_use", result.Get("stop_reason").String())
	require.Equal(t, "text", result.Get("content.0.type").String())
	require.Equal(t, "tool_use", result.Get("content.1.type").String())
	require.Equal(t, "get_weather", result.Get("content.1.name").String())
}

func TestGeminiToAnthropicResponseThinkingBlock(t *testing.T) {
	body := []byte(`{
		"candidates": [{
			"content": {"parts": [
				{"thought": true, "text": "reasoning...", "thoughtSignature": "sig-abc"},
				{"text": "the answer"}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 1, "candidatesTokenCount": 1}
	}`)

	out, err := GeminiToAnthropicResponse(context.Background(), "gemini-3-pro", body)
	require.NoError(t, err)

	result := gjson.ParseBytes(out)
	require.Equal(t, "thinking", result.Get("content.0.type").String())
	require.Equal(t, "sig-abc", result.Get("content.0.signature").String())
}
