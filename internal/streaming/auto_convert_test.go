package streaming

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func sseFrame(body string) string {
	return "data: " + body + "\n\n"
}

func TestReconstructFromSSECoalescesTextDeltas(t *testing.T) {
	stream := strings.NewReader(
		sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}`) +
			sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"text":"lo, "}]}}]}`) +
			sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"text":"world"}]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":5}}`) +
			"data: [DONE]\n\n",
	)

	out, err := ReconstructFromSSE(context.Background(), stream)
	if err != nil {
		t.Fatalf("ReconstructFromSSE returned error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("reconstructed body is not valid JSON: %v", err)
	}

	candidates := result["candidates"].([]any)
	candidate := candidates[0].(map[string]any)
	content := candidate["content"].(map[string]any)
	parts := content["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected the three text deltas to coalesce into one part, got %d", len(parts))
	}
	part := parts[0].(map[string]any)
	if part["text"] != "Hello, world" {
		t.Errorf("expected coalesced text %q, got %q", "Hello, world", part["text"])
	}
	if candidate["finishReason"] != "STOP" {
		t.Errorf("expected finishReason STOP, got %v", candidate["finishReason"])
	}
	usage := result["usageMetadata"].(map[string]any)
	if usage["totalTokenCount"].(float64) != 5 {
		t.Errorf("expected usageMetadata to carry through, got %v", usage)
	}
}

func TestReconstructFromSSEKeepsThoughtAndTextAsSeparateBlocks(t *testing.T) {
	stream := strings.NewReader(
		sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"text":"thinking...","thought":true}]}}]}`) +
			sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"text":"the answer is 4"}]},"finishReason":"STOP"}]}`) +
			"data: [DONE]\n\n",
	)

	out, err := ReconstructFromSSE(context.Background(), stream)
	if err != nil {
		t.Fatalf("ReconstructFromSSE returned error: %v", err)
	}
	var result map[string]any
	json.Unmarshal(out, &result)
	parts := result["candidates"].([]any)[0].(map[string]any)["content"].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected a thought block and a text block, got %d parts", len(parts))
	}
	thought := parts[0].(map[string]any)
	if thought["thought"] != true {
		t.Errorf("expected first part to be a thought block, got %v", thought)
	}
	text := parts[1].(map[string]any)
	if _, hasThought := text["thought"]; hasThought {
		t.Errorf("expected second part to not carry thought:true, got %v", text)
	}
}

func TestReconstructFromSSEHandlesResponseWrapper(t *testing.T) {
	stream := strings.NewReader(
		sseFrame(`{"response":{"candidates":[{"content":{"role":"model","parts":[{"text":"wrapped"}]},"finishReason":"STOP"}]}}`) +
			"data: [DONE]\n\n",
	)

	out, err := ReconstructFromSSE(context.Background(), stream)
	if err != nil {
		t.Fatalf("ReconstructFromSSE returned error: %v", err)
	}
	var result map[string]any
	json.Unmarshal(out, &result)
	parts := result["candidates"].([]any)[0].(map[string]any)["content"].(map[string]any)["parts"].([]any)
	if parts[0].(map[string]any)["text"] != "wrapped" {
		t.Errorf("expected unwrapped text %q, got %v", "wrapped", parts[0])
	}
}

func TestReconstructFromSSEKeepsFunctionCallsAsDistinctBlocks(t *testing.T) {
	stream := strings.NewReader(
		sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{"q":"x"}}}]}}]}`) +
			sseFrame(`{"candidates":[{"content":{"role":"model","parts":[{"text":"done"}]},"finishReason":"STOP"}]}`) +
			"data: [DONE]\n\n",
	)

	out, err := ReconstructFromSSE(context.Background(), stream)
	if err != nil {
		t.Fatalf("ReconstructFromSSE returned error: %v", err)
	}
	var result map[string]any
	json.Unmarshal(out, &result)
	parts := result["candidates"].([]any)[0].(map[string]any)["content"].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected a functionCall block and a text block, got %d", len(parts))
	}
	if _, ok := parts[0].(map[string]any)["functionCall"]; !ok {
		t.Errorf("expected first part to carry functionCall, got %v", parts[0])
	}
}

func TestStreamGeminiPartsAsSSERoundTripsThroughReconstruct(t *testing.T) {
	complete := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role": "model",
					"parts": []any{
						map[string]any{"text": "step one", "thought": true},
						map[string]any{"text": "final answer"},
					},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{"totalTokenCount": 9},
	}
	body, _ := json.Marshal(complete)

	reader := StreamGeminiPartsAsSSE(context.Background(), body, "gemini-3-pro")
	out, err := ReconstructFromSSE(context.Background(), reader)
	if err != nil {
		t.Fatalf("ReconstructFromSSE returned error: %v", err)
	}

	var result map[string]any
	json.Unmarshal(out, &result)
	candidate := result["candidates"].([]any)[0].(map[string]any)
	parts := candidate["content"].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected the thought and text parts to round-trip as 2 blocks, got %d", len(parts))
	}
	if parts[1].(map[string]any)["text"] != "final answer" {
		t.Errorf("expected final text part to round-trip, got %v", parts[1])
	}
	if candidate["finishReason"] != "STOP" {
		t.Errorf("expected finishReason to round-trip, got %v", candidate["finishReason"])
	}
}
