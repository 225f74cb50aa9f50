package streaming

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// partKind classifies one Gemini response part for the coalescing rules
// shared by both streaming directions: a "thought" part (Part.thought ==
// true) is never merged with a following plain-text part even though both
// carry a "text" field, and a "functionCall" part always starts a fresh
// block.
type partKind string

const (
	partKindThought      partKind = "thought"
	partKindText         partKind = "text"
	partKindFunctionCall partKind = "functionCall"
)

// classifyPart is the single source of truth for what a raw Gemini part map
// represents, used by both the upstream-SSE -> reconstructed-JSON path
// (geminiPartReducer) and the complete-JSON -> client-SSE path
// (StreamGeminiPartsAsSSE), so the two never disagree on block boundaries.
func classifyPart(part map[string]any) partKind {
	if fc, ok := part["functionCall"]; ok && fc != nil {
		return partKindFunctionCall
	}
	if thought, ok := part["thought"].(bool); ok && thought {
		return partKindThought
	}
	return partKindText
}

// partText extracts the text payload of a thought/text part ("" for
// functionCall parts, which carry no text field).
func partText(part map[string]any) string {
	text, _ := part["text"].(string)
	return text
}

// geminiPartReducer accumulates a sequence of Gemini response parts observed
// across many SSE chunks into the single candidate.content.parts list a
// complete generateContent response would have, coalescing adjacent
// same-kind text/thought deltas into one part per spec §4.5.
type geminiPartReducer struct {
	role         string
	blocks       []map[string]any
	openKind     partKind
	finishReason string
	usage        map[string]any
}

func newGeminiPartReducer() *geminiPartReducer {
	return &geminiPartReducer{role: "model"}
}

// absorb folds one candidate's parts (and any finishReason/usageMetadata
// present on this chunk) into the accumulator.
func (r *geminiPartReducer) absorb(obj map[string]any) {
	if usage, ok := obj["usageMetadata"].(map[string]any); ok {
		r.usage = usage
	}

	candidates, _ := obj["candidates"].([]any)
	if len(candidates) == 0 {
		return
	}
	candidate, _ := candidates[0].(map[string]any)
	if candidate == nil {
		return
	}
	if fr, ok := candidate["finishReason"].(string); ok && fr != "" {
		r.finishReason = fr
	}

	content, _ := candidate["content"].(map[string]any)
	if content == nil {
		return
	}
	if role, ok := content["role"].(string); ok && role != "" {
		r.role = role
	}

	parts, _ := content["parts"].([]any)
	for _, raw := range parts {
		part, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		r.absorbPart(part)
	}
}

func (r *geminiPartReducer) absorbPart(part map[string]any) {
	kind := classifyPart(part)

	if kind == partKindFunctionCall {
		r.blocks = append(r.blocks, part)
		r.openKind = ""
		return
	}

	if len(r.blocks) > 0 && r.openKind == kind {
		last := r.blocks[len(r.blocks)-1]
		merged := map[string]any{"text": partText(last) + partText(part)}
		if kind == partKindThought {
			merged["thought"] = true
		}
		r.blocks[len(r.blocks)-1] = merged
		return
	}

	block := map[string]any{"text": partText(part)}
	if kind == partKindThought {
		block["thought"] = true
	}
	r.blocks = append(r.blocks, block)
	r.openKind = kind
}

// finish renders the accumulated state as a complete generateContent-shaped
// response body.
func (r *geminiPartReducer) finish() map[string]any {
	finishReason := r.finishReason
	if finishReason == "" {
		finishReason = "STOP"
	}
	candidate := map[string]any{
		"content": map[string]any{
			"role":  r.role,
			"parts": r.blocks,
		},
		"finishReason": finishReason,
		"index":        0,
	}
	out := map[string]any{"candidates": []any{candidate}}
	if r.usage != nil {
		out["usageMetadata"] = r.usage
	}
	return out
}

// ReconstructFromSSE consumes an upstream Gemini SSE stream (each event
// either a bare candidate object or a "{"response": {...}}" wrapper, as
// internal/handlers/gemini/stream_session_sse.go unwraps) and returns the
// single complete JSON body it represents. Used for backends (e.g.
// Antigravity) that are always called streaming upstream regardless of what
// the client requested.
func ReconstructFromSSE(ctx context.Context, reader io.Reader) ([]byte, error) {
	reducer := newGeminiPartReducer()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

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
		if resp, ok := obj["response"].(map[string]any); ok {
			obj = resp
		}
		reducer.absorb(obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return json.Marshal(reducer.finish())
}

// StreamGeminiPartsAsSSE re-serializes a complete Gemini-shaped response into
// one SSE "data:" event per accumulated part, the inverse of
// ReconstructFromSSE, for clients that requested streaming against a
// response the gateway already holds complete (mirrors ConvertToFakeStream's
// OpenAI-shaped counterpart but preserves Gemini's thought/text/functionCall
// part typing instead of flattening to a single content delta).
func StreamGeminiPartsAsSSE(ctx context.Context, completeResponse []byte, model string) io.Reader {
	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		var obj map[string]any
		if err := json.Unmarshal(completeResponse, &obj); err != nil {
			pw.Write([]byte("data: [DONE]\n\n"))
			return
		}

		candidates, _ := obj["candidates"].([]any)
		if len(candidates) == 0 {
			pw.Write([]byte("data: [DONE]\n\n"))
			return
		}
		candidate, _ := candidates[0].(map[string]any)
		content, _ := candidate["content"].(map[string]any)
		parts, _ := content["parts"].([]any)

		for _, raw := range parts {
			select {
			case <-ctx.Done():
				return
			default:
			}
			part, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			chunk := map[string]any{
				"candidates": []any{
					map[string]any{
						"content": map[string]any{
							"role":  content["role"],
							"parts": []any{part},
						},
						"index": 0,
					},
				},
			}
			b, err := json.Marshal(chunk)
			if err != nil {
				continue
			}
			pw.Write([]byte("data: "))
			pw.Write(b)
			pw.Write([]byte("\n\n"))
		}

		final := map[string]any{
			"candidates": []any{
				map[string]any{
					"finishReason": candidate["finishReason"],
					"index":        0,
				},
			},
		}
		if usage, ok := obj["usageMetadata"]; ok {
			final["usageMetadata"] = usage
		}
		if b, err := json.Marshal(final); err == nil {
			pw.Write([]byte("data: "))
			pw.Write(b)
			pw.Write([]byte("\n\n"))
		}
		pw.Write([]byte("data: [DONE]\n\n"))
	}()

	return pr
}
