// Package ndjson implements the NDJSON bridge of spec §4.5/§6: a
// newline-delimited-JSON surface for the Augment-style client family at
// POST /chat-stream, layered on the same dispatcher/translator machinery the
// OpenAI/Anthropic/Gemini dialect handlers use.
package ndjson

import "encoding/json"

// ChatStreamRequest is the body POST /chat-stream accepts (spec §6).
type ChatStreamRequest struct {
	Message         string            `json:"message"`
	ChatHistory     []json.RawMessage `json:"chat_history,omitempty"`
	Nodes           []Node            `json:"nodes,omitempty"`
	ToolDefinitions []ToolDefinition  `json:"tool_definitions,omitempty"`
	ConversationID  string            `json:"conversation_id"`
	Mode            string            `json:"mode,omitempty"`
	// Model is not named in spec §6's field list but is required to pick an
	// upstream target on a conversation's first turn; once set it is cached
	// in the conversation-scoped state (spec §3 "selected_model?") so later
	// turns in the same conversation don't need to repeat it.
	Model string `json:"model,omitempty"`
}

// NodeType mirrors the Augment bridge's numeric node-kind tags.
const (
	NodeTypeToolResult = 1
	NodeTypeToolUse    = 5
)

// Node is one client-submitted or server-emitted structured element. Only
// ToolResultNode is ever populated on an inbound request; ToolUse is only
// ever emitted outbound (spec §4.5).
type Node struct {
	Type           int             `json:"type"`
	ToolResultNode *ToolResultNode `json:"tool_result_node,omitempty"`
	ToolUse        *ToolUseNode    `json:"tool_use,omitempty"`
}

// ToolResultNode carries a client-side tool execution's result back upstream.
type ToolResultNode struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

// ToolUseNode is the outbound shape for a reconstructed tool call (spec
// §4.5): `{nodes: [{type: 5, tool_use: {tool_use_id, tool_name, input_json}}]}`.
type ToolUseNode struct {
	ToolUseID string `json:"tool_use_id"`
	ToolName  string `json:"tool_name"`
	InputJSON string `json:"input_json"`
}

// ToolDefinition is the Augment bridge's function-tool declaration shape,
// translated into OpenAI `{type: "function", function: {...}}` tool entries
// before being handed to the OpenAI->Gemini translator.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// OutputLine is one NDJSON line emitted to the client (spec §4.5):
// `{text?, nodes?, stop_reason?}`.
type OutputLine struct {
	Text       string `json:"text,omitempty"`
	Nodes      []Node `json:"nodes,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

const (
	StopReasonToolUse = "tool_use"
	StopReasonEndTurn = "end_turn"
)
