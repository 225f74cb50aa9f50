package ndjson

import (
	"sync"
	"time"
)

// defaultStateTTL is the conversation-scoped state lifetime (spec §3:
// "30-60 min TTL"); entries are pruned lazily on read, matching the
// teacher's sticky-routing map idiom in upstream/strategy/strategy_sticky.go.
const defaultStateTTL = 45 * time.Minute

// toolCall records one previously-seen tool_use so a later tool_result node
// carrying only tool_use_id can be rematerialized into a full OpenAI-shape
// tool-call/tool-result message pair (spec §3/§4.5).
type toolCall struct {
	name      string
	inputJSON string
}

type conversationEntry struct {
	selectedModel string
	toolCalls     map[string]toolCall
	expires       time.Time
}

// ConversationStore is the process-local, mutex-protected map of
// conversation_id -> state the NDJSON bridge owns (spec §5 "Conversation-
// scoped NDJSON state").
type ConversationStore struct {
	mu      sync.Mutex
	entries map[string]*conversationEntry
	ttl     time.Duration
}

// NewConversationStore builds an empty store with the spec-default TTL.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{entries: make(map[string]*conversationEntry), ttl: defaultStateTTL}
}

func (s *ConversationStore) get(id string) *conversationEntry {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if time.Now().After(e.expires) {
		delete(s.entries, id)
		return nil
	}
	return e
}

func (s *ConversationStore) touch(id string) *conversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || time.Now().After(e.expires) {
		e = &conversationEntry{toolCalls: make(map[string]toolCall)}
		s.entries[id] = e
	}
	e.expires = time.Now().Add(s.ttl)
	return e
}

// SelectedModel returns the model previously bound to conversationID, if any.
func (s *ConversationStore) SelectedModel(conversationID string) (string, bool) {
	e := s.get(conversationID)
	if e == nil || e.selectedModel == "" {
		return "", false
	}
	return e.selectedModel, true
}

// SetSelectedModel binds conversationID to model for subsequent turns.
func (s *ConversationStore) SetSelectedModel(conversationID, model string) {
	if conversationID == "" || model == "" {
		return
	}
	e := s.touch(conversationID)
	s.mu.Lock()
	e.selectedModel = model
	s.mu.Unlock()
}

// RecordToolCall remembers a tool_use emitted to the client so a later
// tool_result node referencing toolUseID can be rematerialized.
func (s *ConversationStore) RecordToolCall(conversationID, toolUseID, name, inputJSON string) {
	if conversationID == "" || toolUseID == "" {
		return
	}
	e := s.touch(conversationID)
	s.mu.Lock()
	e.toolCalls[toolUseID] = toolCall{name: name, inputJSON: inputJSON}
	s.mu.Unlock()
}

// ToolCall looks up a previously recorded tool_use by id.
func (s *ConversationStore) ToolCall(conversationID, toolUseID string) (name, inputJSON string, ok bool) {
	e := s.get(conversationID)
	if e == nil {
		return "", "", false
	}
	s.mu.Lock()
	tc, found := e.toolCalls[toolUseID]
	s.mu.Unlock()
	if !found {
		return "", "", false
	}
	return tc.name, tc.inputJSON, true
}

// Prune removes every expired entry; callers may run it periodically, though
// lazy per-read pruning in get/touch already bounds staleness.
func (s *ConversationStore) Prune() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
}
