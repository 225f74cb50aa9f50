package ndjson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStoreSelectedModel(t *testing.T) {
	s := NewConversationStore()

	_, ok := s.SelectedModel("conv-1")
	assert.False(t, ok)

	s.SetSelectedModel("conv-1", "gemini-2.5-pro")
	model, ok := s.SelectedModel("conv-1")
	require.True(t, ok)
	assert.Equal(t, "gemini-2.5-pro", model)

	// Empty id/model are no-ops, not stored.
	s.SetSelectedModel("", "gemini-2.5-flash")
	s.SetSelectedModel("conv-2", "")
	_, ok = s.SelectedModel("conv-2")
	assert.False(t, ok)
}

func TestConversationStoreToolCallRoundTrip(t *testing.T) {
	s := NewConversationStore()

	_, _, ok := s.ToolCall("conv-1", "toolu_abc")
	assert.False(t, ok, "unknown tool_use_id should miss")

	s.RecordToolCall("conv-1", "toolu_abc", "read_file", `{"path":"a.go"}`)
	name, args, ok := s.ToolCall("conv-1", "toolu_abc")
	require.True(t, ok)
	assert.Equal(t, "read_file", name)
	assert.Equal(t, `{"path":"a.go"}`, args)

	// A different conversation never sees another's tool calls.
	_, _, ok = s.ToolCall("conv-2", "toolu_abc")
	assert.False(t, ok)
}

func TestConversationStoreExpiry(t *testing.T) {
	s := NewConversationStore()
	s.ttl = time.Millisecond

	s.SetSelectedModel("conv-1", "gemini-2.5-pro")
	time.Sleep(5 * time.Millisecond)

	_, ok := s.SelectedModel("conv-1")
	assert.False(t, ok, "entry should have expired and been pruned on read")
}

func TestConversationStorePrune(t *testing.T) {
	s := NewConversationStore()
	s.ttl = time.Millisecond
	s.SetSelectedModel("conv-1", "gemini-2.5-pro")
	s.ttl = defaultStateTTL
	s.SetSelectedModel("conv-2", "gemini-2.5-flash")

	time.Sleep(5 * time.Millisecond)
	s.Prune()

	s.mu.Lock()
	_, stillThere1 := s.entries["conv-1"]
	_, stillThere2 := s.entries["conv-2"]
	s.mu.Unlock()
	assert.False(t, stillThere1)
	assert.True(t, stillThere2)
}
