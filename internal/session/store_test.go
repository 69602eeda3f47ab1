package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichat/agent-gateway/internal/schema"
)

func userMessage(text string) schema.ChatMessage {
	return schema.ChatMessage{
		ID:        "msg-1",
		Role:      schema.RoleUser,
		Content:   []schema.Content{{Type: schema.ContentText, Content: text}},
		Timestamp: time.Now(),
	}
}

func TestTouchCreatesSession(t *testing.T) {
	s := NewStore()

	s.Touch("session-1")

	assert.Equal(t, 1, s.Count())
	stats, ok := s.Stats("session-1")
	require.True(t, ok)
	assert.Equal(t, "session-1", stats.SessionID)
	assert.Equal(t, 1, stats.MessageCount)
	assert.Equal(t, 0, stats.ConversationLength)
	assert.Greater(t, stats.CreatedAt, 0.0)
}

func TestTouchIncrementsMessageCount(t *testing.T) {
	s := NewStore()

	s.Touch("session-1")
	s.Touch("session-1")
	s.Touch("session-1")

	assert.Equal(t, 1, s.Count())
	stats, _ := s.Stats("session-1")
	assert.Equal(t, 3, stats.MessageCount)
	assert.Equal(t, 3, s.TotalMessages())
}

func TestAppendAndHistory(t *testing.T) {
	s := NewStore()
	s.Touch("session-1")

	s.Append("session-1", userMessage("hello"))
	s.Append("session-1", userMessage("world"))

	history := s.History("session-1")
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].PrimaryContent())
	assert.Equal(t, "world", history[1].PrimaryContent())

	// The returned slice is a copy.
	history[0].Content = nil
	assert.Equal(t, "hello", s.History("session-1")[0].PrimaryContent())
}

func TestHistoryUnknownSession(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.History("ghost"))
}

func TestRecent(t *testing.T) {
	s := NewStore()
	s.Touch("session-1")
	for i := 0; i < 8; i++ {
		s.Append("session-1", userMessage(fmt.Sprintf("msg-%d", i)))
	}

	recent := s.Recent("session-1", 5)
	require.Len(t, recent, 5)
	assert.Equal(t, "msg-3", recent[0].PrimaryContent())
	assert.Equal(t, "msg-7", recent[4].PrimaryContent())

	all := s.Recent("session-1", 20)
	assert.Len(t, all, 8)
}

func TestStatsLastActivity(t *testing.T) {
	s := NewStore()
	s.Touch("session-1")
	s.Append("session-1", userMessage("hello"))

	stats, ok := s.Stats("session-1")
	require.True(t, ok)
	assert.NotEmpty(t, stats.LastActivity)
	assert.Equal(t, 1, stats.ConversationLength)
}

func TestStatsUnknownSession(t *testing.T) {
	s := NewStore()
	_, ok := s.Stats("ghost")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Touch("session-1")
	s.Append("session-1", userMessage("hello"))

	assert.True(t, s.Clear("session-1"))
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.History("session-1"))
	_, ok := s.Stats("session-1")
	assert.False(t, ok)

	assert.False(t, s.Clear("session-1"), "clearing an unknown session reports false")
}

func TestActiveSnapshot(t *testing.T) {
	s := NewStore()
	s.Touch("session-1")
	s.Touch("session-2")
	s.Touch("session-2")

	active := s.Active()
	require.Len(t, active, 2)
	assert.Equal(t, 1, active["session-1"].MessageCount)
	assert.Equal(t, 2, active["session-2"].MessageCount)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", n%3)
			for j := 0; j < 50; j++ {
				s.Touch(id)
				s.Append(id, userMessage("concurrent"))
				s.History(id)
				s.Stats(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 500, s.TotalMessages())
}
