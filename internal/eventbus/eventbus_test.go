package eventbus

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestBroadcast(t *testing.T) {
	bus := New()
	a := bus.Register("db-1")
	b := bus.Register("db-1")
	other := bus.Register("db-2")

	bus.BroadcastWithData("db-1", Success, "backup completed", map[string]string{"status": "completed"})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, Success, ev.Type)
		assert.JSONEq(t, `{"status":"completed"}`, string(ev.Data))
	}
	assert.Len(t, other, 0)
}

func TestUnregisterClosesChannel(t *testing.T) {
	bus := New()
	ch := bus.Register("db-1")
	bus.Unregister("db-1", ch)

	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() {
		bus.Broadcast("db-1", Info, "nobody listening")
	})
}

func TestBroadcastDoesNotBlock(t *testing.T) {
	bus := New()
	ch := bus.Register("db-1")
	for i := 0; i < bufferSize+10; i++ {
		bus.Broadcast("db-1", Info, "tick")
	}
	require.Len(t, ch, bufferSize)
}

func TestRecentKeepsLatestEvents(t *testing.T) {
	bus := New()
	assert.Empty(t, bus.Recent("db-1"))

	for i := 0; i < historySize+3; i++ {
		bus.Broadcast("db-1", Info, fmt.Sprintf("event %d", i))
	}
	bus.Broadcast("db-2", Error, "other database")

	recent := bus.Recent("db-1")
	require.Len(t, recent, historySize)
	assert.Equal(t, "event 3", recent[0].Message)
	assert.Equal(t, fmt.Sprintf("event %d", historySize+2), recent[historySize-1].Message)

	require.Len(t, bus.Recent("db-2"), 1)
}

func TestHistoryEviction(t *testing.T) {
	h := newHistory(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		h.add(Event{Message: msg})
	}

	messages := make([]string, 0)
	for _, ev := range h.values() {
		messages = append(messages, ev.Message)
	}
	assert.Equal(t, []string{"b", "c", "d"}, messages)
}
