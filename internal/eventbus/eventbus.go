package eventbus

import (
	"encoding/json"
	"sync"
)

type (
	Bus interface {
		Register(identifier string) chan Event
		Unregister(identifier string, ch chan Event)
		Broadcast(identifier string, evType Type, message string)
		BroadcastWithData(identifier string, evType Type, message string, data any)
		// Recent returns the last events published for identifier, oldest first
		Recent(identifier string) []Event
	}

	Event struct {
		Type    Type            `json:"type"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	}

	Type string
)

const (
	Error    Type = "error"
	Info     Type = "info"
	Success  Type = "success"
	Complete Type = "complete"

	bufferSize  = 100
	historySize = 20
)

type eventPublisher struct {
	events    map[string][]chan Event
	histories map[string]*history
	lock      sync.Mutex
}

func New() Bus {
	return &eventPublisher{
		events:    make(map[string][]chan Event),
		histories: make(map[string]*history),
	}
}

func (e *eventPublisher) Register(identifier string) chan Event {
	e.lock.Lock()
	defer e.lock.Unlock()

	ch := make(chan Event, bufferSize)
	e.events[identifier] = append(e.events[identifier], ch)
	return ch
}

// Unregister detaches and closes ch
func (e *eventPublisher) Unregister(identifier string, ch chan Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	clients := e.events[identifier]
	for i, next := range clients {
		if next == ch {
			e.events[identifier] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}

	if len(e.events[identifier]) == 0 {
		delete(e.events, identifier)
	}
}

func (e *eventPublisher) Broadcast(identifier string, evType Type, message string) {
	e.publish(identifier, Event{
		Type:    evType,
		Message: message,
	})
}

func (e *eventPublisher) BroadcastWithData(identifier string, evType Type, message string, data any) {
	ev := Event{
		Type:    evType,
		Message: message,
	}
	if raw, err := json.Marshal(data); err == nil {
		ev.Data = raw
	}
	e.publish(identifier, ev)
}

// publish never blocks; a subscriber with a full buffer misses the event
func (e *eventPublisher) publish(identifier string, ev Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	h, ok := e.histories[identifier]
	if !ok {
		h = newHistory(historySize)
		e.histories[identifier] = h
	}
	h.add(ev)

	for _, ch := range e.events[identifier] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *eventPublisher) Recent(identifier string) []Event {
	e.lock.Lock()
	defer e.lock.Unlock()

	h, ok := e.histories[identifier]
	if !ok {
		return []Event{}
	}
	return h.values()
}
