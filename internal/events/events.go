// Package events carries notifications from the config panel to whoever hosts it.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/watertap-org/flowsheet-int/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventConfigLoaded keeps the wire name the flowsheet host expects for a
	// replaced configuration.
	EventConfigLoaded        EventType = "UPDATE_CONFIG"
	EventConfigDeleted       EventType = "config_deleted"
	EventInputsChanged       EventType = "inputs_changed"
	EventRunRequested        EventType = "run_requested"
	EventRunFinished         EventType = "run_finished"
	EventSubprocessesUpdated EventType = "subprocesses_updated"
	EventError               EventType = "error"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// PanelEvent reports a state change of one flowsheet's config panel.
type PanelEvent struct {
	BaseEvent
	FlowsheetID string
	ConfigName  string
	// Key is the variable that changed, for EventInputsChanged.
	Key string
	// Mode is "solve" or "sweep" for run events.
	Mode string
	// Subprocesses is the applied worker count for EventSubprocessesUpdated.
	Subprocesses int
	Duration     time.Duration
	Err          error
}

// ErrorEvent represents error conditions
type ErrorEvent struct {
	BaseEvent
	FlowsheetID string
	Operation   string // "refresh", "load", "delete", "subprocesses", "run"
	Error       error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking. Events for
// full subscribers are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishPanel is a convenience method for publishing panel events
func (eb *EventBus) PublishPanel(eventType EventType, ev PanelEvent) {
	ev.BaseEvent = BaseEvent{EventType: eventType, Time: time.Now()}
	eb.Publish(&ev)
}

// PublishError is a convenience method for publishing error events
func (eb *EventBus) PublishError(flowsheetID, operation string, err error) {
	eb.Publish(&ErrorEvent{
		BaseEvent: BaseEvent{
			EventType: EventError,
			Time:      time.Now(),
		},
		FlowsheetID: flowsheetID,
		Operation:   operation,
		Error:       err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
