// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"card-print-service/internal/utils"
)

// EventBus fans print events out to subscribers without blocking the publisher
type EventBus struct {
	subscribers map[int]chan utils.PrintEvent
	nextID      int
	events      chan utils.PrintEvent
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[int]chan utils.PrintEvent),
		events:      make(chan utils.PrintEvent, 1000),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.done)

		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for id, ch := range eb.subscribers {
			close(ch)
			delete(eb.subscribers, id)
		}
	})
}

// Publish enqueues an event; it implements utils.EventPublisher
func (eb *EventBus) Publish(event utils.PrintEvent) {
	select {
	case eb.events <- event:
	default:
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", event.Type),
			)
		}
	}
}

// Subscribe returns a channel receiving every event and its subscription id
func (eb *EventBus) Subscribe() (int, <-chan utils.PrintEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	eb.nextID++
	subscriber := make(chan utils.PrintEvent, 100)
	eb.subscribers[eb.nextID] = subscriber
	return eb.nextID, subscriber
}

// Unsubscribe removes and closes a subscription
func (eb *EventBus) Unsubscribe(id int) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if ch, ok := eb.subscribers[id]; ok {
		close(ch)
		delete(eb.subscribers, id)
	}
}

func (eb *EventBus) distributeEvent(event utils.PrintEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers {
		select {
		case subscriber <- event:
		default:
			// slow subscriber
		}
	}
}
