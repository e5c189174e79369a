package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"servicetrack/engine"
)

type SSEEvent struct {
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopOnce  sync.Once
	stopChan  chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.fanOut(evt)
		case <-keepalive.C:
			h.fanOut(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) fanOut(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if full
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
	}
}

// BroadcastJSON marshals v as the event data.
func (h *EventHub) BroadcastJSON(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: marshal %s: %v", event, err)
		return
	}
	h.Broadcast(event, string(data))
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts. The returned
// func detaches them from the engine bus.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) func() {
	bus := eng.Events
	ids := []engine.SubscriberID{
		bus.OnStageRecorded(func(ev engine.StageRecordedEvent) {
			h.BroadcastJSON("stage-update", map[string]any{
				"visitId":       ev.Visit.ID,
				"vehicleNumber": ev.Visit.VehicleNumber,
				"stageName":     ev.Event.StageName,
				"eventType":     ev.Event.EventType,
				"timestamp":     ev.Event.Timestamp,
			})
		}),
		bus.OnVisitOpened(func(ev engine.VisitOpenedEvent) {
			h.BroadcastJSON("visit-update", map[string]any{
				"type":          "opened",
				"visitId":       ev.Visit.ID,
				"vehicleNumber": ev.Visit.VehicleNumber,
			})
		}),
		bus.OnVisitClosed(func(ev engine.VisitClosedEvent) {
			h.BroadcastJSON("visit-update", map[string]any{
				"type":          "closed",
				"visitId":       ev.Visit.ID,
				"vehicleNumber": ev.Visit.VehicleNumber,
			})
		}),
		bus.OnVisitsReset(func(ev engine.VisitsResetEvent) {
			h.Broadcast("visit-update", fmt.Sprintf(`{"type":"reset","count":%d}`, ev.Count))
		}),
		bus.OnConnection(func(connected bool, _ engine.ConnectionEvent) {
			state := "disconnected"
			if connected {
				state = "connected"
			}
			h.Broadcast("system-status", fmt.Sprintf(`{"messaging":%q}`, state))
		}),
	}
	return func() { bus.Unsubscribe(ids...) }
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
