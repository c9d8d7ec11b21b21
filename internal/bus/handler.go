package bus

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// HandlerCallbacks lets a subscriber react to bus traffic without this
// package needing to know about registry/memory/drift concrete types.
type HandlerCallbacks struct {
	OnSessionHeartbeat func(ev SessionHeartbeatEvent)
	OnSessionStatus    func(ev SessionStatusEvent)
	OnDriftPrediction  func(ev DriftPredictionEvent)
	OnDriftGuardrail   func(ev DriftGuardrailEvent)
	OnMemoryPublished  func(ev MemoryPublishedEvent)
}

// Handler fans bus subjects out to callbacks.
type Handler struct {
	client    *Client
	callbacks HandlerCallbacks

	subs   []*nats.Subscription
	subsMu sync.Mutex

	running bool
}

// NewHandler creates a new bus message handler.
func NewHandler(client *Client, callbacks HandlerCallbacks) *Handler {
	return &Handler{client: client, callbacks: callbacks}
}

// Start subscribes to every subject this handler knows how to process.
func (h *Handler) Start() error {
	if h.running {
		return nil
	}
	h.running = true

	subscriptions := []struct {
		subject string
		handle  func(*Message)
	}{
		{SubjectAllSessionHeartbeats, h.handleSessionHeartbeat},
		{SubjectAllSessionStatus, h.handleSessionStatus},
		{SubjectDriftPrediction, h.handleDriftPrediction},
		{SubjectDriftGuardrail, h.handleDriftGuardrail},
		{SubjectMemoryPublished, h.handleMemoryPublished},
	}

	for _, s := range subscriptions {
		sub, err := h.client.Subscribe(s.subject, s.handle)
		if err != nil {
			return err
		}
		h.addSub(sub)
	}

	log.Printf("[BUS-HANDLER] started, subscribed to %d subjects", len(h.subs))
	return nil
}

// Stop unsubscribes from every subject.
func (h *Handler) Stop() {
	if !h.running {
		return
	}
	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.subsMu.Unlock()
	h.running = false
	log.Printf("[BUS-HANDLER] stopped")
}

func (h *Handler) addSub(sub *nats.Subscription) {
	h.subsMu.Lock()
	h.subs = append(h.subs, sub)
	h.subsMu.Unlock()
}

func (h *Handler) handleSessionHeartbeat(msg *Message) {
	var ev SessionHeartbeatEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("[BUS-HANDLER] invalid session heartbeat: %v", err)
		return
	}
	if h.callbacks.OnSessionHeartbeat != nil {
		h.callbacks.OnSessionHeartbeat(ev)
	}
}

func (h *Handler) handleSessionStatus(msg *Message) {
	var ev SessionStatusEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("[BUS-HANDLER] invalid session status: %v", err)
		return
	}
	if h.callbacks.OnSessionStatus != nil {
		h.callbacks.OnSessionStatus(ev)
	}
}

func (h *Handler) handleDriftPrediction(msg *Message) {
	var ev DriftPredictionEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("[BUS-HANDLER] invalid drift prediction: %v", err)
		return
	}
	if h.callbacks.OnDriftPrediction != nil {
		h.callbacks.OnDriftPrediction(ev)
	}
}

func (h *Handler) handleDriftGuardrail(msg *Message) {
	var ev DriftGuardrailEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("[BUS-HANDLER] invalid drift guardrail: %v", err)
		return
	}
	if h.callbacks.OnDriftGuardrail != nil {
		h.callbacks.OnDriftGuardrail(ev)
	}
}

func (h *Handler) handleMemoryPublished(msg *Message) {
	var ev MemoryPublishedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("[BUS-HANDLER] invalid memory published event: %v", err)
		return
	}
	if h.callbacks.OnMemoryPublished != nil {
		h.callbacks.OnMemoryPublished(ev)
	}
}
