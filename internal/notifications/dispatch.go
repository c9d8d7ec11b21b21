package notifications

import (
	"log"
	"sync"

	"github.com/agentfleet/pilot/internal/events"
)

// Severity is a notification's priority tier (spec §6).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Notification is the spec's notification-channel contract payload:
// {title, body, severity, event?, data?}.
type Notification struct {
	Title    string
	Body     string
	Severity Severity
	Event    events.EventType
	Data     map[string]interface{}
}

func (n Notification) toEvent(source string) events.Event {
	payload := map[string]interface{}{
		"title": n.Title,
		"body":  n.Body,
	}
	for k, v := range n.Data {
		payload[k] = v
	}
	priority := events.PriorityNormal
	switch n.Severity {
	case SeverityCritical:
		priority = events.PriorityCritical
	case SeverityWarning:
		priority = events.PriorityHigh
	}
	eventType := n.Event
	if eventType == "" {
		eventType = events.EventAlert
	}
	return *events.NewEvent(eventType, source, "", priority, payload)
}

// Dispatcher implements the spec's priority routing: critical notifications
// go to every channel, warning goes to the primary channel only, info is
// queued for the periodic digest flush.
type Dispatcher struct {
	all     *Router
	primary NotificationChannel

	mu     sync.Mutex
	digest []Notification
}

// NewDispatcher builds a Dispatcher. primary may be nil if no single
// "primary" channel is configured; warnings are then dropped with a log
// line (info and unrecognised severities still go to the digest queue).
func NewDispatcher(all *Router, primary NotificationChannel) *Dispatcher {
	return &Dispatcher{all: all, primary: primary}
}

// Dispatch routes n per its severity.
func (d *Dispatcher) Dispatch(n Notification) {
	switch n.Severity {
	case SeverityCritical:
		d.all.RouteWithWait(n.toEvent("dispatcher"))
	case SeverityWarning:
		if d.primary == nil {
			log.Printf("[NOTIFY-DISPATCH] no primary channel configured, dropping warning: %s", n.Title)
			return
		}
		ev := n.toEvent("dispatcher")
		if d.primary.ShouldNotify(ev) {
			if err := d.primary.Send(ev); err != nil {
				log.Printf("[NOTIFY-DISPATCH] primary channel send failed: %v", err)
			}
		}
	default: // info and anything unrecognised
		d.mu.Lock()
		d.digest = append(d.digest, n)
		d.mu.Unlock()
	}
}

// DigestSize reports how many notifications are queued for the next flush.
func (d *Dispatcher) DigestSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.digest)
}

// FlushDigest drains the queued info notifications, routes each through
// every channel, and returns what was flushed (spec §4.J.8: "Flushes the
// notification digest queue on its configured interval").
func (d *Dispatcher) FlushDigest() []Notification {
	d.mu.Lock()
	flushed := d.digest
	d.digest = nil
	d.mu.Unlock()

	for _, n := range flushed {
		d.all.Route(n.toEvent("dispatcher-digest"))
	}
	return flushed
}
