package notifications

import (
	"runtime"
	"testing"

	"github.com/agentfleet/pilot/internal/events"
)

func newTestEvent(priority int, body string) events.Event {
	return *events.NewEvent(events.EventAlert, "test", "", priority, map[string]interface{}{
		"title": "alert",
		"body":  body,
	})
}

func TestTerminalChannelNameAndFilter(t *testing.T) {
	ch := NewTerminalChannel()
	if ch.Name() != "terminal" {
		t.Fatalf("unexpected name: %s", ch.Name())
	}
	if !ch.ShouldNotify(newTestEvent(events.PriorityCritical, "x")) {
		t.Fatal("expected critical events to notify")
	}
	if ch.ShouldNotify(newTestEvent(events.PriorityLow, "x")) {
		t.Fatal("expected low priority events to be filtered out")
	}
}

func TestTerminalChannelSendDoesNotError(t *testing.T) {
	ch := NewTerminalChannel()
	if err := ch.Send(newTestEvent(events.PriorityCritical, "supervisor needs you")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := ch.Send(newTestEvent(events.PriorityNormal, "fyi")); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestToastChannelOnlyNotifiesOnWindows(t *testing.T) {
	ch := NewToastChannel("pilotd")
	if ch.Name() != "toast" {
		t.Fatalf("unexpected name: %s", ch.Name())
	}
	should := ch.ShouldNotify(newTestEvent(events.PriorityCritical, "x"))
	if runtime.GOOS == "windows" && !should {
		t.Fatal("expected toast to notify on windows")
	}
	if runtime.GOOS != "windows" && should {
		t.Fatal("expected toast to be suppressed off windows")
	}
}

func TestBannerChannelReflectsState(t *testing.T) {
	ch := NewBannerChannel()
	if ch.Name() != "banner" {
		t.Fatalf("unexpected name: %s", ch.Name())
	}
	if !ch.ShouldNotify(newTestEvent(events.PriorityLow, "x")) {
		t.Fatal("banner channel should accept all priorities")
	}
	if err := ch.Send(newTestEvent(events.PriorityCritical, "drift guardrail tripped")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	state := ch.State()
	if !state.Visible || state.Type != BannerTypeSupervisor {
		t.Fatalf("unexpected banner state: %+v", state)
	}
}
