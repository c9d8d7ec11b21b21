package notifications

import (
	"runtime"

	"github.com/agentfleet/pilot/internal/events"
)

// TerminalChannel adapts TerminalNotifier to the NotificationChannel
// contract, so the policy's "terminal" entry in Notifications.Channels
// resolves to a real channel (spec §6's notification-channel config).
type TerminalChannel struct {
	notifier *TerminalNotifier
}

// NewTerminalChannel builds the terminal channel.
func NewTerminalChannel() *TerminalChannel {
	return &TerminalChannel{notifier: NewTerminalNotifier()}
}

func (c *TerminalChannel) Name() string { return "terminal" }

// ShouldNotify flashes the terminal title for anything above info severity.
// A digest flush routes info-level events to every channel, so this check
// is what keeps them out of the terminal.
func (c *TerminalChannel) ShouldNotify(event events.Event) bool {
	return event.Priority <= events.PriorityHigh
}

func (c *TerminalChannel) Send(event events.Event) error {
	body, _ := event.Payload["body"].(string)
	if body == "" {
		body, _ = event.Payload["title"].(string)
	}
	if event.Priority == events.PriorityCritical {
		return c.notifier.NotifySupervisorNeedsInput(body)
	}
	return c.notifier.FlashTerminal(body)
}

// ToastChannel adapts ToastNotifier to NotificationChannel. It only ever
// succeeds on Windows; elsewhere Send returns an error the router logs and
// moves on, matching the teacher's best-effort fire-and-forget channels.
type ToastChannel struct {
	notifier *ToastNotifier
}

// NewToastChannel builds the toast channel.
func NewToastChannel(appID string) *ToastChannel {
	return &ToastChannel{notifier: NewToastNotifier(appID)}
}

func (c *ToastChannel) Name() string { return "toast" }

func (c *ToastChannel) ShouldNotify(event events.Event) bool {
	return runtime.GOOS == "windows" && event.Priority <= events.PriorityHigh
}

func (c *ToastChannel) Send(event events.Event) error {
	title, _ := event.Payload["title"].(string)
	body, _ := event.Payload["body"].(string)
	if title == "" {
		title = "pilotd"
	}
	if event.Priority == events.PriorityCritical {
		return c.notifier.NotifySupervisorNeedsInput(body)
	}
	return c.notifier.ShowToast(title, body)
}

// BannerChannel adapts BannerNotifier to NotificationChannel, surfacing the
// dashboard-facing banner state a front-end would poll via the control API.
type BannerChannel struct {
	notifier *BannerNotifier
}

// NewBannerChannel builds the banner channel.
func NewBannerChannel() *BannerChannel {
	return &BannerChannel{notifier: NewBannerNotifier()}
}

func (c *BannerChannel) Name() string { return "banner" }

func (c *BannerChannel) ShouldNotify(event events.Event) bool { return true }

func (c *BannerChannel) Send(event events.Event) error {
	body, _ := event.Payload["body"].(string)
	if event.Priority == events.PriorityCritical {
		return c.notifier.ShowSupervisorAlert(body)
	}
	bannerType := string(BannerTypeInfo)
	if event.Priority == events.PriorityHigh {
		bannerType = string(BannerTypeWarning)
	}
	return c.notifier.Show(body, bannerType)
}

// State exposes the banner's current state for a control-API handler.
func (c *BannerChannel) State() BannerState { return c.notifier.GetState() }
