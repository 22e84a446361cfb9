package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/vpn"
	"golang.org/x/time/rate"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = notifyDest + ".Notify"

	notifyTimeoutMS = 5000
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// urgency returns the freedesktop urgency level: 0 low, 1 normal, 2 critical.
func (t NotificationType) urgency() byte {
	switch t {
	case NotificationError:
		return 2
	case NotificationWarning:
		return 1
	default:
		return 0
	}
}

func (t NotificationType) icon() string {
	switch t {
	case NotificationWarning:
		return "dialog-warning"
	case NotificationError:
		return "network-vpn-error"
	default:
		return "network-vpn"
	}
}

// Notification represents a system notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Icon    string
}

// DesktopNotifier sends notifications over the session D-Bus. Bursts are
// rate limited; excess notifications are dropped. It implements
// common.Notifier.
type DesktopNotifier struct {
	conn    *dbus.Conn
	limiter *rate.Limiter

	mu     sync.Mutex
	lastID uint32
}

var _ common.Notifier = (*DesktopNotifier)(nil)

// NewDesktopNotifier connects to the session bus.
func NewDesktopNotifier() (*DesktopNotifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return &DesktopNotifier{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}, nil
}

// Notify sends an informational notification.
func (n *DesktopNotifier) Notify(title, message string) error {
	return n.Send(Notification{Title: title, Message: message})
}

// NotifyWithIcon sends a notification with a custom icon.
func (n *DesktopNotifier) NotifyWithIcon(title, message, icon string) error {
	return n.Send(Notification{Title: title, Message: message, Icon: icon})
}

// Send displays n. Each notification replaces the previous one so state
// changes do not stack up.
func (n *DesktopNotifier) Send(note Notification) error {
	if !n.limiter.Allow() {
		common.LogDebug("Notification dropped by rate limit: %s", note.Title)
		return nil
	}

	icon := note.Icon
	if icon == "" {
		icon = note.Type.icon()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(note.Type.urgency()),
	}
	call := n.conn.Object(notifyDest, notifyPath).Call(notifyMethod, 0,
		common.AppName, n.lastID, icon, note.Title, note.Message,
		[]string{}, hints, int32(notifyTimeoutMS))
	if call.Err != nil {
		return fmt.Errorf("sending notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err == nil {
		n.lastID = id
	}
	return nil
}

// notificationFor returns the notification for a status change, if any.
func notificationFor(prev, cur vpn.Session) (Notification, bool) {
	if prev.Status == cur.Status {
		return Notification{}, false
	}

	switch cur.Status {
	case vpn.StatusConnected:
		return Notification{
			Title:   "VPN Connected",
			Message: fmt.Sprintf("Tunnel address %s (%s)", cur.TunnelAddress, cur.Protocol),
			Type:    NotificationSuccess,
		}, true
	case vpn.StatusError:
		title := "Connection Error"
		if cur.Failure == vpn.FailureDrop {
			title = "Connection Lost"
		}
		return Notification{
			Title:   title,
			Message: cur.Detail,
			Type:    NotificationError,
		}, true
	case vpn.StatusDisconnected:
		if prev.Status != vpn.StatusDisconnecting {
			return Notification{}, false
		}
		return Notification{
			Title:   "VPN Disconnected",
			Message: "Connection terminated by user.",
			Type:    NotificationInfo,
			Icon:    "network-vpn-disconnected",
		}, true
	}
	return Notification{}, false
}

// notificationSender is satisfied by DesktopNotifier.
type notificationSender interface {
	Send(Notification) error
}

// WatchNotifications sends a notification for every notable status change
// until ctx is done or the controller closes.
func WatchNotifications(ctx context.Context, ctrl Controller, sender notificationSender) {
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	prev := ctrl.Snapshot().Session
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
		}

		cur := ctrl.Snapshot().Session
		if note, ok := notificationFor(prev, cur); ok {
			if err := sender.Send(note); err != nil {
				common.LogWarn("Notification failed: %v", err)
			}
		}
		prev = cur
	}
}
