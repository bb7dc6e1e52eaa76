package sync

import (
	"time"
)

// NotificationTarget says where the details of a notification lead.
type NotificationTarget string

const (
	// TargetAccountSettings is used for authentication failures; the user has to fix credentials.
	TargetAccountSettings NotificationTarget = "account-settings"
	// TargetDebugInfo carries enough context to reproduce the failure.
	TargetDebugInfo NotificationTarget = "debug-info"
)

// Notification is the single user-visible report of a failed cycle.
type Notification struct {
	CollectionID string
	Account      string
	Authority    string
	Title        string
	Message      string
	Category     Category
	Target       NotificationTarget
	Retryable    bool
	RetryAfter   time.Duration
	CreatedAt    time.Time

	// debug info, empty for TargetAccountSettings
	Phase          string
	Error          string
	LocalResource  string
	RemoteResource string
}

// Notifier is the notification channel. Slots are addressed by collection ID
// so concurrent cycles of different collections never collide.
type Notifier interface {
	Dismiss(collectionID string) error
	Notify(n *Notification) error
}

type nopNotifier struct{}

func (nopNotifier) Dismiss(string) error       { return nil }
func (nopNotifier) Notify(*Notification) error { return nil }

// Diagnostics names the resources touched last, for failure reports.
type Diagnostics struct {
	LocalResource  string
	RemoteResource string
}

// SetLocal records the local resource being processed.
func (d *Diagnostics) SetLocal(r LocalResource) {
	if r == nil {
		d.LocalResource = ""
		return
	}
	d.LocalResource = r.String()
}

// SetRemote records the remote address being processed.
func (d *Diagnostics) SetRemote(url string) {
	d.RemoteResource = url
}

// Clear forgets both resources once an entry was handled.
func (d *Diagnostics) Clear() {
	d.LocalResource = ""
	d.RemoteResource = ""
}
