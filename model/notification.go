package model

import "time"

// Notification severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Notification is a transient, dismissible message for the user.
type Notification struct {
	Severity string         `json:"severity"`
	Kind     EntityKind     `json:"kind,omitempty"`
	Message  string         `json:"message"`
	Error    *ErrorEnvelope `json:"error,omitempty"`
	Time     time.Time      `json:"time"`
}

// Notifier delivers notifications to the user. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
