// Package notify defines the user-facing notification and navigation
// capabilities a workflow renders outcomes through.
package notify

import (
	"time"
)

// Kind is the notification style.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
	Warning Kind = "warning"
)

// Notice is one notification. AutoDismiss of zero means it persists until dismissed.
type Notice struct {
	Kind        Kind
	Text        string
	AutoDismiss time.Duration
}

// Transient reports whether the notice dismisses itself.
func (n Notice) Transient() bool { return n.AutoDismiss > 0 }

// Empty reports whether there is nothing to show.
func (n Notice) Empty() bool { return n.Text == "" }

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// Navigator replaces the current page after a delay.
type Navigator interface {
	NavigateAfter(delay time.Duration, url string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Fallback texts shared by every page.
const (
	TextGenericError = "Something went wrong. Please try again later."
	TextConnectivity = "Unable to communicate with the server. Please try again later."
	TextLoadError    = "There was an error loading data. Please try again later."
)
