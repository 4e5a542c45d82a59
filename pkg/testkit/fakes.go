package testkit

import (
	"sync"
	"time"

	"narrate/pkg/notify"
)

// FakeControl records enable/disable transitions of a submit control.
type FakeControl struct {
	mu       sync.Mutex
	disabled bool
	events   []string
}

// Disable implements workflow.Control.
func (c *FakeControl) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = true
	c.events = append(c.events, "disable")
}

// Enable implements workflow.Control.
func (c *FakeControl) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = false
	c.events = append(c.events, "enable")
}

// Disabled reports the current state.
func (c *FakeControl) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Events returns the transitions in order.
func (c *FakeControl) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

// FakeFields tracks the invalid-field set of a form.
type FakeFields struct {
	mu      sync.Mutex
	invalid []string
	focused string
	clears  int
}

// ClearInvalid implements workflow.Fields.
func (f *FakeFields) ClearInvalid() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalid = nil
	f.focused = ""
	f.clears++
}

// MarkInvalid implements workflow.Fields.
func (f *FakeFields) MarkInvalid(fields ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range fields {
		if !contains(f.invalid, name) {
			f.invalid = append(f.invalid, name)
		}
	}
}

// Focus implements workflow.Fields.
func (f *FakeFields) Focus(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = field
}

// Invalid returns the highlighted fields.
func (f *FakeFields) Invalid() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalid...)
}

// Focused returns the focused field.
func (f *FakeFields) Focused() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused
}

// Clears returns how many times the set was cleared.
func (f *FakeFields) Clears() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

// RecordingNotifier keeps every notice it is asked to show.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	ch      chan notify.Notice
}

// NewRecordingNotifier creates a notifier whose notices can also be awaited.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{ch: make(chan notify.Notice, 64)}
}

// Notify implements notify.Notifier.
func (r *RecordingNotifier) Notify(n notify.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
	if r.ch != nil {
		select {
		case r.ch <- n:
		default:
		}
	}
}

// Notices returns the recorded notices in order.
func (r *RecordingNotifier) Notices() []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *RecordingNotifier) Last() (notify.Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return notify.Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Wait blocks until a notice arrives or timeout elapses.
func (r *RecordingNotifier) Wait(timeout time.Duration) (notify.Notice, bool) {
	select {
	case n := <-r.ch:
		return n, true
	case <-time.After(timeout):
		return notify.Notice{}, false
	}
}

// Navigation is one recorded page change.
type Navigation struct {
	Delay time.Duration
	URL   string
}

// FakeNavigator records navigations instead of performing them.
type FakeNavigator struct {
	mu   sync.Mutex
	navs []Navigation
}

// NavigateAfter implements notify.Navigator.
func (n *FakeNavigator) NavigateAfter(delay time.Duration, url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.navs = append(n.navs, Navigation{Delay: delay, URL: url})
}

// Navigations returns the recorded navigations.
func (n *FakeNavigator) Navigations() []Navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Navigation(nil), n.navs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
