// Package testkit provides fakes for the panel's UI capabilities and a
// scripted mock backend.
package testkit

import (
	"testing"

	"narrate/pkg/notify"
)

// AssertSingleNotice verifies exactly one notice was shown and returns it.
func AssertSingleNotice(t *testing.T, n *RecordingNotifier) notify.Notice {
	t.Helper()
	notices := n.Notices()
	if len(notices) != 1 {
		t.Fatalf("Expected exactly one notice, got %d: %+v", len(notices), notices)
	}
	return notices[0]
}

// AssertNotice verifies the most recent notice.
func AssertNotice(t *testing.T, n *RecordingNotifier, kind notify.Kind, text string) {
	t.Helper()
	last, ok := n.Last()
	if !ok {
		t.Fatalf("Expected a %s notice %q, got none", kind, text)
	}
	if last.Kind != kind {
		t.Errorf("Expected notice kind %s, got %s", kind, last.Kind)
	}
	if last.Text != text {
		t.Errorf("Expected notice text %q, got %q", text, last.Text)
	}
}

// AssertPersistent verifies a notice stays until dismissed.
func AssertPersistent(t *testing.T, notice notify.Notice) {
	t.Helper()
	if notice.Transient() {
		t.Errorf("Expected persistent notice, got auto-dismiss after %s", notice.AutoDismiss)
	}
}

// AssertTransient verifies a notice dismisses itself.
func AssertTransient(t *testing.T, notice notify.Notice) {
	t.Helper()
	if !notice.Transient() {
		t.Errorf("Expected transient notice %q", notice.Text)
	}
}

// AssertEnabled verifies the control ended enabled.
func AssertEnabled(t *testing.T, c *FakeControl) {
	t.Helper()
	if c.Disabled() {
		t.Errorf("Expected control enabled, events: %v", c.Events())
	}
}

// AssertDisabled verifies the control ended disabled.
func AssertDisabled(t *testing.T, c *FakeControl) {
	t.Helper()
	if !c.Disabled() {
		t.Errorf("Expected control disabled, events: %v", c.Events())
	}
}
