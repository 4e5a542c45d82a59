package upload

import (
	"context"
	"sync"

	"narrate/pkg/logx"
	"narrate/pkg/notify"
)

// DefaultMaxFiles is how many files one widget holds.
const DefaultMaxFiles = 10

// Queue is a Widget that uploads through a TempStore and reports back to
// its Events.
type Queue struct {
	store    TempStore
	events   Events
	notifier notify.Notifier
	maxFiles int

	mu    sync.Mutex
	files []*File
}

// NewQueue creates a widget. maxFiles <= 0 selects DefaultMaxFiles.
func NewQueue(store TempStore, events Events, n notify.Notifier, maxFiles int) *Queue {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Queue{store: store, events: events, notifier: n, maxFiles: maxFiles}
}

// Add is a user dropping a file onto the widget.
func (q *Queue) Add(ctx context.Context, f *File) error {
	q.mu.Lock()
	if len(q.files) >= q.maxFiles {
		q.mu.Unlock()
		if q.notifier != nil {
			q.notifier.Notify(notify.Notice{Kind: notify.Error, Text: TextTooMany})
		}
		return ErrRejected
	}
	q.files = append(q.files, f)
	q.mu.Unlock()

	logx.Debug(ctx, "upload", "added %s as %s", f.Name, f.StagedName)
	return q.events.OnAccepted(ctx, f)
}

// Enqueue implements Widget.
func (q *Queue) Enqueue(ctx context.Context, f *File) {
	id, err := q.store.Stage(ctx, f)
	if err != nil {
		q.events.OnUploadError(ctx, f, err)
		return
	}
	q.events.OnUploadSuccess(ctx, f, id)
}

// Remove implements Widget.
func (q *Queue) Remove(ctx context.Context, f *File) {
	q.mu.Lock()
	found := false
	for i, have := range q.files {
		if have == f {
			q.files = append(q.files[:i], q.files[i+1:]...)
			found = true
			break
		}
	}
	q.mu.Unlock()

	if found {
		q.events.OnRemoved(ctx, f)
	}
}

// Files returns the files currently held.
func (q *Queue) Files() []*File {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*File(nil), q.files...)
}
