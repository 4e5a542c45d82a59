package workflow

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrBusy is returned when a submission arrives while its control is still locked.
var ErrBusy = errors.New("workflow: submit control is locked")

// Control is the submit control of a form.
type Control interface {
	Disable()
	Enable()
}

// Fields is the invalid-field highlight set of a form.
type Fields interface {
	ClearInvalid()
	MarkInvalid(fields ...string)
	Focus(field string)
}

// Lock serializes actions started from one submit control. At most one
// Lease is outstanding at a time.
type Lock struct {
	mu      sync.Mutex
	control Control
	held    bool
}

// NewLock wraps control. A nil control yields a lock that only tracks state.
func NewLock(control Control) *Lock {
	return &Lock{control: control}
}

// Acquire disables the control and returns the lease that must later be
// released or superseded.
func (l *Lock) Acquire() (*Lease, error) {
	if l == nil {
		return &Lease{}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil, ErrBusy
	}
	l.held = true
	if l.control != nil {
		l.control.Disable()
	}
	return &Lease{lock: l}, nil
}

// Held reports whether a lease is outstanding.
func (l *Lock) Held() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *Lock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false
	if l.control != nil {
		l.control.Enable()
	}
}

// Lease is the right to re-enable a control. Only the first of Release or
// Supersede has any effect.
type Lease struct {
	lock *Lock
	once sync.Once
	end  atomic.Int32
}

const (
	leaseOpen int32 = iota
	leaseReleased
	leaseSuperseded
)

// Release re-enables the control.
func (le *Lease) Release() {
	if le == nil {
		return
	}
	le.once.Do(func() {
		le.end.Store(leaseReleased)
		if le.lock != nil {
			le.lock.release()
		}
	})
}

// Supersede ends the lease without re-enabling the control because the
// page is about to be replaced by navigation.
func (le *Lease) Supersede() {
	if le == nil {
		return
	}
	le.once.Do(func() {
		le.end.Store(leaseSuperseded)
	})
}

// Released reports whether Release ended the lease.
func (le *Lease) Released() bool {
	return le != nil && le.end.Load() == leaseReleased
}

// Superseded reports whether Supersede ended the lease.
func (le *Lease) Superseded() bool {
	return le != nil && le.end.Load() == leaseSuperseded
}
