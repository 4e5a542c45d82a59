// Package poll repeatedly queries a status endpoint until the background
// task it tracks reaches a terminal state.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"narrate/pkg/action"
	"narrate/pkg/logx"
	"narrate/pkg/metrics"
	"narrate/pkg/notify"
	"narrate/pkg/transport"
	"narrate/pkg/workflow"
)

// Task status values reported by the backend.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Defaults.
const (
	DefaultInterval           = 500 * time.Millisecond
	DefaultMaxNetworkFailures = 10
	DefaultStatusField        = "task_status"
)

// State is the lifecycle of a Session.
type State int

const (
	Idle State = iota
	Polling
	Completed
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further ticks will be issued.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Stopped
}

// Config controls tick cadence and failure tolerance.
type Config struct {
	Interval time.Duration
	// MaxNetworkFailures is the number of consecutive ticks without a
	// response after which the session fails.
	MaxNetworkFailures int
	StatusField        string
	SuccessDismiss     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxNetworkFailures <= 0 {
		c.MaxNetworkFailures = DefaultMaxNetworkFailures
	}
	if c.StatusField == "" {
		c.StatusField = DefaultStatusField
	}
	if c.SuccessDismiss <= 0 {
		c.SuccessDismiss = workflow.DefaultSuccessDismiss
	}
	return c
}

// Job is what a session polls for.
type Job struct {
	Name    string
	Request action.Request
	// Key correlates the session with the background task, e.g. an email.
	Key         string
	SuccessText string
	FailureText string
	// Lease is released when the session ends, however it ends.
	Lease *workflow.Lease
}

// Poller runs at most one active Session.
type Poller struct {
	transport transport.Transport
	notifier  notify.Notifier
	recorder  metrics.Recorder
	cfg       Config
	logger    *logx.Logger

	mu      sync.Mutex
	current *Session
}

// NewPoller creates a Poller. A nil recorder records nothing.
func NewPoller(t transport.Transport, n notify.Notifier, rec metrics.Recorder, cfg Config) *Poller {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Poller{
		transport: t,
		notifier:  n,
		recorder:  rec,
		cfg:       cfg.withDefaults(),
		logger:    logx.NewLogger("poll"),
	}
}

// Start stops the active session, if any, and begins polling for job.
// The first tick fires one interval after Start.
func (p *Poller) Start(ctx context.Context, job Job) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		poller: p,
		job:    job,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  Polling,
	}

	p.mu.Lock()
	prev := p.current
	p.current = s
	p.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	logx.DebugState(ctx, "poll", Idle.String(), Polling.String())
	go s.run(ctx)
	return s
}

// Stop stops the active session.
func (p *Poller) Stop() {
	if s := p.Current(); s != nil {
		s.Stop()
	}
}

// Current returns the most recently started session.
func (p *Poller) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Session is one polling run.
type Session struct {
	poller *Poller
	job    Job
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	ticks    int
	failures int
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Key returns the correlating key.
func (s *Session) Key() string { return s.job.Key }

// Ticks returns how many ticks have been dispatched.
func (s *Session) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Done is closed once the session's goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Stop ends the session without a notification. Responses still in flight
// are discarded.
func (s *Session) Stop() {
	if s.finish(Stopped) {
		s.poller.logger.Debug("stopped poll %s for %s", s.job.Name, s.job.Key)
	}
}

// finish moves the session into a terminal state exactly once.
func (s *Session) finish(state State) bool {
	s.mu.Lock()
	if s.state != Polling {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.mu.Unlock()

	s.cancel()
	s.job.Lease.Release()
	return true
}

func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Polling
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.poller.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			if !s.tick(ctx) {
				return
			}
		}
	}
}

// tick issues one status request and reports whether polling continues.
func (s *Session) tick(ctx context.Context) bool {
	s.mu.Lock()
	s.ticks++
	n := s.ticks
	s.mu.Unlock()

	p := s.poller
	resp, err := p.transport.Do(ctx, s.job.Request)
	if !s.active() {
		return false
	}
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		s.Stop()
		return false
	}

	out := action.Interpret(resp, err)
	switch out.Kind {
	case action.KindNetworkError:
		p.recorder.IncPollTick("network_error")
		s.mu.Lock()
		s.failures++
		failures := s.failures
		s.mu.Unlock()
		p.logger.Warn("poll %s tick %d got no response (%d/%d): %v", s.job.Name, n, failures, p.cfg.MaxNetworkFailures, out.Err)
		if failures >= p.cfg.MaxNetworkFailures {
			s.terminate(Failed, notify.Notice{Kind: notify.Error, Text: notify.TextConnectivity})
			return false
		}
		return true

	case action.KindClientError, action.KindServerError:
		p.recorder.IncPollTick(out.Kind.String())
		text := notify.TextGenericError
		if out.Kind == action.KindClientError && out.Message() != "" {
			text = out.Message()
		}
		s.terminate(Failed, notify.Notice{Kind: notify.Error, Text: text})
		return false
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()

	status := out.Body.String(p.cfg.StatusField)
	if status == "" {
		p.recorder.IncPollTick("unknown")
	} else {
		p.recorder.IncPollTick(status)
	}
	logx.Debug(ctx, "poll", "%s tick %d for %s: %q", s.job.Name, n, s.job.Key, status)

	switch status {
	case StatusSuccess:
		text := s.job.SuccessText
		if text == "" {
			text = workflow.TextDone
		}
		s.terminate(Completed, notify.Notice{Kind: notify.Success, Text: text, AutoDismiss: p.cfg.SuccessDismiss})
		return false
	case StatusFailure:
		text := s.job.FailureText
		if text == "" {
			text = notify.TextGenericError
		}
		s.terminate(Failed, notify.Notice{Kind: notify.Error, Text: text})
		return false
	default:
		return true
	}
}

func (s *Session) terminate(state State, n notify.Notice) {
	if !s.finish(state) {
		return
	}
	logx.DebugState(context.Background(), "poll", Polling.String(), state.String())
	s.poller.logger.Info("%s for %s ended %s after %d ticks", s.job.Name, s.job.Key, state, s.Ticks())
	if !n.Empty() && s.poller.notifier != nil {
		s.poller.notifier.Notify(n)
	}
}
