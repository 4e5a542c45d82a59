package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"narrate/pkg/action"
	"narrate/pkg/notify"
	"narrate/pkg/testkit"
	"narrate/pkg/transport"
	"narrate/pkg/workflow"
)

const (
	successText = "Request reset code via email has been successfully completed! Please follow the instructions on the email."
	failureText = "Unable to request reset code via email. Please try again later."
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scripted answers each call with the next step; the last step repeats.
type scripted struct {
	mu    sync.Mutex
	steps []func(ctx context.Context) (*action.Response, error)
	calls int
}

func (s *scripted) Do(ctx context.Context, _ action.Request) (*action.Response, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	s.mu.Unlock()
	return step(ctx)
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func status(v string) func(context.Context) (*action.Response, error) {
	return func(context.Context) (*action.Response, error) {
		return &action.Response{Status: 200, Body: []byte(`{"task_status":"` + v + `"}`)}, nil
	}
}

func reply(code int, body string) func(context.Context) (*action.Response, error) {
	return func(context.Context) (*action.Response, error) {
		return &action.Response{Status: code, Body: []byte(body)}, nil
	}
}

func offline(context.Context) (*action.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

var _ transport.Transport = (*scripted)(nil)

func newJob(t *testing.T, control *testkit.FakeControl) Job {
	t.Helper()
	lease, err := workflow.NewLock(control).Acquire()
	require.NoError(t, err)
	return Job{
		Name:        "reset_email_status",
		Request:     action.Get("account-management/poll_reset_email_status/", nil).WithQuery("email", "a@b.c"),
		Key:         "a@b.c",
		SuccessText: successText,
		FailureText: failureText,
		Lease:       lease,
	}
}

func fastConfig() Config {
	return Config{Interval: 5 * time.Millisecond, SuccessDismiss: time.Second}
}

func waitDone(t *testing.T, s *Session) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := s.Wait(ctx)
	require.NoError(t, err)
	return state
}

func TestPollCompletesAfterPending(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){
		status(StatusPending), status(StatusPending), status(StatusSuccess),
	}}
	notifier := testkit.NewRecordingNotifier()
	control := &testkit.FakeControl{}
	p := NewPoller(tr, notifier, nil, fastConfig())

	s := p.Start(context.Background(), newJob(t, control))
	assert.Equal(t, Completed, waitDone(t, s))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, tr.Calls())
	assert.Equal(t, 3, s.Ticks())

	notice := testkit.AssertSingleNotice(t, notifier)
	assert.Equal(t, notify.Success, notice.Kind)
	assert.Equal(t, successText, notice.Text)
	testkit.AssertTransient(t, notice)
	testkit.AssertEnabled(t, control)
}

func TestPollFailureStatus(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){
		status(StatusPending), status(StatusFailure),
	}}
	notifier := testkit.NewRecordingNotifier()
	control := &testkit.FakeControl{}
	p := NewPoller(tr, notifier, nil, fastConfig())

	s := p.Start(context.Background(), newJob(t, control))
	assert.Equal(t, Failed, waitDone(t, s))

	notice := testkit.AssertSingleNotice(t, notifier)
	assert.Equal(t, failureText, notice.Text)
	testkit.AssertPersistent(t, notice)
	testkit.AssertEnabled(t, control)
}

func TestPollUnknownStatusKeepsPolling(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){
		reply(200, ""), status("STARTED"), reply(200, "garbage"), status(StatusSuccess),
	}}
	notifier := testkit.NewRecordingNotifier()
	p := NewPoller(tr, notifier, nil, fastConfig())

	s := p.Start(context.Background(), newJob(t, &testkit.FakeControl{}))
	assert.Equal(t, Completed, waitDone(t, s))
	assert.Equal(t, 4, tr.Calls())
}

func TestPollNonSuccessResponseFails(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){
		reply(400, `{"message":"No reset request found for this email."}`),
	}}
	notifier := testkit.NewRecordingNotifier()
	control := &testkit.FakeControl{}
	p := NewPoller(tr, notifier, nil, fastConfig())

	s := p.Start(context.Background(), newJob(t, control))
	assert.Equal(t, Failed, waitDone(t, s))
	testkit.AssertNotice(t, notifier, notify.Error, "No reset request found for this email.")
	testkit.AssertEnabled(t, control)
}

func TestPollGivesUpAfterNetworkFailures(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){offline}}
	notifier := testkit.NewRecordingNotifier()
	control := &testkit.FakeControl{}
	cfg := fastConfig()
	cfg.MaxNetworkFailures = 3
	p := NewPoller(tr, notifier, nil, cfg)

	s := p.Start(context.Background(), newJob(t, control))
	assert.Equal(t, Failed, waitDone(t, s))
	assert.Equal(t, 3, tr.Calls())
	testkit.AssertNotice(t, notifier, notify.Error, notify.TextConnectivity)
	testkit.AssertEnabled(t, control)
}

func TestPollNetworkFailuresResetOnResponse(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){
		offline, offline, status(StatusPending), offline, offline, status(StatusSuccess),
	}}
	cfg := fastConfig()
	cfg.MaxNetworkFailures = 3
	p := NewPoller(tr, testkit.NewRecordingNotifier(), nil, cfg)

	s := p.Start(context.Background(), newJob(t, &testkit.FakeControl{}))
	assert.Equal(t, Completed, waitDone(t, s))
}

func TestStopDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){
		func(context.Context) (*action.Response, error) {
			entered <- struct{}{}
			<-release
			return &action.Response{Status: 200, Body: []byte(`{"task_status":"SUCCESS"}`)}, nil
		},
	}}
	notifier := testkit.NewRecordingNotifier()
	control := &testkit.FakeControl{}
	p := NewPoller(tr, notifier, nil, fastConfig())

	s := p.Start(context.Background(), newJob(t, control))
	<-entered
	s.Stop()
	testkit.AssertEnabled(t, control)
	close(release)

	assert.Equal(t, Stopped, waitDone(t, s))
	assert.Empty(t, notifier.Notices())
	assert.Equal(t, 1, tr.Calls())
}

func TestStartStopsPreviousSession(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){status(StatusPending)}}
	p := NewPoller(tr, testkit.NewRecordingNotifier(), nil, fastConfig())

	first := p.Start(context.Background(), newJob(t, &testkit.FakeControl{}))
	second := p.Start(context.Background(), newJob(t, &testkit.FakeControl{}))

	assert.Equal(t, Stopped, waitDone(t, first))
	assert.Same(t, second, p.Current())
	assert.Equal(t, Polling, second.State())

	p.Stop()
	assert.Equal(t, Stopped, waitDone(t, second))
}

func TestParentCancelStops(t *testing.T) {
	tr := &scripted{steps: []func(context.Context) (*action.Response, error){status(StatusPending)}}
	control := &testkit.FakeControl{}
	p := NewPoller(tr, testkit.NewRecordingNotifier(), nil, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	s := p.Start(ctx, newJob(t, control))
	cancel()

	assert.Equal(t, Stopped, waitDone(t, s))
	testkit.AssertEnabled(t, control)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.True(t, Stopped.Terminal())
	assert.False(t, Polling.Terminal())
}
