// Package workflow runs one user-initiated panel action end to end:
// validate, lock the submit control, dispatch, interpret, render, unlock.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"narrate/pkg/action"
	"narrate/pkg/journal"
	"narrate/pkg/logx"
	"narrate/pkg/metrics"
	"narrate/pkg/notify"
	"narrate/pkg/transport"
	"narrate/pkg/validate"
)

// Default timings.
const (
	DefaultSuccessDismiss = 2 * time.Second
	DefaultNavigateDelay  = 2 * time.Second
)

// TextDone is shown for a success whose handler chose no text.
const TextDone = "Request has been successfully completed!"

// Journal receives one entry per dispatched action.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Action describes a single submission.
type Action struct {
	Name    string
	Request action.Request
	// Form is the validation input. It is usually the same form the
	// request encodes.
	Form     action.Form
	Rules    validate.Rules
	Classify action.Classifier
	Lock     *Lock
	Fields   Fields
}

// Reaction is what a handler wants rendered for an outcome.
type Reaction struct {
	Notice notify.Notice
	// Invalid fields are highlighted; the first is focused.
	Invalid []string
	// NavigateTo is honored for successes only.
	NavigateTo    string
	NavigateAfter time.Duration
	// Continue takes ownership of the lease; it must release it.
	Continue func(ctx context.Context, out action.Outcome, lease *Lease)
}

// Handlers map outcome kinds to reactions. Any may be nil.
type Handlers struct {
	OnSuccess      func(action.Outcome) Reaction
	OnClientError  func(action.Outcome) Reaction
	OnNetworkError func(action.Outcome) Reaction
}

// Result reports what Execute did.
type Result struct {
	ID         string
	Outcome    action.Outcome
	Validation validate.Errors
	Notice     notify.Notice
	NavigateTo string
	Continued  bool
	Dispatched bool
}

// Err returns the validation failure or a non-success outcome as an error.
func (r Result) Err() error {
	if r.Validation != nil {
		return r.Validation
	}
	if !r.Dispatched {
		return nil
	}
	return r.Outcome.AsError()
}

// Workflow executes actions against one transport.
type Workflow struct {
	transport      transport.Transport
	notifier       notify.Notifier
	navigator      notify.Navigator
	recorder       metrics.Recorder
	journal        Journal
	logger         *logx.Logger
	successDismiss time.Duration
	navigateDelay  time.Duration
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Workflow) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithJournal sets the action journal.
func WithJournal(j Journal) Option {
	return func(w *Workflow) { w.journal = j }
}

// WithSuccessDismiss sets how long success notices stay visible.
func WithSuccessDismiss(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.successDismiss = d
		}
	}
}

// WithNavigateDelay sets the default delay before a success navigation.
func WithNavigateDelay(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.navigateDelay = d
		}
	}
}

// New creates a Workflow.
func New(t transport.Transport, n notify.Notifier, nav notify.Navigator, opts ...Option) *Workflow {
	w := &Workflow{
		transport:      t,
		notifier:       n,
		navigator:      nav,
		recorder:       metrics.Nop{},
		logger:         logx.NewLogger("workflow"),
		successDismiss: DefaultSuccessDismiss,
		navigateDelay:  DefaultNavigateDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute runs act. The only error returned is ErrBusy; every other
// failure is reported through the Result and the notifier.
func (w *Workflow) Execute(ctx context.Context, act Action, h Handlers) (Result, error) {
	res := Result{ID: uuid.NewString()}
	ctx = logx.WithActionID(ctx, res.ID)

	if act.Fields != nil {
		act.Fields.ClearInvalid()
	}
	if errs := act.Rules.Check(act.Form); errs != nil {
		res.Validation = errs
		w.recorder.IncValidationFailure(act.Name)
		logx.Debug(ctx, "workflow", "%s: validation failed on %v", act.Name, errs.Fields())
		if act.Fields != nil {
			act.Fields.MarkInvalid(errs.Fields()...)
			act.Fields.Focus(errs.First())
		}
		return res, nil
	}

	lease, err := act.Lock.Acquire()
	if err != nil {
		logx.Debug(ctx, "workflow", "%s: %v", act.Name, err)
		return res, err
	}
	logx.DebugState(ctx, "workflow", "enabled", "disabled")

	start := time.Now()
	resp, err := w.transport.Do(ctx, act.Request)
	elapsed := time.Since(start)
	res.Dispatched = true

	out := action.Interpret(resp, err)
	if act.Classify != nil {
		out = act.Classify(out)
		if out.Body == nil {
			out.Body = action.Body{}
		}
	}
	res.Outcome = out
	w.recorder.ObserveAction(act.Name, out.Kind.String(), out.Status, elapsed)
	if out.Kind == action.KindNetworkError {
		w.logger.Warn("%s %s failed: %v", act.Request.Method(), act.Request.Target(), out.Err)
	} else {
		logx.Debug(ctx, "workflow", "%s %s -> %d %s", act.Request.Method(), act.Request.Target(), out.Status, out.Kind)
	}

	r := w.react(out, h)
	res.Notice = r.Notice
	w.render(act, r)

	switch {
	case out.OK() && r.NavigateTo != "":
		delay := r.NavigateAfter
		if delay <= 0 {
			delay = w.navigateDelay
		}
		res.NavigateTo = r.NavigateTo
		lease.Supersede()
		if w.navigator != nil {
			w.navigator.NavigateAfter(delay, r.NavigateTo)
		}
	case out.OK() && r.Continue != nil:
		res.Continued = true
		r.Continue(ctx, out, lease)
	default:
		lease.Release()
		logx.DebugState(ctx, "workflow", "disabled", "enabled")
	}

	w.record(ctx, act, res, elapsed)
	return res, nil
}

// react asks the matching handler and fills in the defaults it left out.
func (w *Workflow) react(out action.Outcome, h Handlers) Reaction {
	var r Reaction
	switch out.Kind {
	case action.KindSuccess:
		if h.OnSuccess == nil {
			r.Notice = notify.Notice{Kind: notify.Success, Text: TextDone}
		} else {
			r = h.OnSuccess(out)
		}
		if !r.Notice.Empty() {
			if r.Notice.Kind == "" {
				r.Notice.Kind = notify.Success
			}
			r.Notice.AutoDismiss = w.successDismiss
		}
		return r

	case action.KindClientError, action.KindServerError:
		if h.OnClientError != nil {
			r = h.OnClientError(out)
		}
		if r.Notice.Empty() {
			r.Notice.Text = defaultErrorText(out)
		}

	case action.KindNetworkError:
		if h.OnNetworkError != nil {
			r = h.OnNetworkError(out)
		}
		if r.Notice.Empty() {
			r.Notice.Text = notify.TextConnectivity
		}
	}

	if r.Notice.Kind == "" {
		r.Notice.Kind = notify.Error
	}
	r.Notice.AutoDismiss = 0
	r.NavigateTo = ""
	r.Continue = nil
	return r
}

func defaultErrorText(out action.Outcome) string {
	if out.Kind == action.KindClientError {
		if msg := out.Message(); msg != "" {
			return msg
		}
	}
	return notify.TextGenericError
}

func (w *Workflow) render(act Action, r Reaction) {
	if len(r.Invalid) > 0 && act.Fields != nil {
		act.Fields.MarkInvalid(r.Invalid...)
		act.Fields.Focus(r.Invalid[0])
	}
	if !r.Notice.Empty() && w.notifier != nil {
		w.notifier.Notify(r.Notice)
	}
}

func (w *Workflow) record(ctx context.Context, act Action, res Result, elapsed time.Duration) {
	if w.journal == nil {
		return
	}
	entry := journal.Entry{
		ID:       res.ID,
		Action:   act.Name,
		Method:   act.Request.Method(),
		Target:   act.Request.Target(),
		Outcome:  res.Outcome.Kind.String(),
		Status:   res.Outcome.Status,
		Reason:   res.Outcome.Reason,
		Message:  res.Notice.Text,
		Duration: elapsed,
	}
	if err := w.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		w.logger.Warn("failed to journal %s: %v", act.Name, err)
	}
}

// IsBusy reports whether err came from a locked submit control.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

