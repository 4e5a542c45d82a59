// Package panel is the catalogue of cataloguing-panel actions: every page
// submission expressed as a workflow.Action with its outcome handlers.
package panel

import (
	"context"
	"time"

	"narrate/pkg/action"
	"narrate/pkg/logx"
	"narrate/pkg/notify"
	"narrate/pkg/poll"
	"narrate/pkg/validate"
	"narrate/pkg/workflow"
)

// Page locations the panel navigates to.
const (
	PageLogin     = "/backend/login/"
	PageActivate  = "/backend/activate_account/"
	PageDashboard = "/backend/dashboard/"
	PageProfile   = "/backend/profile"
	PageMedia     = "/backend/treasures/media/"
)

// DefaultSignInDelay is the pause before following a successful login.
const DefaultSignInDelay = 250 * time.Millisecond

// UI is the page state an action is bound to.
type UI struct {
	Lock   *workflow.Lock
	Fields workflow.Fields
}

// Panel runs panel actions through one workflow.
type Panel struct {
	wf          *workflow.Workflow
	poller      *poll.Poller
	forms       validate.FormSet
	signInDelay time.Duration
	logger      *logx.Logger
}

// Option configures a Panel.
type Option func(*Panel)

// WithForms overrides built-in validation rules by form name.
func WithForms(forms validate.FormSet) Option {
	return func(p *Panel) { p.forms = forms }
}

// WithSignInDelay sets the pause before following a login redirect.
func WithSignInDelay(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.signInDelay = d
		}
	}
}

// New creates a Panel. poller may be nil when reset-code polling is unused.
func New(wf *workflow.Workflow, poller *poll.Poller, opts ...Option) *Panel {
	p := &Panel{
		wf:          wf,
		poller:      poller,
		signInDelay: DefaultSignInDelay,
		logger:      logx.NewLogger("panel"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poller returns the reset-status poller.
func (p *Panel) Poller() *poll.Poller { return p.poller }

func (p *Panel) rules(form string, def validate.Rules) validate.Rules {
	return p.forms.Lookup(form, def)
}

func (p *Panel) run(ctx context.Context, act workflow.Action, ui UI, h workflow.Handlers) (workflow.Result, error) {
	act.Lock = ui.Lock
	act.Fields = ui.Fields
	return p.wf.Execute(ctx, act, h)
}

// pick copies the named fields of form into a new form, leaving out
// inputs such as confirmations that are only validated locally.
func pick(form action.Form, fields ...string) action.Form {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f] = form.Value(f)
	}
	return action.NewForm(values)
}

func succeed(text, to string) func(action.Outcome) workflow.Reaction {
	return func(action.Outcome) workflow.Reaction {
		return workflow.Reaction{Notice: notify.Notice{Text: text}, NavigateTo: to}
	}
}

func fail(text string) func(action.Outcome) workflow.Reaction {
	return func(action.Outcome) workflow.Reaction {
		return workflow.Reaction{Notice: notify.Notice{Text: text}}
	}
}

func silent(action.Outcome) workflow.Reaction { return workflow.Reaction{} }
