package panel

import (
	"context"
	"net/http"
	"net/url"

	"narrate/pkg/action"
	"narrate/pkg/notify"
	"narrate/pkg/poll"
	"narrate/pkg/validate"
	"narrate/pkg/workflow"
)

// Account endpoints.
const (
	PathLogin            = "account-management/login/"
	PathRegister         = "account-management/register_user/"
	PathActivate         = "account-management/activate_account/"
	PathRequestResetCode = "account-management/request_password_reset_code/"
	PathResetEmailStatus = "account-management/poll_reset_email_status/"
	PathResetPassword    = "account-management/reset_password/"
	PathUpdatePassword   = "account-management/update_password/"
	PathUpdateProfile    = "account-management/update_profile/"
)

// Account texts.
const (
	TextNotActivated      = "Your account is not activated yet. Please activate it before you login."
	TextWrongCredentials  = "Wrong credentials, please try again."
	TextRegistered        = "Account has been successfully created!"
	TextEmailInUse        = "The email is already in use. Please try a different one."
	TextActivated         = "Account has been successfully activated!"
	TextAlreadyActivated  = "Account is already activated."
	TextActivationInvalid = "The provided information is incorrect. Please try again."
	TextResetRequested    = "Request reset code via email has been successfully completed! Please follow the instructions on the email."
	TextResetFailed       = "Unable to request reset code via email. Please try again later."
	TextPasswordUpdated   = "Password has been successfully updated!"
	TextWrongPassword     = "The Existing Password you provided is not correct. Please try again."
	TextProfileUpdated    = "Profile details have been successfully updated!"
)

// Activation outcome reasons.
const (
	ReasonActivated        = "activated"
	ReasonAlreadyActivated = "already_activated"
	ReasonNotActivated     = "not_activated"
)

// SignIn posts credentials and follows the next_url the backend returns.
func (p *Panel) SignIn(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	act := workflow.Action{
		Name:    "sign_in",
		Request: action.PostForm(PathLogin, pick(form, "email", "password", "organization")),
		Form:    form,
		Rules:   p.rules("sign_in", validate.Required("email", "password")),
	}
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess: func(out action.Outcome) workflow.Reaction {
			next := out.Body.String("next_url")
			if next == "" {
				next = PageDashboard
			}
			return workflow.Reaction{NavigateTo: next, NavigateAfter: p.signInDelay}
		},
		OnClientError: func(out action.Outcome) workflow.Reaction {
			if out.Status == http.StatusForbidden {
				return workflow.Reaction{Notice: notify.Notice{Kind: notify.Warning, Text: TextNotActivated}}
			}
			return workflow.Reaction{Notice: notify.Notice{Text: TextWrongCredentials}}
		},
	})
}

// Register creates an account and sends the user to activation.
func (p *Panel) Register(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	act := workflow.Action{
		Name:    "register",
		Request: action.PostForm(PathRegister, pick(form, "email", "password", "organization", "name", "surname")),
		Form:    form,
		Rules: p.rules("register", append(validate.Required("email", "password", "confirm_password"),
			validate.MinLength("password", validate.MinPasswordLength),
			validate.Equals("confirm_password", "password"),
		)),
	}
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess: succeed(TextRegistered, PageActivate),
		OnClientError: func(out action.Outcome) workflow.Reaction {
			if out.Body.Contains("already_exists_fields", "email") {
				return workflow.Reaction{Notice: notify.Notice{Text: TextEmailInUse}, Invalid: []string{"email"}}
			}
			return workflow.Reaction{Notice: notify.Notice{Text: notify.TextGenericError}}
		},
	})
}

// ClassifyActivation routes the tri-state activation body. A 2xx body
// with neither flag set is a client error.
func ClassifyActivation(out action.Outcome) action.Outcome {
	if !out.OK() {
		return out
	}
	switch {
	case out.Body.Bool("resource_is_already_activated"):
		out.Reason = ReasonAlreadyActivated
	case out.Body.Bool("resource_is_activated"):
		out.Reason = ReasonActivated
	default:
		out.Kind = action.KindClientError
		out.Reason = ReasonNotActivated
	}
	return out
}

// Activate confirms an account with the emailed activation code.
func (p *Panel) Activate(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	act := workflow.Action{
		Name:     "activate_account",
		Request:  action.PostForm(PathActivate, pick(form, "email", "activation_code")),
		Form:     form,
		Rules:    p.rules("activate_account", validate.Required("email", "activation_code")),
		Classify: ClassifyActivation,
	}
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess: func(out action.Outcome) workflow.Reaction {
			if out.Reason == ReasonAlreadyActivated {
				return workflow.Reaction{Notice: notify.Notice{Kind: notify.Info, Text: TextAlreadyActivated}, NavigateTo: PageLogin}
			}
			return workflow.Reaction{Notice: notify.Notice{Text: TextActivated}, NavigateTo: PageLogin}
		},
		OnClientError: fail(TextActivationInvalid),
	})
}

// ResetStatusRequest builds the poll request for an email's reset task.
func ResetStatusRequest(email string) action.Request {
	return action.Get(PathResetEmailStatus, url.Values{"email": {email}})
}

// RequestResetCode asks the backend to email a reset code, then polls the
// email task until it settles. The submit control stays locked while polling.
func (p *Panel) RequestResetCode(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	act := workflow.Action{
		Name:    "request_reset_code",
		Request: action.PostForm(PathRequestResetCode, pick(form, "email")),
		Form:    form,
		Rules:   p.rules("request_reset_code", validate.Required("email")),
	}
	email := form.Value("email")
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess: func(action.Outcome) workflow.Reaction {
			if p.poller == nil {
				return workflow.Reaction{Notice: notify.Notice{Text: TextResetRequested}}
			}
			return workflow.Reaction{
				Continue: func(ctx context.Context, _ action.Outcome, lease *workflow.Lease) {
					p.poller.Start(ctx, poll.Job{
						Name:        "reset_email_status",
						Request:     ResetStatusRequest(email),
						Key:         email,
						SuccessText: TextResetRequested,
						FailureText: TextResetFailed,
						Lease:       lease,
					})
				},
			}
		},
	})
}

// ResetPassword sets a new password using the emailed reset code.
func (p *Panel) ResetPassword(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	act := workflow.Action{
		Name:    "reset_password",
		Request: action.PostForm(PathResetPassword, pick(form, "email", "password", "reset_code")),
		Form:    form,
		Rules: p.rules("reset_password", append(validate.Required("email", "password", "reset_code"),
			validate.MinLength("password", validate.MinPasswordLength),
		)),
	}
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess: succeed(TextPasswordUpdated, PageLogin),
	})
}

// UpdatePassword changes the signed-in user's password.
func (p *Panel) UpdatePassword(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	req, err := action.PostJSON(PathUpdatePassword, map[string]string{
		"current_password": form.Value("current_password"),
		"new_password":     form.Value("new_password"),
	})
	if err != nil {
		return workflow.Result{}, err
	}
	act := workflow.Action{
		Name:    "update_password",
		Request: req,
		Form:    form,
		Rules: p.rules("update_password", append(validate.Required("current_password", "new_password", "confirm_new_password"),
			validate.MinLength("new_password", validate.MinPasswordLength),
			validate.Equals("confirm_new_password", "new_password"),
		)),
	}
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess: succeed(TextPasswordUpdated, PageDashboard),
		OnClientError: func(out action.Outcome) workflow.Reaction {
			if out.Status == http.StatusUnprocessableEntity {
				return workflow.Reaction{Notice: notify.Notice{Text: TextWrongPassword}, Invalid: []string{"current_password"}}
			}
			return workflow.Reaction{Notice: notify.Notice{Text: notify.TextGenericError}}
		},
	})
}

// ProfilePictureType tags profile uploads.
const ProfilePictureType = "profile_pic"

// UpdateProfile saves the signed-in user's profile details.
func (p *Panel) UpdateProfile(ctx context.Context, form action.Form, ui UI) (workflow.Result, error) {
	req, err := action.PostJSON(PathUpdateProfile, map[string]string{
		"name":          form.Value("name"),
		"surname":       form.Value("surname"),
		"telephone":     form.Value("telephone"),
		"media_type_id": form.Value("media_type_id"),
		"type":          ProfilePictureType,
	})
	if err != nil {
		return workflow.Result{}, err
	}
	act := workflow.Action{
		Name:    "update_profile",
		Request: req,
		Form:    form,
		Rules:   p.rules("update_profile", validate.Required("name", "surname")),
	}
	return p.run(ctx, act, ui, workflow.Handlers{
		OnSuccess:     succeed(TextProfileUpdated, PageProfile),
		OnClientError: fail(notify.TextGenericError),
	})
}
