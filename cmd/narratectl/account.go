package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"narrate/pkg/action"
	"narrate/pkg/config"
	"narrate/pkg/poll"
)

// secretFlag is a form field read through readSecret when its flag is empty.
type secretFlag struct {
	field string
	label string
	value string
}

// formFromFlags builds a form from plain flag values and prompts for secrets.
func (a *app) formFromFlags(cmd *cobra.Command, values map[string]*string, secrets ...*secretFlag) (action.Form, error) {
	fields := make(map[string]string, len(values)+len(secrets))
	for name, v := range values {
		fields[name] = *v
	}
	for _, s := range secrets {
		if s.value == "" {
			v, err := a.readSecret(cmd, s.label)
			if err != nil {
				return action.Form{}, err
			}
			s.value = v
		}
		fields[s.field] = s.value
	}
	return action.NewForm(fields), nil
}

func newSignInCmd(a *app) *cobra.Command {
	var email, organization string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and keep the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.formFromFlags(cmd,
				map[string]*string{"email": &email, "organization": &organization},
				&secretFlag{field: "password", label: "Password"})
			if err != nil {
				return err
			}
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.SignIn(cmd.Context(), form, a.ui(cmd)))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&organization, "organization", "", "organization")
	return cmd
}

func newSignOutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.DeleteSession(a.dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var email, organization, name, surname string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.formFromFlags(cmd,
				map[string]*string{"email": &email, "organization": &organization, "name": &name, "surname": &surname},
				&secretFlag{field: "password", label: "Password"},
				&secretFlag{field: "confirm_password", label: "Confirm password"})
			if err != nil {
				return err
			}
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.Register(cmd.Context(), form, a.ui(cmd)))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&organization, "organization", "", "organization")
	cmd.Flags().StringVar(&name, "name", "", "first name")
	cmd.Flags().StringVar(&surname, "surname", "", "surname")
	return cmd
}

func newActivateCmd(a *app) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate an account with the emailed code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			form := action.NewForm(map[string]string{"email": email, "activation_code": code})
			return finish(a.panel.Activate(cmd.Context(), form, a.ui(cmd)))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "activation code")
	return cmd
}

func newForgotPasswordCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset code and wait for delivery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)

			form := action.NewForm(map[string]string{"email": email})
			res, err := a.panel.RequestResetCode(cmd.Context(), form, a.ui(cmd))
			if err != nil || !res.Continued {
				return finish(res, err)
			}

			session := a.panel.Poller().Current()
			if session == nil {
				return nil
			}
			state, err := session.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if state != poll.Completed {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newResetPasswordCmd(a *app) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the emailed reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.formFromFlags(cmd,
				map[string]*string{"email": &email, "reset_code": &code},
				&secretFlag{field: "password", label: "New password"})
			if err != nil {
				return err
			}
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.ResetPassword(cmd.Context(), form, a.ui(cmd)))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "reset code")
	return cmd
}

func newUpdatePasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-password",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.formFromFlags(cmd, nil,
				&secretFlag{field: "current_password", label: "Current password"},
				&secretFlag{field: "new_password", label: "New password"},
				&secretFlag{field: "confirm_new_password", label: "Confirm new password"})
			if err != nil {
				return err
			}
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.UpdatePassword(cmd.Context(), form, a.ui(cmd)))
		},
	}
}

func newUpdateProfileCmd(a *app) *cobra.Command {
	var name, surname, telephone, mediaTypeID string
	cmd := &cobra.Command{
		Use:   "update-profile",
		Short: "Save the signed-in user's profile details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			if mediaTypeID == "" {
				mediaTypeID = a.cfg.Media.MediaTypeID
			}
			form := action.NewForm(map[string]string{
				"name": name, "surname": surname, "telephone": telephone, "media_type_id": mediaTypeID,
			})
			return finish(a.panel.UpdateProfile(cmd.Context(), form, a.ui(cmd)))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "first name")
	cmd.Flags().StringVar(&surname, "surname", "", "surname")
	cmd.Flags().StringVar(&telephone, "telephone", "", "telephone")
	cmd.Flags().StringVar(&mediaTypeID, "media-type-id", "", "profile picture media type (defaults to config)")
	return cmd
}
