package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"nyscmate/internal/app/desk"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

func newLoginCmd(env *Env) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if password == "" {
					p, err := env.readLine("Password: ")
					if err != nil {
						return err
					}
					password = p
				}
				if err := app.Gate.Login(ctx, email, password); err != nil {
					return err
				}
				return printLanding(env, app)
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(env *Env) *cobra.Command {
	var d user.Draft
	var role string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if d.Password == "" {
					p, err := env.readLine("Password: ")
					if err != nil {
						return err
					}
					d.Password = p
				}
				d.Role = user.Role(role)
				if err := app.Gate.Signup(ctx, d); err != nil {
					return err
				}
				return printLanding(env, app)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&d.Email, "email", "e", "", "account email")
	f.StringVarP(&d.Password, "password", "p", "", "password, at least 6 characters (prompted when omitted)")
	f.StringVarP(&d.Name, "name", "n", "", "full name")
	f.StringVar(&role, "role", string(user.RoleCorpsMember), "one of: "+roleNames())
	f.StringVar(&d.State, "state", "", "state of deployment")
	f.StringVar(&d.StateCode, "state-code", "", "call-up state code, e.g. LA/24A/1234")
	f.StringVar(&d.Gender, "gender", "", "gender")
	f.StringVar(&d.Phone, "phone", "", "phone number")
	f.StringVar(&d.MobilizationDate, "mobilization-date", "", "mobilization date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func roleNames() string {
	names := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func newSocialLoginCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "social-login <provider>",
		Short: "Sign in through a provider such as Google",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if err := app.Gate.SocialLogin(ctx, args[0]); err != nil {
					return err
				}
				return printLanding(env, app)
			})
		},
	}
}

func newLogoutCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(_ context.Context, app *desk.App) error {
				if !app.Gate.State().Authenticated() {
					fmt.Fprintln(env.Out, "Not signed in.")
					return nil
				}
				app.Gate.Logout()
				fmt.Fprintln(env.Out, "Signed out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(_ context.Context, app *desk.App) error {
				p := app.Gate.Profile()
				if p == nil {
					fmt.Fprintln(env.Out, "Not signed in.")
					return nil
				}
				printProfile(env.Out, p)
				if app.Router.Policy().IsAdmin(p) {
					fmt.Fprintln(env.Out, "Admin console: yes")
				}
				return nil
			})
		},
	}
}

// printLanding reports where a fresh sign-in lands.
func printLanding(env *Env, app *desk.App) error {
	p := app.Gate.Profile()
	if p == nil {
		return errs.NewError(errs.ErrUnauthorized)
	}
	fmt.Fprintf(env.Out, "Signed in as %s (%s).\n", p.Name, p.Role)
	fmt.Fprintf(env.Out, "Home: %s\n", app.View().View)
	return nil
}

func printProfile(w io.Writer, p *user.Profile) {
	rows := [][2]string{
		{"Name", p.Name},
		{"Email", p.Email},
		{"Role", string(p.Role)},
		{"State", p.State},
		{"State code", p.StateCode},
		{"LGA", p.LGA},
		{"CDS group", p.CDSGroup},
		{"Phone", p.Phone},
		{"Gender", p.Gender},
		{"Mobilization", p.MobilizationDate},
		{"POP date", p.PopDate},
	}
	for _, r := range rows {
		if r[1] != "" {
			fmt.Fprintf(w, "%-13s %s\n", r[0]+":", r[1])
		}
	}
}

func newProfileCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View or edit your profile",
	}
	cmd.AddCommand(newProfileUpdateCmd(env), newProfileRefreshCmd(env))
	return cmd
}

// profileFlags maps flag names to the patch fields they set.
var profileFlags = []struct {
	name, usage string
	field       func(*user.ProfilePatch) **string
}{
	{"name", "full name", func(p *user.ProfilePatch) **string { return &p.Name }},
	{"state", "state of deployment", func(p *user.ProfilePatch) **string { return &p.State }},
	{"state-code", "call-up state code", func(p *user.ProfilePatch) **string { return &p.StateCode }},
	{"lga", "local government area", func(p *user.ProfilePatch) **string { return &p.LGA }},
	{"cds-group", "CDS group", func(p *user.ProfilePatch) **string { return &p.CDSGroup }},
	{"pop-date", "passing out date", func(p *user.ProfilePatch) **string { return &p.PopDate }},
	{"gender", "gender", func(p *user.ProfilePatch) **string { return &p.Gender }},
	{"phone", "phone number", func(p *user.ProfilePatch) **string { return &p.Phone }},
	{"mobilization-date", "mobilization date (YYYY-MM-DD)", func(p *user.ProfilePatch) **string { return &p.MobilizationDate }},
	{"photo-url", "profile photo link", func(p *user.ProfilePatch) **string { return &p.PhotoURL }},
}

func newProfileUpdateCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch user.ProfilePatch
			for _, pf := range profileFlags {
				if !cmd.Flags().Changed(pf.name) {
					continue
				}
				v, _ := cmd.Flags().GetString(pf.name)
				*pf.field(&patch) = &v
			}
			if patch.IsEmpty() {
				return errs.NewError(errs.ErrInvalidParams).WithMessage("Nothing to update. Pass at least one field flag.")
			}

			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				err := app.Gate.UpdateProfile(ctx, patch)
				for err != nil && app.Gate.Dirty() && errs.From(err).Retryable() {
					fmt.Fprintf(env.Err, "Profile saved on this device but not on the server: %s\n", describe(err))
					answer, readErr := env.readLine("Retry? [y/N] ")
					if readErr != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
						fmt.Fprintln(env.Out, "Local edits are discarded at the next refresh.")
						return err
					}
					err = app.Gate.RetryProfileSync(ctx)
				}
				if err != nil {
					return err
				}
				printProfile(env.Out, app.Gate.Profile())
				return nil
			})
		},
	}
	for _, pf := range profileFlags {
		cmd.Flags().String(pf.name, "", pf.usage)
	}
	return cmd
}

func newProfileRefreshCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the profile from the server, dropping unsynced edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if err := app.Gate.RefreshProfile(ctx); err != nil {
					return err
				}
				printProfile(env.Out, app.Gate.Profile())
				return nil
			})
		},
	}
}

// requireSession fails unless the stored session resolved to a signed-in user.
func requireSession(app *desk.App) error {
	if !app.Gate.State().Authenticated() {
		return errs.NewError(errs.ErrUnauthorized).WithMessage("Not signed in. Run `nyscmate login` first.")
	}
	return nil
}
