package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/eventhive/internal/session"
	"github.com/Togather-Foundation/eventhive/internal/signin"
)

type credentialFlags struct {
	as            string
	name          string
	email         string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command, withName bool) {
	cmd.Flags().StringVar(&f.as, "as", string(session.User), "identity domain (admin or user)")
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "display name")
	}
}

func (f *credentialFlags) resolve(cmd *cobra.Command) (session.Domain, error) {
	domain, err := session.ParseDomain(strings.ToLower(f.as))
	if err != nil {
		return session.None, err
	}
	if f.passwordStdin {
		if f.password != "" {
			return session.None, fmt.Errorf("--password and --password-stdin are mutually exclusive")
		}
		pw, err := readLine(cmd.InOrStdin())
		if err != nil {
			return session.None, fmt.Errorf("read password: %w", err)
		}
		f.password = pw
	}
	return domain, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(a *app) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an admin or a user",
		Long: `Sign in to one identity domain. Signing in as admin does not affect an
existing user session, and the reverse.`,
		Example: `  eventhive login --as user --email me@example.com --password-stdin
  eventhive login --as admin --email admin@example.com --password s3cret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			svc := signin.NewService(a.gw, a.store, a.logger)
			res, err := svc.Login(cmd.Context(), domain, signin.Credentials{Email: f.email, Password: f.password})
			if err != nil {
				return fail(session.None, err)
			}
			return renderSignin(cmd.OutOrStdout(), a.opts.format, res)
		},
	}
	f.register(cmd, false)
	return cmd
}

func newSignupCommand(a *app) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Long: `Create a user account (default) or register an admin account, then keep
the new session for that domain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			svc := signin.NewService(a.gw, a.store, a.logger)
			reg := signin.Registration{Name: f.name, Email: f.email, Password: f.password}

			var res signin.Result
			if domain == session.Admin {
				res, err = svc.RegisterAdmin(cmd.Context(), reg)
			} else {
				res, err = svc.Signup(cmd.Context(), reg)
			}
			if err != nil {
				return fail(session.None, err)
			}
			return renderSignin(cmd.OutOrStdout(), a.opts.format, res)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out of one identity domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := session.ParseDomain(strings.ToLower(as))
			if err != nil {
				return err
			}
			svc := signin.NewService(a.gw, a.store, a.logger)
			if err := svc.Logout(cmd.Context(), domain); err != nil {
				return fail(session.None, err)
			}
			return renderSuccess(cmd.OutOrStdout(), fmt.Sprintf("Signed out of the %s session.", domain))
		},
	}
	cmd.Flags().StringVar(&as, "as", string(session.User), "identity domain (admin or user)")
	return cmd
}

type identityView struct {
	Domain    session.Domain `json:"domain" yaml:"domain"`
	SignedIn  bool           `json:"signed_in" yaml:"signed_in"`
	Label     string         `json:"label" yaml:"label"`
	Email     string         `json:"email,omitempty" yaml:"email,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in for each domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			views := make([]identityView, 0, len(session.Domains))
			for _, d := range session.Domains {
				_, ok := a.store.Get(ctx, d)
				claims := a.store.Claims(ctx, d)
				v := identityView{Domain: d, SignedIn: ok, Label: claims.Label, Email: claims.Email}
				if !claims.ExpiresAt.IsZero() {
					exp := claims.ExpiresAt
					v.ExpiresAt = &exp
				}
				views = append(views, v)
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, a.opts.format, views); ok {
				return err
			}
			for _, v := range views {
				status := mutedStyle.Render("signed out")
				if v.SignedIn {
					status = successStyle.Render(v.Label)
					if v.ExpiresAt != nil {
						status += mutedStyle.Render(" (expires " + v.ExpiresAt.Local().Format(time.RFC1123) + ")")
					}
				}
				fmt.Fprintf(out, "%-6s %s\n", v.Domain.Label()+":", status)
			}
			return nil
		},
	}
}

func renderSignin(w io.Writer, format string, res signin.Result) error {
	if ok, err := writeStructured(w, format, res); ok {
		return err
	}
	return renderSuccess(w, fmt.Sprintf("Signed in as %s (%s).", res.Claims.Label, res.Domain))
}
