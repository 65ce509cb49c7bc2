package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/naveenspark/diagrama/internal/session"
	"github.com/naveenspark/diagrama/pkg/client"
	"github.com/naveenspark/diagrama/pkg/domain"
)

// prompter asks for one value. secret input is masked.
type prompter func(label string, secret bool) (string, error)

func promptuiPrompter(label string, secret bool) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("required")
			}
			return nil
		},
	}
	if secret {
		p.Mask = '*'
	}
	v, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return v, nil
}

type authFlags struct {
	username string
	email    string
}

// gateway is the subset of the client used by register and login.
type gateway interface {
	Register(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
}

// collectCredentials fills in whatever the flags did not provide.
func collectCredentials(f authFlags, withEmail bool, ask prompter) (domain.Credentials, error) {
	creds := domain.Credentials{Username: strings.TrimSpace(f.username)}
	var err error
	if creds.Username == "" {
		if creds.Username, err = ask("Username", false); err != nil {
			return creds, err
		}
		creds.Username = strings.TrimSpace(creds.Username)
	}
	if withEmail {
		creds.Email = strings.TrimSpace(f.email)
		if creds.Email == "" {
			if creds.Email, err = ask("Email", false); err != nil {
				return creds, err
			}
			creds.Email = strings.TrimSpace(creds.Email)
		}
	}
	if creds.Password, err = ask("Password", true); err != nil {
		return creds, err
	}
	return creds, nil
}

// signIn stores the session from resp and prints who is signed in.
func signIn(out io.Writer, h *session.Holder, resp *domain.AuthResponse) error {
	user := resp.Account()
	if err := h.Login(user, resp.Token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if user.Username != "" {
		fmt.Fprintf(out, "Signed in as %s\n", user.Username)
	} else {
		fmt.Fprintln(out, "Signed in.")
	}
	return nil
}

func runRegister(ctx context.Context, out io.Writer, gw gateway, h *session.Holder, creds domain.Credentials) error {
	resp, err := gw.Register(ctx, creds)
	if err != nil {
		return describeAuthError("register", err)
	}
	if resp == nil || resp.Token == "" {
		fmt.Fprintln(out, "Account created. Run `diagrama login` to sign in.")
		return nil
	}
	return signIn(out, h, resp)
}

func runLogin(ctx context.Context, out io.Writer, gw gateway, h *session.Holder, creds domain.Credentials) error {
	resp, err := gw.Login(ctx, creds)
	if err != nil {
		return describeAuthError("login", err)
	}
	if resp == nil || resp.Token == "" {
		return fmt.Errorf("login: %w", session.ErrEmptyToken)
	}
	return signIn(out, h, resp)
}

func describeAuthError(op string, err error) error {
	if client.IsStatus(err, http.StatusUnauthorized) || client.IsStatus(err, http.StatusForbidden) {
		return fmt.Errorf("%s: invalid username or password", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newRegisterCmd(g *globalFlags) *cobra.Command {
	f := authFlags{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.closeLog() //nolint:errcheck

			creds, err := collectCredentials(f, true, promptuiPrompter)
			if err != nil {
				return err
			}
			return runRegister(cmd.Context(), cmd.OutOrStdout(), e.client, e.holder, creds)
		},
	}
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "username")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	return cmd
}

func newLoginCmd(g *globalFlags) *cobra.Command {
	f := authFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.closeLog() //nolint:errcheck

			creds, err := collectCredentials(f, false, promptuiPrompter)
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), cmd.OutOrStdout(), e.client, e.holder, creds)
		},
	}
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "username")
	return cmd
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.closeLog() //nolint:errcheck

			if err := runLogout(cmd.OutOrStdout(), e.holder); err != nil {
				return err
			}
			e.logger.Info("signed out")
			return nil
		},
	}
}

// runLogout always clears the store, so an unreadable session file is
// removed even when the holder already reads as signed out.
func runLogout(out io.Writer, h *session.Holder) error {
	was := h.Authenticated()
	if err := h.Logout(); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	if was {
		fmt.Fprintln(out, "Logged out.")
	} else {
		fmt.Fprintln(out, "Already logged out.")
	}
	return nil
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the stored token with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.closeLog() //nolint:errcheck
			return runVerify(cmd.Context(), cmd.OutOrStdout(), e.holder, e.client)
		},
	}
}

func runVerify(ctx context.Context, out io.Writer, h *session.Holder, v session.Verifier) error {
	if !h.Authenticated() {
		return errors.New("not signed in; run `diagrama login`")
	}
	ok, err := h.Verify(ctx, v)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !ok {
		return errors.New("session expired; signed out. Run `diagrama login`")
	}
	if u := h.User(); u != nil && u.Username != "" {
		fmt.Fprintf(out, "Token valid for %s\n", u.Username)
	} else {
		fmt.Fprintln(out, "Token valid.")
	}
	return nil
}
