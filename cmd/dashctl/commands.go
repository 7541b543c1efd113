package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run: dashctl login")

func loginCmd(opts *globalOptions) *cobra.Command {
	var (
		username    string
		password    string
		demo        string
		trustDevice bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and start a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			req := auth.LoginRequest{Username: username, Password: password}
			if demo != "" {
				if req, err = auth.DemoCredentials(a.cfg.GetDemoAccounts(), demo); err != nil {
					return err
				}
			}
			if req.Username == "" || req.Password == "" {
				if req.Username, req.Password, err = prompt(cmd, req.Username, req.Password); err != nil {
					return err
				}
			}
			req.TrustDevice = trustDevice

			displayAppname(cmd, a.cfg.GetAppName())
			if err := a.service.Login(cmd.Context(), req); err != nil {
				return errors.New(auth.ErrorMessage(err))
			}

			id, err := a.service.Identity(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s [%s]\n", id.Username, strings.Join(id.Roles, ", "))
			if !trustDevice {
				fmt.Fprintln(cmd.OutOrStdout(), "This device is not trusted: the session ends with this command.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")
	cmd.Flags().StringVar(&demo, "demo", "", "Sign in with a demo account (admin, employee)")
	cmd.Flags().BoolVar(&trustDevice, "trust-device", false, "Stay signed in on this device")
	return cmd
}

func logoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the long-lived credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			// a fresh process has no access token; restore it so the server
			// gets the logout, whatever the persist preference says
			if a.service.Start(cmd.Context()) != auth.Authenticated {
				if _, err := a.service.Refresh(cmd.Context()); err != nil {
					a.log.Debug().Err(err).Msg("no session to restore before logout")
				}
			}
			if err := a.service.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := a.jar.Clear(); err != nil {
				a.log.Warn().Err(err).Msg("could not clear cookie jar")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			state := a.service.Start(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State:        %s\n", state)
			fmt.Fprintf(out, "Trust device: %t\n", a.service.PersistPreference())
			if state != auth.Authenticated {
				return nil
			}

			id, err := a.service.Identity(cmd.Context())
			if err != nil {
				return err
			}
			tok, err := a.service.TokenSource().Token()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Username:     %s\n", id.Username)
			fmt.Fprintf(out, "Roles:        %s\n", strings.Join(id.Roles, ", "))
			if !tok.Expiry.IsZero() {
				fmt.Fprintf(out, "Expires:      %s\n", tok.Expiry.Local().Format("15:04:05"))
			}
			return nil
		},
	}
}

func getCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path with the session's credentials, e.g. /notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if a.service.Start(cmd.Context()) != auth.Authenticated {
				return errNotLoggedIn
			}

			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			var body json.RawMessage
			if err := a.api.Get(cmd.Context(), path, &body); err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					return errors.New(auth.ErrorMessage(err))
				}
				return err
			}

			pretty, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		},
	}
}

func persistCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "persist [on|off]",
		Short:     "Show or change the trust this device preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				var trust bool
				switch strings.ToLower(args[0]) {
				case "on", "true", "yes":
					trust = true
				case "off", "false", "no":
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
				if err := a.service.SetPersistPreference(trust); err != nil {
					return err
				}
			}
			state := "off"
			if a.service.PersistPreference() {
				state = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trust this device: %s\n", state)
			return nil
		},
	}
}

// prompt reads missing credentials from stdin
func prompt(cmd *cobra.Command, username, password string) (string, string, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Fprint(out, "Password: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	return username, password, nil
}
