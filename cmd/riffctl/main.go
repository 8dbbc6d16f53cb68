// Command riffctl signs in to a RiffTube API from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rifftube/internal/authclient"
)

type options struct {
	api     string
	jar     string
	timeout time.Duration
	verbose bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:           "riffctl",
		Short:         "Sign in to RiffTube from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.api, "api", envOr("RIFFTUBE_API", "http://localhost:3000"), "API base URL")
	root.PersistentFlags().StringVar(&opts.jar, "cookie-jar", defaultJarPath(), "where the session cookie is kept")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log probe warnings")

	root.AddCommand(
		loginCmd(opts),
		signupCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connect builds a client and waits for its startup probe.
func connect(ctx context.Context, opts *options) (*authclient.Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.api, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid --api: %w", err)
	}
	jar, err := openJar(opts.jar, base)
	if err != nil {
		return nil, err
	}

	level := log.ErrorLevel
	if opts.verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, Prefix: "riffctl"})

	c, err := authclient.New(ctx, base.String(),
		authclient.WithHTTPClient(&http.Client{Jar: jar, Timeout: opts.timeout}),
		authclient.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := c.WaitInitialized(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func loginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Log in with a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			login := ""
			if len(args) == 1 {
				login = args[0]
			} else {
				v, err := prompt("Email or username: ")
				if err != nil {
					return err
				}
				login = v
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			c, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.SignIn(cmd.Context(), login, password); err != nil {
				return errors.New(c.State().Error)
			}
			printUser(cmd, c.State().User)
			return nil
		},
	}
}

func signupCmd(opts *options) *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			c, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.SignUp(cmd.Context(), username, email, password); err != nil {
				var ae *authclient.Error
				if errors.As(err, &ae) {
					for field, msgs := range ae.Fields {
						for _, m := range msgs {
							fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s\n", field, m)
						}
					}
				}
				return errors.New(c.State().Error)
			}
			printUser(cmd, c.State().User)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			c.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			s := c.State()
			if !s.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			printUser(cmd, s.User)
			return nil
		},
	}
}

func printUser(cmd *cobra.Command, u *authclient.User) {
	if u == nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %s)\n", u.Username, u.Email, u.ID)
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
