package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatline/internal/app/console"
	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
)

func (c *cli) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the chat console with the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(c.cfg, cmd.OutOrStdout())
			return explain(a.console, a.run(cmd.Context(), cmd.InOrStdin()))
		},
	}
}

func (c *cli) newLoginCmd() *cobra.Command {
	var nickname, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(c.cfg, cmd.OutOrStdout())

			if password == "" {
				p, err := promptPassword(cmd.OutOrStdout(), cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}

			if err := a.dir.Login(cmd.Context(), nickname, password); err != nil {
				return explain(a.console, err)
			}
			a.console.Success("Signed in as " + errs.Bold(a.dir.Current().DisplayName()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&nickname, "nickname", "n", "", "account nickname")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("nickname")
	return cmd
}

func (c *cli) newRegisterCmd() *cobra.Command {
	var u user.User

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save the session credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(c.cfg, cmd.OutOrStdout())

			if u.Password == "" {
				p, err := promptPassword(cmd.OutOrStdout(), cmd.InOrStdin())
				if err != nil {
					return err
				}
				u.Password = p
			}

			if err := a.dir.Register(cmd.Context(), &u); err != nil {
				return explain(a.console, err)
			}
			a.console.Success("Welcome, " + errs.Bold(a.dir.Current().DisplayName()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&u.Nickname, "nickname", "n", "", "account nickname")
	cmd.Flags().StringVar(&u.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&u.Name, "name", "", "first name")
	cmd.Flags().StringVar(&u.Surname, "surname", "", "last name")
	cmd.Flags().StringVarP(&u.Password, "password", "p", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("nickname")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(c.cfg, cmd.OutOrStdout())
			a.dir.Logout()
			a.console.Success("Signed out.")
			return nil
		},
	}
}

// explain prints a user-facing error on the console and returns a short error for the exit
// status.
func explain(con *console.Console, err error) error {
	if err == nil {
		return nil
	}
	con.Error(err)
	if errs.KindOf(err) == errs.KindAuth {
		return fmt.Errorf("not signed in: run \"chatline login\"")
	}
	return err
}

// promptPassword reads a password without echo from a terminal, or a plain line otherwise.
func promptPassword(out io.Writer, in io.Reader) (string, error) {
	fmt.Fprint(out, "Password: ")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
