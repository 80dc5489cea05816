package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c1advanced/c1prep/internal/config"
	"gopkg.in/yaml.v3"
)

func cmdLogin(args []string, opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	con := newConsole(stdin, stdout)
	token := ""
	if len(args) > 0 {
		token = args[0]
	} else {
		in, ok := con.ask("Paste your ID token: ")
		if !ok || in == "" {
			return fmt.Errorf("no token given")
		}
		token = in
	}

	user, err := a.identity.SignIn(token)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	con.printf("Signed in as %s\n", displayName(user.Email, user.UID))
	if user.IsExpired() {
		con.println("Warning: this token has expired; requests will be rejected until you sign in again.")
	}
	return nil
}

func cmdLogout(opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.identity.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Signed out.")
	return nil
}

func cmdWhoami(opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	con := newConsole(stdin, stdout)
	user, ok := a.identity.CurrentUser()
	if !ok {
		con.println("Not signed in.")
		return nil
	}
	con.printf("User:    %s\n", displayName(user.Email, user.UID))
	con.printf("ID:      %s\n", user.UID)
	plan := "free"
	if user.IsVIP {
		plan = "premium"
	}
	con.printf("Plan:    %s\n", plan)
	if !user.ExpiresAt.IsZero() {
		con.printf("Expires: %s\n", user.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func displayName(email, uid string) string {
	if email != "" {
		return email
	}
	return uid
}

func cmdConfig(args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.yaml")

	switch sub {
	case "path":
		fmt.Fprintln(stdout, path)
		return nil
	case "init":
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
		return nil
	case "show":
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprint(stdout, string(data))
		return nil
	}
	return fmt.Errorf("unknown config command %q (use show, init or path)", sub)
}
