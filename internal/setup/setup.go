// Package setup implements first-run initialization: it seeds the first
// admin on the allow-list and sets the operator passcode used by the
// terminal admin tool.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/auth"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/store"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/validate"
)

// PasscodeHashKey is the config slot holding the operator passcode hash.
const PasscodeHashKey = "operator_passcode_hash"

type Options struct {
	AdminEmail string
	AdminName  string
}

// Run initializes a fresh store: first admin entry, operator passcode,
// initialized flag. Running twice is an error.
func Run(ctx context.Context, st store.Store, opt Options) error {
	initialized, err := st.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return errors.New("already initialized")
	}

	email, err := validate.Email(opt.AdminEmail)
	if err != nil {
		return err
	}
	name, err := validate.DisplayName(opt.AdminName)
	if err != nil {
		return err
	}

	pass, err := promptPasscode("Set operator passcode")
	if err != nil {
		return err
	}
	hash, err := auth.HashPasscode(pass)
	if err != nil {
		return err
	}
	if err := st.SetConfig(ctx, PasscodeHashKey, hash); err != nil {
		return err
	}

	if _, err := st.AddUser(ctx, email, name, true); err != nil {
		return err
	}

	return st.SetInitialized(ctx)
}

type ResetPasscodeOptions struct {
	Passcode    string
	PasscodeEnv bool
}

// ResetPasscode replaces the operator passcode on an initialized store.
func ResetPasscode(ctx context.Context, st store.Store, opt ResetPasscodeOptions) error {
	initialized, err := st.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return errors.New("not initialized; run setup")
	}

	pass, err := resolvePasscode("Set operator passcode", opt.Passcode, opt.PasscodeEnv)
	if err != nil {
		return err
	}
	hash, err := auth.HashPasscode(pass)
	if err != nil {
		return err
	}
	return st.SetConfig(ctx, PasscodeHashKey, hash)
}

func resolvePasscode(label string, flagValue string, fromEnv bool) (string, error) {
	if flagValue != "" && fromEnv {
		return "", errors.New("choose one of --passcode or --passcode-env")
	}
	if fromEnv {
		v := strings.TrimSpace(os.Getenv("DACROQ_OPERATOR_PASSCODE"))
		if v == "" {
			return "", errors.New("DACROQ_OPERATOR_PASSCODE is empty")
		}
		return v, nil
	}
	if flagValue != "" {
		v := strings.TrimSpace(flagValue)
		if v == "" {
			return "", errors.New("passcode is empty")
		}
		return v, nil
	}
	return promptPasscode(label)
}

func promptPasscode(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm passcode: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "passcode cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passcodes do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression isn't possible.
	r := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		p1, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm passcode: ")
		p2, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		p1 = strings.TrimSpace(p1)
		p2 = strings.TrimSpace(p2)
		if p1 == "" {
			fmt.Fprintln(os.Stderr, "passcode cannot be empty")
			continue
		}
		if p1 != p2 {
			fmt.Fprintln(os.Stderr, "passcodes do not match")
			continue
		}
		return p1, nil
	}
}
