// Package resetadmin implements the "dacroq reset-passcode" CLI
// subcommand. It replaces the operator passcode directly in the store
// and does not require the server to be running.
package resetadmin

import (
	"context"
	"flag"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/config"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/daemon"
	isetup "github.com/bendatsko/dacroq.eecs.umich.edu/internal/setup"
)

type Options struct {
	ConfigPath  string
	Passcode    string
	PasscodeEnv bool
}

func Run(args []string) error {
	fs := flag.NewFlagSet("reset-passcode", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.ConfigPath, "config", "dacroq.yaml", "path to dacroq.yaml")
	fs.StringVar(&opt.Passcode, "passcode", "", "set operator passcode non-interactively")
	fs.BoolVar(&opt.PasscodeEnv, "passcode-env", false, "read passcode from DACROQ_OPERATOR_PASSCODE")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	c, err := config.Load(opt.ConfigPath)
	if err != nil {
		return err
	}
	st, err := daemon.OpenStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	return isetup.ResetPasscode(ctx, st, isetup.ResetPasscodeOptions{
		Passcode:    opt.Passcode,
		PasscodeEnv: opt.PasscodeEnv,
	})
}
