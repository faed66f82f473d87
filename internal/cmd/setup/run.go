// Package setup implements the "dacroq setup" CLI subcommand.
package setup

import (
	"context"
	"flag"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/config"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/daemon"
	isetup "github.com/bendatsko/dacroq.eecs.umich.edu/internal/setup"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var configPath, adminEmail, adminName string
	fs.StringVar(&configPath, "config", "dacroq.yaml", "path to dacroq.yaml")
	fs.StringVar(&adminEmail, "admin-email", "", "email of the first allow-list admin")
	fs.StringVar(&adminName, "admin-name", "", "display name of the first admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	st, err := daemon.OpenStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	return isetup.Run(ctx, st, isetup.Options{
		AdminEmail: adminEmail,
		AdminName:  adminName,
	})
}
