// Package admin implements the "dacroq admin" CLI subcommand: the
// interactive allow-list TUI plus snapshot export and import.
package admin

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/adminapi"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/adminui"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/config"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/daemon"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/store"
)

type Options struct {
	Addr        string
	TLSInsecure bool
	ConfigPath  string
	ExportPath  string
	ImportPath  string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.Addr, "addr", "http://127.0.0.1:5170", "server address")
	fs.BoolVar(&opt.TLSInsecure, "insecure", false, "skip TLS verification (recommended only for localhost/self-signed)")
	fs.StringVar(&opt.ConfigPath, "config", "dacroq.yaml", "path to dacroq.yaml (snapshot commands only)")
	fs.StringVar(&opt.ExportPath, "export", "", "write the allow-list to a JSON snapshot and exit")
	fs.StringVar(&opt.ImportPath, "import", "", "replace the allow-list from a JSON snapshot and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Snapshot commands talk to the store directly; the server can be down.
	if opt.ExportPath != "" || opt.ImportPath != "" {
		return runSnapshot(opt)
	}

	insecure := opt.TLSInsecure
	if !insecure {
		insecure = adminui.RequireInsecureByDefault(opt.Addr)
	}

	c, err := adminapi.NewClient(adminapi.ClientOptions{Addr: opt.Addr, Insecure: insecure})
	if err != nil {
		return err
	}

	p := tea.NewProgram(adminui.New(c, opt.Addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func runSnapshot(opt Options) error {
	if opt.ExportPath != "" && opt.ImportPath != "" {
		return fmt.Errorf("choose one of --export or --import")
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

	fsys := afero.NewOsFs()
	if opt.ExportPath != "" {
		if err := store.Export(ctx, st, fsys, opt.ExportPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported allow-list to %s\n", opt.ExportPath)
		return nil
	}
	n, err := store.Import(ctx, st, fsys, opt.ImportPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d allow-list entries from %s\n", n, opt.ImportPath)
	return nil
}
