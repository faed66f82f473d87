// Package daemon assembles the configured services and runs them until
// the context is cancelled.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/config"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/httpapi"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/oauth"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/solver"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/store"
)

type Options struct {
	Config config.Config
	Logger *slog.Logger
}

// OpenStore opens the configured allow-list backend.
func OpenStore(ctx context.Context, c config.Config) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "sqlite":
		return store.OpenSQLite(ctx, c.Store.Path)
	case "postgres":
		return store.OpenPostgres(ctx, c.Store.DSN)
	default:
		return nil, errors.New("unknown store driver: " + c.Store.Driver)
	}
}

// Run starts the gateway and blocks until a component fails or the
// context is cancelled.
func Run(ctx context.Context, opt Options) error {
	c := opt.Config
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}

	st, err := OpenStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	initialized, err := st.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return errors.New("not initialized; run setup")
	}

	redirectURL := strings.TrimRight(c.BaseURL, "/") + "/api/auth/callback/google"
	oc := oauth.New(c.Google.ClientID, c.Google.ClientSecret, redirectURL, 10*time.Second)

	sc, err := solver.NewClient(c.Solver.BaseURL, c.SolverTimeout())
	if err != nil {
		return err
	}
	poller := solver.NewPoller(sc, c.PollInterval(), lg)

	api := &httpapi.Server{
		Store:      st,
		OAuth:      oc,
		Solver:     sc,
		Poller:     poller,
		Logger:     lg,
		BindAddr:   c.HTTP.Bind,
		Port:       c.HTTP.Port,
		BaseURL:    c.BaseURL,
		Production: c.Production(),
		SessionTTL: c.SessionTTL(),
		DemoEnable: c.Demo.Enable,
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go poller.Run(pollCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- api.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
