package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/lbx/internal/library"
	"github.com/desertthunder/lbx/internal/server"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the agent, the HTTP surface and optionally the library watcher until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	s, err := r.buildStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := tasks.NewAgent(tasks.AgentOpts{
		Engine:          s.engine,
		Listens:         s.listens,
		ImportPlaylists: r.config.ListenBrainz.ImportPlaylists,
		Logger:          r.logger,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	srv := server.New(server.Options{
		Addr:   addr,
		Agent:  agent,
		Runs:   s.runs,
		Tracks: s.tracks,
		Logger: r.logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return agent.Run(ctx) })

	if cmd.Bool("watch") || r.config.Library.Watch {
		scanner := library.NewScanner(r.config.Library.Root, s.tracks, r.logger)
		watcher := library.NewWatcher(scanner.Root(), r.config.Library.Debounce(), r.rescan(scanner), r.logger)
		g.Go(func() error { return watcher.Run(ctx) })
	}

	r.logger.Info("lbx is running", "user", s.remote.Identity(), "addr", addr,
		"import_playlists", r.config.ListenBrainz.ImportPlaylists)
	return g.Wait()
}
