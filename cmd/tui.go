package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/desertthunder/lbx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
//
// Syncing is offered only when the token validates; browsing works offline.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.LogLevel))
	r.SetLogger(fileLogger)

	s, err := r.buildStack(ctx, true)
	if err != nil {
		r.logger.Warn("sync disabled", "error", err)
		if s, err = r.buildStack(ctx, false); err != nil {
			return err
		}
	}
	defer s.Close()

	var syncer ui.Syncer
	if s.engine != nil {
		syncer = tasks.NewAgent(tasks.AgentOpts{Engine: s.engine, Listens: s.listens, Logger: r.logger})
	}

	model := ui.NewModel(ctx, s.playlists, syncer)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
