package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// playbackFromFlags builds the playback described by the listen flags.
func playbackFromFlags(cmd *cli.Command) (models.Playback, error) {
	pb := models.Playback{
		URI:      cmd.String("uri"),
		Name:     strings.TrimSpace(cmd.String("track")),
		Artists:  cmd.StringSlice("artist"),
		Album:    cmd.String("release"),
		MBID:     cmd.String("mbid"),
		Duration: cmd.Int("duration"),
	}
	if pb.Name == "" || len(pb.Artists) == 0 {
		return pb, fmt.Errorf("%w: --track and --artist are required", shared.ErrMissingArgument)
	}
	if pb.Duration <= 0 {
		return pb, fmt.Errorf("%w: --duration must be positive", shared.ErrInvalidArgument)
	}
	if pb.URI == "" {
		pb.URI = "cli:track:" + url.PathEscape(tasks.JoinArtists(pb.Artists)+" - "+pb.Name)
	}
	return pb, nil
}

func (r *Runner) listenSubmitter(ctx context.Context, cmd *cli.Command) (*tasks.ListenSubmitter, error) {
	if err := r.configure(cmd); err != nil {
		return nil, err
	}
	remote, err := r.listenBrainz(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewListenSubmitter(remote, r.logger), nil
}

// ListenNowPlaying sends a "playing now" notification.
func (r *Runner) ListenNowPlaying(ctx context.Context, cmd *cli.Command) error {
	pb, err := playbackFromFlags(cmd)
	if err != nil {
		return err
	}
	listens, err := r.listenSubmitter(ctx, cmd)
	if err != nil {
		return err
	}

	if !listens.PlaybackStarted(ctx, pb) {
		return fmt.Errorf("%w: playing now was not accepted", shared.ErrAPIRequest)
	}
	return r.writePlain("✓ Playing now: %s - %s\n", tasks.JoinArtists(pb.Artists), pb.Name)
}

// ListenSubmit reports a finished playback. Short or barely heard tracks are skipped, which is not an error.
func (r *Runner) ListenSubmit(ctx context.Context, cmd *cli.Command) error {
	pb, err := playbackFromFlags(cmd)
	if err != nil {
		return err
	}

	position := cmd.Int("position")
	if !cmd.IsSet("position") {
		position = pb.Duration
	}
	if position < 0 {
		return fmt.Errorf("%w: --position must not be negative", shared.ErrInvalidArgument)
	}

	if !tasks.ShouldSubmit(pb.Duration, position) {
		return r.writePlain("Listen not recorded: %ds of %ds is not enough\n", position, pb.Duration)
	}

	listens, err := r.listenSubmitter(ctx, cmd)
	if err != nil {
		return err
	}
	if !listens.PlaybackEnded(ctx, pb, position) {
		return fmt.Errorf("%w: listen was not accepted", shared.ErrAPIRequest)
	}
	return r.writePlain("✓ Listen submitted: %s - %s\n", tasks.JoinArtists(pb.Artists), pb.Name)
}
