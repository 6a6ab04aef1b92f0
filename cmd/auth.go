package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/lbx/internal/shared"
	"github.com/urfave/cli/v3"
)

const listenBrainzSettingsURL = "https://listenbrainz.org/settings/"

// AuthValidate checks the configured token against /1/validate-token.
func (r *Runner) AuthValidate(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	r.logger.Info("validating token", "url", r.config.ListenBrainz.URL)

	svc, err := r.listenBrainz(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Token is valid\n")
	return r.writePlain("User: %s\n", svc.Identity())
}

// AuthToken opens the page that shows the ListenBrainz user token.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	r.writePlain("Your user token is listed at %s\n", listenBrainzSettingsURL)
	r.writePlain("Copy it into listenbrainz.token in %s\n", r.configPath)

	if cmd.Bool("no-browser") {
		return nil
	}
	if err := shared.OpenBrowser(ctx, listenBrainzSettingsURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		return fmt.Errorf("%w: open the URL above manually", err)
	}
	return nil
}
