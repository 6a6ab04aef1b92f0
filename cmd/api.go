package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/lbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct authenticated GET request to ListenBrainz.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	return r.apiRequest(ctx, cmd, http.MethodGet, nil)
}

// APIPost makes a direct authenticated POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	data := cmd.String("data")
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	return r.apiRequest(ctx, cmd, http.MethodPost, []byte(data))
}

func (r *Runner) apiRequest(ctx context.Context, cmd *cli.Command, method string, body []byte) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	if err := r.configure(cmd); err != nil {
		return err
	}
	svc, err := r.listenBrainz(ctx)
	if err != nil {
		return err
	}

	r.logger.Info(method+" request", "path", path)

	resp, err := svc.Raw(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty") && !cmd.Bool("json"))
	}
	return r.writeRaw(resp.Body, false)
}
