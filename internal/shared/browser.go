package shared

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the platform command used to open url.
func browserCommand(ctx context.Context, url string) (*exec.Cmd, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.CommandContext(ctx, "open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.CommandContext(ctx, "xdg-open", url), nil
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("%w: unsupported platform %s", ErrNotImplemented, rt)
	}
}

// OpenBrowser opens the default system browser to the specified URL.
//
// The command is started and not waited on.
func OpenBrowser(ctx context.Context, url string) error {
	cmd, err := browserCommand(ctx, url)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
