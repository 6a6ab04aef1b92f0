package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/repositories"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	transport  http.RoundTripper
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Transport  http.RoundTripper // used by the remote clients; nil uses the default transport
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		transport:  opts.Transport,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, listenCommand, playlistsCommand,
		libraryCommand, serveCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and the services it builds.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// configure loads the file named by --config when it exists. Otherwise the current config is kept.
func (r *Runner) configure(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = defaultConfigPath
	}
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		r.config = config
	} else if cmd.IsSet("config") {
		return fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	} else {
		r.logger.Debug("config file not found, using current configuration", "path", path)
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.LogLevel))
	return nil
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// listenBrainz builds the remote client; it fails when the token is missing or rejected.
func (r *Runner) listenBrainz(ctx context.Context) (*services.ListenBrainzService, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	lb := r.config.ListenBrainz
	svc, err := services.NewListenBrainzService(ctx, services.ListenBrainzOpts{
		Token:             lb.Token,
		URL:               lb.URL,
		Proxy:             lb.Proxy,
		RequestsPerSecond: lb.RequestsPerSecond,
		Timeout:           lb.Timeout(),
		Version:           shared.Version,
		Logger:            r.logger,
		Transport:         r.transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ListenBrainz: %w", err)
	}
	return svc, nil
}

// musicBrainz returns nil when the lookup is disabled.
func (r *Runner) musicBrainz() (*services.MusicBrainzService, error) {
	mb := r.config.MusicBrainz
	if !mb.Enabled {
		return nil, nil
	}
	return services.NewMusicBrainzService(services.MusicBrainzOpts{
		URL:               mb.URL,
		Contact:           mb.Contact,
		RequestsPerSecond: mb.RequestsPerSecond,
		Version:           shared.Version,
		Logger:            r.logger,
		Transport:         r.transport,
	})
}

// stack is the set of collaborators shared by sync, listen, serve and tui.
type stack struct {
	db        *sql.DB
	playlists *repositories.PlaylistRepository
	tracks    *repositories.TrackRepository
	runs      *repositories.SyncRunRepository
	remote    *services.ListenBrainzService
	engine    *tasks.PlaylistEngine
	listens   *tasks.ListenSubmitter
}

func (s *stack) Close() error {
	return s.db.Close()
}

// buildStack opens the database and, when withRemote is set, connects to ListenBrainz.
func (r *Runner) buildStack(ctx context.Context, withRemote bool) (*stack, error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}

	s := &stack{
		db:        db,
		playlists: repositories.NewPlaylistRepository(db),
		tracks:    repositories.NewTrackRepository(db),
		runs:      repositories.NewSyncRunRepository(db),
	}
	if !withRemote {
		return s, nil
	}

	remote, err := r.listenBrainz(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.remote = remote

	opts := tasks.ResolverOpts{
		Schemes:         r.config.ListenBrainz.SearchSchemes,
		FallbackSchemes: r.config.ListenBrainz.FallbackSchemes,
		Logger:          r.logger,
	}
	mb, err := r.musicBrainz()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create MusicBrainz client: %w", err)
	}
	if mb != nil {
		opts.Lookup = mb
	}

	resolver := tasks.NewTrackResolver(s.tracks, opts)
	s.engine = tasks.NewPlaylistEngine(s.playlists, remote, resolver, s.runs, r.logger)
	s.listens = tasks.NewListenSubmitter(remote, r.logger)
	return s, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeRaw(body []byte, pretty bool) error {
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		return r.writeJSON(data, pretty)
	}
	if _, err := r.output.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
