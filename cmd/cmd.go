// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/lbx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml from the built-in template",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles the ListenBrainz user token.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the ListenBrainz token",
		Commands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Check the configured token and print the user it belongs to",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthValidate,
			},
			{
				Name:  "token",
				Usage: "Open the ListenBrainz settings page where the user token is shown",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "no-browser", Usage: "Only print the URL"},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// syncCommand runs and inspects reconciliation passes.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror recommendation playlists from ListenBrainz",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run one reconciliation pass now",
				Flags:  append([]cli.Flag{configFlag()}, jsonFlags()...),
				Action: r.SyncRun,
			},
			{
				Name:  "history",
				Usage: "Show recorded sync runs, newest first",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of runs to show", Value: 10},
				}, jsonFlags()...),
				Action: r.SyncHistory,
			},
		},
	}
}

func listenFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{Name: "track", Aliases: []string{"t"}, Usage: "Track title", Required: true},
		&cli.StringSliceFlag{Name: "artist", Aliases: []string{"a"}, Usage: "Artist name, repeat for several", Required: true},
		&cli.StringFlag{Name: "release", Aliases: []string{"r"}, Usage: "Release (album) name"},
		&cli.StringFlag{Name: "mbid", Usage: "MusicBrainz recording id"},
		&cli.StringFlag{Name: "uri", Usage: "Track URI, defaults to a value derived from artist and title"},
		&cli.IntFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Track length in seconds", Required: true},
	}
}

// listenCommand submits listens by hand.
func listenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Submit listens to ListenBrainz",
		Commands: []*cli.Command{
			{
				Name:   "now-playing",
				Usage:  "Report a track as playing now",
				Flags:  listenFlags(),
				Action: r.ListenNowPlaying,
			},
			{
				Name:  "submit",
				Usage: "Report a finished playback; it is recorded when enough of the track was heard",
				Flags: append(listenFlags(),
					&cli.IntFlag{Name: "position", Aliases: []string{"p"}, Usage: "Seconds played, defaults to the full duration"},
				),
				Action: r.ListenSubmit,
			},
		},
	}
}

// playlistsCommand works with the local copies of mirrored playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Inspect and export mirrored playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List playlists in the local store",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "all", Usage: "Include playlists outside the listenbrainz namespace"},
				}, jsonFlags()...),
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show the tracks of a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
				Flags:     append([]cli.Flag{configFlag()}, jsonFlags()...),
				Action:    r.PlaylistsShow,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files; exports every mirrored playlist when none are named",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "playlists", Min: 0, Max: -1}},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "One of m3u, csv, markdown, txt, json", Value: formatter.FormatM3U},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Concurrent workers", Value: 4},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:      "delete",
				Usage:     "Delete a mirrored playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
				Flags:     []cli.Flag{configFlag()},
				Action:    r.PlaylistsDelete,
			},
		},
	}
}

// libraryCommand manages the local track index.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Index the local music collection",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Scan library.root and update the track index",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "root", Usage: "Directory to scan instead of library.root"},
				},
				Action: r.LibraryScan,
			},
			{
				Name:  "watch",
				Usage: "Rescan whenever audio files change",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "root", Usage: "Directory to watch instead of library.root"},
				},
				Action: r.LibraryWatch,
			},
			{
				Name:      "search",
				Usage:     "Search the index by MusicBrainz id or keywords",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "keywords", Min: 0, Max: -1}},
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "mbid", Usage: "MusicBrainz recording id"},
				}, jsonFlags()...),
				Action: r.LibrarySearch,
			},
		},
	}
}

// serveCommand runs the long-lived service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the weekly sync, the playback webhook and the metrics endpoint",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "addr", Usage: "Listen address, defaults to server.host:server.port"},
			&cli.BoolFlag{Name: "watch", Usage: "Also watch the library for changes"},
		},
		Action: r.Serve,
	}
}

// apiCommand makes raw authenticated requests to ListenBrainz.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct ListenBrainz API calls",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a path such as /1/user/{user}/playlists/createdfor and print the response",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags:     append([]cli.Flag{configFlag()}, jsonFlags()...),
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body to a path",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "JSON body to send", Required: true},
				}, jsonFlags()...),
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse mirrored playlists and run a sync interactively",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "log-file", Usage: "Where logs go while the TUI runs", Value: "./tmp/lbx-tui.log"},
		},
		Action: r.TUI,
	}
}
