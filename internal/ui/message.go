package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgTracksFetched
	MsgProgressUpdate
	MsgSyncComplete
)

type playlistsFetched struct {
	playlists []models.LocalPlaylist
	err       error
}

type tracksFetched struct {
	playlist *models.LocalPlaylist
	err      error
}

type syncComplete struct {
	result *tasks.ImportResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.LocalPlaylist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist *models.LocalPlaylist, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{playlist, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.ImportResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}
