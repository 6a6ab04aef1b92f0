package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/lbx/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.LocalPlaylist] to implement [list.Item].
type playlistItem struct {
	playlist models.LocalPlaylist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", len(i.playlist.Tracks))
	if i.playlist.LastModified > 0 {
		desc = fmt.Sprintf("%s • updated %s", desc, time.Unix(i.playlist.LastModified, 0).Format("2006-01-02"))
	}
	return desc
}

// trackItem wraps [models.LocalTrack] to implement [list.Item].
type trackItem struct {
	track models.LocalTrack
}

func (i trackItem) FilterValue() string { return i.track.String() }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}
