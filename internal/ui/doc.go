// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses the mirrored recommendation playlists and runs a sync on demand:
//  1. [PlaylistListView] : Browse playlists held by the local store
//  2. [TrackListView] : Inspect the resolved tracks of one playlist
//  3. [ConfirmView] : Confirm a reconciliation pass
//  4. [SyncView] : Follow progress updates while the pass runs
//  5. [ResultView] : Show the pass counts and removed playlists
//
// The (view) [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress updates flow through a channel from the sync agent, which never blocks on a slow UI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, y/n, r, q) with contextual help from bubbles/help.
package ui
