// Package models defines domain entities and collaborator interfaces for the lbx recommendation mirror.
//
// The package contains three categories of types:
//
// 1. Transient records built from remote responses or playback events
//   - [PlaylistData] : A normalized recommendation playlist as served by ListenBrainz
//   - [ListenEvent] : A single "now playing" or completed listen
//   - [Playback] : A playback notification as reported by a player
//
// 2. Local state owned by the playlist store and the library index
//   - [LocalPlaylist] : A mirrored playlist identified by its namespaced URI
//   - [LocalTrack] : A track handle in the local library
//   - [SyncRun] : The persisted outcome of one reconciliation pass
//
// 3. Collaborator interfaces
//   - [PlaylistStore] : list/lookup/create/save/delete over local playlists
//   - [TrackSearcher] : ordered candidate search over the local library
//
// URIs under [PlaylistNamespace] are owned by the reconciler; everything else in the store is left alone.
package models
