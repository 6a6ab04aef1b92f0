// Package tasks mirrors ListenBrainz recommendation playlists into the local store and reports listens.
//
// # Core Operations
//
//  1. [PlaylistEngine.Import] : one reconciliation pass
//     - Lists the playlists created for the authenticated user
//     - Fetches each detail and resolves its recordings with [TrackResolver]
//     - Creates or saves every playlist with at least one known track
//     - Deletes local recommendation playlists the remote no longer lists
//     - Records a [models.SyncRun] when a [RunRecorder] is configured
//
//  2. [ListenSubmitter] : playback notifications
//     - "Playing now" on start, unconditionally
//     - A completed listen on end once the track is 30s long and played for half its length or 240s
//
//  3. [PlaylistEngine.BulkExport] : write managed playlists to disk in any [formatter.Formats] entry
//
// # Progress Reporting
//
// Long operations accept a send-only [ProgressUpdate] channel. Updates use select with default so a slow
// reader never blocks a pass.
//
// # Scheduling
//
// [Scheduler] re-runs a job at the same clock time every Monday. [Agent] owns the scheduler and holds the
// single mutex that serializes passes with playback handling.
package tasks
