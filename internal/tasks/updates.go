package tasks

import (
	"fmt"

	"github.com/desertthunder/lbx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ValidateToken Phase = iota
	FetchPlaylists
	FetchDetail
	ResolveTracks
	SavePlaylist
	DeletePlaylist
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case ValidateToken:
		return "validate_token"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchDetail:
		return "fetch_detail"
	case ResolveTracks:
		return "resolve_tracks"
	case SavePlaylist:
		return "save_playlist"
	case DeletePlaylist:
		return "delete_playlist"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func validateTokenUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateToken,
		Step:    1,
		Total:   1,
		Message: "Validating ListenBrainz token...",
	}
}

func fetchPlaylistsUpdate(identity string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlists created for %s...", identity),
	}
}

func foundPlaylistsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d recommendation playlists", total),
	}
}

func fetchDetailUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetail,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching playlist %s...", step, total, id),
	}
}

func resolveTracksUpdate(step, total int, data *models.PlaylistData) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %d tracks for %s...", step, total, len(data.TrackMBIDs), data.Name),
		Data:    data,
	}
}

func savePlaylistUpdate(step, total int, pl *models.LocalPlaylist, action string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SavePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s (%d tracks)", step, total, action, pl.Name, len(pl.Tracks)),
		Data:    pl,
	}
}

func skipPlaylistUpdate(step, total int, name, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SavePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Skipped %s: %s", step, total, name, reason),
	}
}

func deletePlaylistUpdate(step, total int, uri string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DeletePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Deleted %s", step, total, uri),
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
