package tasks

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/metrics"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

const (
	minListenDuration = 30  // seconds
	maxListenRequired = 240 // seconds
)

// ListenClient submits a single listen to the remote service.
type ListenClient interface {
	SubmitListen(ctx context.Context, ev models.ListenEvent) bool
}

// ListenSubmitter turns playback notifications into listens.
//
// It is not safe for concurrent use; [Agent] serializes calls.
type ListenSubmitter struct {
	client ListenClient
	now    func() time.Time
	logger *log.Logger

	// only the most recent start is kept
	startURI string
	startAt  time.Time
}

// NewListenSubmitter creates a submitter that reports through client.
func NewListenSubmitter(client ListenClient, logger *log.Logger) *ListenSubmitter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ListenSubmitter{
		client: client,
		now:    time.Now,
		logger: logger,
	}
}

// PlaybackStarted records the start time for pb, replacing any earlier start, and submits a "playing now" listen.
func (s *ListenSubmitter) PlaybackStarted(ctx context.Context, pb models.Playback) bool {
	s.startURI, s.startAt = pb.URI, s.now()

	ev := listenEvent(pb)
	ev.NowPlaying = true
	s.logger.Debug("Now playing", "track", ev.ArtistName+" - "+ev.TrackName)

	return s.submit(ctx, ev, metrics.ListenPlayingNow)
}

// PlaybackEnded submits a completed listen when pb was played long enough.
//
// position is the playback position in whole seconds when the track ended.
func (s *ListenSubmitter) PlaybackEnded(ctx context.Context, pb models.Playback, position int) bool {
	started, known := s.startAt, s.startURI == pb.URI && !s.startAt.IsZero()
	if known {
		s.startURI, s.startAt = "", time.Time{}
	}

	if pb.Duration < minListenDuration {
		s.logger.Debug("Track too short to record", "duration", pb.Duration)
		metrics.IncListen(metrics.ListenSingle, metrics.ListenSkipped)
		return false
	}
	if !ShouldSubmit(pb.Duration, position) {
		s.logger.Debug("Track not played long enough to record", "position", position, "duration", pb.Duration)
		metrics.IncListen(metrics.ListenSingle, metrics.ListenSkipped)
		return false
	}

	if !known {
		started = s.now().Add(-time.Duration(pb.Duration) * time.Second)
	}

	ev := listenEvent(pb)
	ev.ListenedAt = started.Unix()
	s.logger.Debug("Recording listen", "track", ev.ArtistName+" - "+ev.TrackName, "listened_at", ev.ListenedAt)

	return s.submit(ctx, ev, metrics.ListenSingle)
}

func (s *ListenSubmitter) submit(ctx context.Context, ev models.ListenEvent, listenType string) bool {
	if !ev.Valid() {
		s.logger.Debug("Dropping listen without track or artist name")
		metrics.IncListen(listenType, metrics.ListenSkipped)
		return false
	}

	if s.client.SubmitListen(ctx, ev) {
		metrics.IncListen(listenType, metrics.ListenAccepted)
		return true
	}
	metrics.IncListen(listenType, metrics.ListenRejected)
	return false
}

// ShouldSubmit applies the listen threshold: at least 30 seconds long and played for half its length or four minutes.
func ShouldSubmit(duration, position int) bool {
	if duration < minListenDuration {
		return false
	}
	if position < duration/2 && position < maxListenRequired {
		return false
	}
	return true
}

// JoinArtists sorts artist names and joins them with ", ".
func JoinArtists(artists []string) string {
	sorted := make([]string, 0, len(artists))
	for _, a := range artists {
		if a = strings.TrimSpace(a); a != "" {
			sorted = append(sorted, a)
		}
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func listenEvent(pb models.Playback) models.ListenEvent {
	return models.ListenEvent{
		TrackName:   pb.Name,
		ArtistName:  JoinArtists(pb.Artists),
		ReleaseName: pb.Album,
		MBID:        pb.MBID,
	}
}
