package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/metrics"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
)

// RecordingLookup fetches recording metadata for a MusicBrainz id.
type RecordingLookup interface {
	RecordingByID(ctx context.Context, mbid string) (*services.Recording, error)
}

// ResolverOpts configures a [TrackResolver].
type ResolverOpts struct {
	Schemes         []string        // URI prefixes searched by MBID; empty searches everything
	FallbackSchemes []string        // URI prefixes for the keyword fallback
	Lookup          RecordingLookup // optional MusicBrainz fallback
	Logger          *log.Logger
}

// TrackResolver maps recording MBIDs to tracks in the local library index.
type TrackResolver struct {
	searcher        models.TrackSearcher
	schemes         []string
	fallbackSchemes []string
	lookup          RecordingLookup
	logger          *log.Logger
}

// NewTrackResolver creates a resolver over searcher.
func NewTrackResolver(searcher models.TrackSearcher, opts ResolverOpts) *TrackResolver {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	if len(opts.Schemes) > 0 {
		logger.Debug("Limiting track searches", "schemes", opts.Schemes)
	} else {
		logger.Warn("Track searches across every scheme are not stable; configure search_schemes to match your library")
	}

	return &TrackResolver{
		searcher:        searcher,
		schemes:         opts.Schemes,
		fallbackSchemes: opts.FallbackSchemes,
		lookup:          opts.Lookup,
		logger:          logger,
	}
}

// Resolve returns the first library track matching mbid.
//
// A miss is not an error: ok is false and the caller drops the track.
func (r *TrackResolver) Resolve(ctx context.Context, mbid string) (track models.LocalTrack, ok bool) {
	if found := r.search(ctx, models.TrackQuery{MBID: mbid, Schemes: r.schemes}, mbid); len(found) > 0 {
		metrics.IncResolution(metrics.ResolvedByMBID)
		return found[0], true
	}

	if found := r.fallback(ctx, mbid); len(found) > 0 {
		metrics.IncResolution(metrics.ResolvedByFallback)
		return found[0], true
	}

	metrics.IncResolution(metrics.Unresolved)
	r.logger.Debug("No library track for recording", "mbid", mbid)
	return models.LocalTrack{}, false
}

// ResolveAll resolves mbids in order, dropping the ones without a match.
func (r *TrackResolver) ResolveAll(ctx context.Context, mbids []string) []models.LocalTrack {
	tracks := make([]models.LocalTrack, 0, len(mbids))
	for _, mbid := range mbids {
		if ctx.Err() != nil {
			break
		}
		if track, ok := r.Resolve(ctx, mbid); ok {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

// fallback looks the recording up on MusicBrainz and retries with a keyword search on artist credit and title.
func (r *TrackResolver) fallback(ctx context.Context, mbid string) []models.LocalTrack {
	if r.lookup == nil {
		return nil
	}

	rec, err := r.lookup.RecordingByID(ctx, mbid)
	if err != nil {
		r.logger.Debug("Recording lookup failed", "mbid", mbid, "error", err)
		return nil
	}
	if rec == nil || rec.Title == "" {
		return nil
	}

	artist := rec.ArtistCreditPhrase()
	q := models.TrackQuery{Any: []string{artist, rec.Title}, Schemes: r.fallbackSchemes}
	return r.search(ctx, q, mbid)
}

func (r *TrackResolver) search(ctx context.Context, q models.TrackQuery, mbid string) []models.LocalTrack {
	found, err := r.searcher.Search(ctx, q)
	if err != nil {
		r.logger.Warn("Library search failed", "mbid", mbid, "error", err)
		return nil
	}
	if len(found) > 1 {
		r.logger.Debug("Several library tracks match, using the first", "mbid", mbid, "matches", len(found), "uri", found[0].URI)
	}
	return found
}
