package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/repositories"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	tu "github.com/desertthunder/lbx/internal/testing"
)

const (
	mbidOne   = "11111111-1111-4111-8111-111111111111"
	mbidTwo   = "22222222-2222-4222-8222-222222222222"
	mbidThree = "33333333-3333-4333-8333-333333333333"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestImportEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	trackRepo := repositories.NewTrackRepository(db)
	playlistRepo := repositories.NewPlaylistRepository(db)
	runRepo := repositories.NewSyncRunRepository(db)

	for i, mbid := range []string{mbidOne, mbidTwo} {
		track := models.LocalTrack{
			URI:    "local:track:song" + string(rune('a'+i)) + ".flac",
			Name:   "Song",
			Artist: "Artist",
			MBID:   mbid,
		}
		if err := trackRepo.Upsert(ctx, track, time.Now()); err != nil {
			t.Fatalf("failed to seed track: %v", err)
		}
	}

	fake, srv := tu.NewFakeListenBrainz(t, "secret", "rob")
	fake.SetPlaylists("p1", "p2")
	fake.SetDetail("p1", tu.PlaylistDetail("Weekly Jams for rob", "2026-10-12T00:00:00+00:00", mbidOne, mbidThree, mbidTwo))
	fake.SetDetail("p2", tu.PlaylistDetail("Weekly Exploration for rob", "2026-10-12T00:00:00+00:00", mbidThree))

	client, err := services.NewListenBrainzService(ctx, services.ListenBrainzOpts{
		Token:  "secret",
		URL:    srv.URL,
		Logger: tu.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	resolver := NewTrackResolver(trackRepo, ResolverOpts{Schemes: []string{"local:"}, Logger: tu.DiscardLogger()})
	engine := NewPlaylistEngine(playlistRepo, client, resolver, runRepo, tu.DiscardLogger())

	res, err := engine.Import(ctx, nil, SourceCLI)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Created != 1 || res.Skipped != 1 {
		t.Errorf("unexpected counts %+v", res)
	}

	pl, err := playlistRepo.Lookup(ctx, models.RecommendationURI("p1"))
	if err != nil {
		t.Fatalf("playlist p1 not stored: %v", err)
	}
	if pl.Name != "Weekly Jams for rob" || len(pl.Tracks) != 2 || pl.Tracks[0].MBID != mbidOne || pl.Tracks[1].MBID != mbidTwo {
		t.Errorf("unexpected stored playlist %+v", pl)
	}

	latest, err := runRepo.Latest(ctx)
	if err != nil || latest == nil {
		t.Fatalf("expected a recorded run, got %v", err)
	}
	if latest.Status != models.SyncCompleted || latest.Identity != "rob" || latest.Created != 1 {
		t.Errorf("unexpected run %+v", latest)
	}

	t.Run("Second Pass", func(t *testing.T) {
		fake.SetPlaylists("p2")

		res, err := engine.Import(ctx, nil, SourceCLI)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Deleted != 1 {
			t.Errorf("expected p1 deleted, got %+v", res)
		}
		if _, err := playlistRepo.Lookup(ctx, models.RecommendationURI("p1")); err == nil {
			t.Error("expected p1 to be gone")
		}
	})

	t.Run("Listing Failure Keeps Playlists", func(t *testing.T) {
		fake.SetPlaylists("p1")
		if _, err := engine.Import(ctx, nil, SourceCLI); err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		const listing = "/1/user/rob/playlists/createdfor"
		defer fake.ClearStatus(listing)

		for _, status := range []int{429, 500} {
			fake.SetStatus(listing, status)

			res, err := engine.Import(ctx, nil, SourceCLI)
			if err == nil {
				t.Fatalf("status %d: expected an error", status)
			}
			if res.Deleted != 0 {
				t.Errorf("status %d: expected no deletes, got %+v", status, res)
			}
			if _, err := playlistRepo.Lookup(ctx, models.RecommendationURI("p1")); err != nil {
				t.Errorf("status %d: p1 should survive a failed listing: %v", status, err)
			}

			latest, err := runRepo.Latest(ctx)
			if err != nil || latest == nil || latest.Status != models.SyncFailed {
				t.Errorf("status %d: expected a failed run, got %+v (%v)", status, latest, err)
			}
		}
	})

	t.Run("Untitled Playlist Is Not Stored", func(t *testing.T) {
		fake.SetPlaylists("p1", "p3")
		fake.SetDetail("p3", tu.PlaylistDetail("", "2026-10-12T00:00:00+00:00", mbidOne))

		res, err := engine.Import(ctx, nil, SourceCLI)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Failed != 1 || res.Created != 0 {
			t.Errorf("unexpected counts %+v", res)
		}
		if _, err := playlistRepo.Lookup(ctx, models.RecommendationURI("p3")); err == nil {
			t.Error("expected no playlist for an untitled detail")
		}
	})

	t.Run("Listen Submission", func(t *testing.T) {
		submitter := NewListenSubmitter(client, tu.DiscardLogger())
		pb := models.Playback{URI: "local:track:songa.flac", Name: "Song", Artists: []string{"Artist"}, MBID: mbidOne, Duration: 200}

		if !submitter.PlaybackStarted(ctx, pb) || !submitter.PlaybackEnded(ctx, pb, 200) {
			t.Fatal("expected both submissions accepted")
		}

		listens := fake.Listens()
		if len(listens) != 2 {
			t.Fatalf("expected 2 listens, got %d", len(listens))
		}

		var body struct {
			ListenType string `json:"listen_type"`
		}
		if err := json.Unmarshal(listens[0], &body); err != nil || body.ListenType != "playing_now" {
			t.Errorf("expected playing_now first, got %q (%v)", body.ListenType, err)
		}
		if err := json.Unmarshal(listens[1], &body); err != nil || body.ListenType != "single" {
			t.Errorf("expected single second, got %q (%v)", body.ListenType, err)
		}
	})
}
