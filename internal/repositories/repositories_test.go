package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func tracks(uris ...string) []models.LocalTrack {
	out := make([]models.LocalTrack, 0, len(uris))
	for _, u := range uris {
		out = append(out, models.LocalTrack{URI: u, Name: u})
	}
	return out
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "sync_runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()
	uri := models.RecommendationURI("abc")

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		pl, err := repo.Create(ctx, uri)
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if pl.URI != uri || pl.Name != uri {
			t.Errorf("expected uri and name %s, got %s / %s", uri, pl.URI, pl.Name)
		}
		if len(pl.Tracks) != 0 {
			t.Errorf("expected empty playlist, got %d tracks", len(pl.Tracks))
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.Create(ctx, uri); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		pl, err := repo.Lookup(ctx, uri)
		if err != nil {
			t.Fatalf("failed to look up playlist: %v", err)
		}
		if pl.URI != uri {
			t.Errorf("expected %s, got %s", uri, pl.URI)
		}
	})

	t.Run("Save", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.Create(ctx, uri); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		stored, applied, err := repo.Save(ctx, models.LocalPlaylist{
			URI:          uri,
			Name:         "Weekly Jams",
			Tracks:       tracks("local:track:a", "local:track:b"),
			LastModified: 1700000000,
		})
		if err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}
		if !applied {
			t.Fatal("expected first save to apply")
		}
		if len(stored.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(stored.Tracks))
		}

		pl, err := repo.Lookup(ctx, uri)
		if err != nil {
			t.Fatalf("failed to look up playlist: %v", err)
		}
		if pl.Name != "Weekly Jams" || pl.LastModified != 1700000000 {
			t.Errorf("unexpected playlist %+v", pl)
		}
		if pl.Tracks[0].URI != "local:track:a" || pl.Tracks[1].URI != "local:track:b" {
			t.Errorf("track order not preserved: %+v", pl.Tracks)
		}
	})

	t.Run("Save Non-Regression", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.Create(ctx, uri); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if _, _, err := repo.Save(ctx, models.LocalPlaylist{URI: uri, Name: "v1", Tracks: tracks("a", "b", "c")}); err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}

		tc := []struct {
			name    string
			tracks  []models.LocalTrack
			applied bool
			want    int
		}{
			{name: "fewer tracks rejected", tracks: tracks("x", "y"), applied: false, want: 3},
			{name: "same count rejected", tracks: tracks("x", "y", "z"), applied: false, want: 3},
			{name: "more tracks replace", tracks: tracks("x", "y", "z", "w"), applied: true, want: 4},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				stored, applied, err := repo.Save(ctx, models.LocalPlaylist{URI: uri, Name: "v2", Tracks: tt.tracks})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if applied != tt.applied {
					t.Errorf("expected applied=%v, got %v", tt.applied, applied)
				}
				if len(stored.Tracks) != tt.want {
					t.Errorf("expected %d stored tracks, got %d", tt.want, len(stored.Tracks))
				}
			})
		}

		pl, _ := repo.Lookup(ctx, uri)
		if pl.Tracks[0].URI != "x" {
			t.Errorf("expected replacement content, got %+v", pl.Tracks)
		}
	})

	t.Run("Save Outside Recommendation Namespace", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		plain := "listenbrainz:playlist:8f1c"
		if _, err := repo.Create(ctx, plain); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if _, _, err := repo.Save(ctx, models.LocalPlaylist{URI: plain, Name: "mine", Tracks: tracks("a", "b")}); err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}

		stored, applied, err := repo.Save(ctx, models.LocalPlaylist{URI: plain, Name: "mine", Tracks: tracks("a")})
		if err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}
		if !applied || len(stored.Tracks) != 1 {
			t.Errorf("gate should not apply to plain playlists: applied=%v tracks=%d", applied, len(stored.Tracks))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.Create(ctx, uri); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		deleted, err := repo.Delete(ctx, uri)
		if err != nil {
			t.Fatalf("failed to delete playlist: %v", err)
		}
		if !deleted {
			t.Error("expected delete to report true")
		}

		if _, err := repo.Lookup(ctx, uri); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}

		if _, err := repo.Create(ctx, uri); err != nil {
			t.Errorf("expected uri to be reusable after delete: %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		for _, id := range []string{"one", "two", "three"} {
			u := models.RecommendationURI(id)
			if _, err := repo.Create(ctx, u); err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
			if _, _, err := repo.Save(ctx, models.LocalPlaylist{URI: u, Name: id, Tracks: tracks(id)}); err != nil {
				t.Fatalf("failed to save playlist: %v", err)
			}
		}
		if _, err := repo.Delete(ctx, models.RecommendationURI("two")); err != nil {
			t.Fatalf("failed to delete playlist: %v", err)
		}

		playlists, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].Name != "one" || playlists[1].Name != "three" {
			t.Errorf("unexpected order: %s, %s", playlists[0].Name, playlists[1].Name)
		}
		if len(playlists[1].Tracks) != 1 {
			t.Errorf("expected tracks to be loaded, got %d", len(playlists[1].Tracks))
		}
	})
}

func TestTrackRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	seed := func(t *testing.T, repo *TrackRepository) {
		t.Helper()
		for _, track := range []models.LocalTrack{
			{URI: "local:track:a.flac", Name: "Windowlicker", Artist: "Aphex Twin", MBID: "mbid-1"},
			{URI: "local:track:b.flac", Name: "Xtal", Artist: "Aphex Twin", MBID: "mbid-2"},
			{URI: "file:///c.mp3", Name: "Windowlicker", Artist: "Aphex Twin", MBID: "mbid-1"},
			{URI: "local:track:d.mp3", Name: "Teardrop", Artist: "Massive Attack", MBID: "mbid-3"},
		} {
			if err := repo.Upsert(ctx, track, now); err != nil {
				t.Fatalf("failed to upsert track: %v", err)
			}
		}
	}

	t.Run("Upsert", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		seed(t, repo)

		if err := repo.Upsert(ctx, models.LocalTrack{URI: "local:track:a.flac", Name: "Windowlicker (Edit)", Artist: "Aphex Twin"}, now); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}

		n, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("failed to count tracks: %v", err)
		}
		if n != 4 {
			t.Errorf("expected 4 tracks, got %d", n)
		}

		track, err := repo.Lookup(ctx, "local:track:a.flac")
		if err != nil {
			t.Fatalf("failed to look up track: %v", err)
		}
		if track.Name != "Windowlicker (Edit)" {
			t.Errorf("expected updated title, got %s", track.Name)
		}
	})

	t.Run("Search By MBID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		seed(t, repo)

		results, err := repo.Search(ctx, models.TrackQuery{MBID: "mbid-1", Schemes: []string{"local:"}})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 1 || results[0].URI != "local:track:a.flac" {
			t.Errorf("expected only the local match, got %+v", results)
		}

		results, err = repo.Search(ctx, models.TrackQuery{MBID: "mbid-1"})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 2 {
			t.Errorf("expected unrestricted search to return 2, got %d", len(results))
		}

		results, err = repo.Search(ctx, models.TrackQuery{MBID: "missing", Schemes: []string{"local:"}})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no matches, got %d", len(results))
		}
	})

	t.Run("Search By Keywords", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		seed(t, repo)

		results, err := repo.Search(ctx, models.TrackQuery{Any: []string{"Massive Attack", "Teardrop"}, Schemes: []string{"local:"}})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 1 || results[0].Name != "Teardrop" {
			t.Errorf("expected Teardrop, got %+v", results)
		}

		results, err = repo.Search(ctx, models.TrackQuery{Any: []string{"aphex twin", "xtal"}, Schemes: []string{"local:"}})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) == 0 || results[0].Name != "Xtal" {
			t.Errorf("expected Xtal first, got %+v", results)
		}
	})

	t.Run("Search Empty Query", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewTrackRepository(db).Search(ctx, models.TrackQuery{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		old := now.Add(-time.Hour)
		if err := repo.Upsert(ctx, models.LocalTrack{URI: "local:track:gone.mp3", Name: "Gone"}, old); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}
		if err := repo.Upsert(ctx, models.LocalTrack{URI: "local:track:kept.mp3", Name: "Kept"}, now); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}
		if err := repo.Upsert(ctx, models.LocalTrack{URI: "file:///other.mp3", Name: "Other"}, old); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}

		removed, err := repo.Prune(ctx, "local:", now.Add(-time.Minute))
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 removed, got %d", removed)
		}

		if _, err := repo.Lookup(ctx, "local:track:gone.mp3"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected pruned track to be gone, got %v", err)
		}
		if _, err := repo.Lookup(ctx, "file:///other.mp3"); err != nil {
			t.Errorf("other schemes should be untouched: %v", err)
		}
	})
}

func TestSyncRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSyncRunRepository(db)
		run := &models.SyncRun{Source: "manual", Status: models.SyncRunning, Identity: "rob"}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSyncRunRepository(db)
		run := &models.SyncRun{Source: "scheduler", Status: models.SyncRunning}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		done := time.Now()
		run.Status = models.SyncCompleted
		run.Fetched, run.Created, run.Deleted = 4, 2, 1
		run.CompletedAt = &done
		if err := repo.Update(ctx, run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.SyncCompleted || got.Fetched != 4 || got.Created != 2 || got.Deleted != 1 {
			t.Errorf("unexpected run %+v", got)
		}
		if got.CompletedAt == nil {
			t.Error("expected completed_at to be set")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSyncRunRepository(db)
		for _, source := range []string{"startup", "scheduler", "manual"} {
			if err := repo.Create(ctx, &models.SyncRun{Source: source, Status: models.SyncCompleted}); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].Source != "manual" {
			t.Errorf("expected newest first, got %+v", runs)
		}

		latest, err := repo.Latest(ctx)
		if err != nil {
			t.Fatalf("failed to get latest: %v", err)
		}
		if latest.Source != "manual" {
			t.Errorf("expected manual, got %s", latest.Source)
		}
	})
}
