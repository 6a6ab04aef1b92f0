package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/shared"
	tu "github.com/desertthunder/lbx/internal/testing"
)

type engineFixture struct {
	store    *mockStore
	remote   *mockRemote
	searcher *mockSearcher
	runs     *mockRuns
	engine   *PlaylistEngine
}

func newEngineFixture(store *mockStore, remote *mockRemote) *engineFixture {
	f := &engineFixture{store: store, remote: remote, searcher: newMockSearcher(), runs: &mockRuns{}}
	resolver := NewTrackResolver(f.searcher, ResolverOpts{Schemes: []string{"local:"}, Logger: tu.DiscardLogger()})
	f.engine = NewPlaylistEngine(store, remote, resolver, f.runs, tu.DiscardLogger())
	return f
}

func TestPlaylistEngineImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Playlists In Remote Order", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote(playlistData("b", "m1", "m2"), playlistData("a", "m3")))
		for _, m := range []string{"m1", "m2", "m3"} {
			f.searcher.add(m)
		}

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		want := []string{models.RecommendationURI("b"), models.RecommendationURI("a")}
		if !slices.Equal(f.store.creates, want) {
			t.Errorf("expected creates %v, got %v", want, f.store.creates)
		}
		if res.Created != 2 || res.Fetched != 2 || res.Saved() != 2 {
			t.Errorf("unexpected counts: %+v", res)
		}

		pl, ok := f.store.get(models.RecommendationURI("b"))
		if !ok {
			t.Fatal("playlist b not stored")
		}
		if pl.Name != "Playlist b" || len(pl.Tracks) != 2 || pl.Tracks[0].MBID != "m1" {
			t.Errorf("unexpected stored playlist: %+v", pl)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote(playlistData("a", "m1"), playlistData("b", "m2")))
		f.searcher.add("m1")
		f.searcher.add("m2")

		if _, err := f.engine.Import(ctx, nil, SourceManual); err != nil {
			t.Fatalf("first Import failed: %v", err)
		}
		f.store.resetCalls()

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("second Import failed: %v", err)
		}

		if len(f.store.creates) != 0 || len(f.store.deletes) != 0 {
			t.Errorf("expected no creates or deletes, got %v %v", f.store.creates, f.store.deletes)
		}
		if res.Unchanged != 2 || res.Updated != 0 || res.Created != 0 {
			t.Errorf("expected every save to be gated, got %+v", res)
		}
	})

	t.Run("Non-Regression", func(t *testing.T) {
		uri := models.RecommendationURI("a")
		store := newMockStore(models.LocalPlaylist{URI: uri, Name: "Old", Tracks: localTracks("x1", "x2", "x3")})
		remote := newMockRemote(playlistData("a", "m1", "m2"))
		f := newEngineFixture(store, remote)
		for _, m := range []string{"m1", "m2", "m3", "m4"} {
			f.searcher.add(m)
		}

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Unchanged != 1 {
			t.Errorf("expected shorter playlist to be rejected, got %+v", res)
		}
		if pl, _ := store.get(uri); len(pl.Tracks) != 3 || pl.Name != "Old" {
			t.Errorf("stored playlist changed: %+v", pl)
		}

		remote.setPlaylists(playlistData("a", "m1", "m2", "m3", "m4"))
		res, err = f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Updated != 1 {
			t.Errorf("expected longer playlist to replace, got %+v", res)
		}
		if pl, _ := store.get(uri); len(pl.Tracks) != 4 || pl.Tracks[0].MBID != "m1" {
			t.Errorf("expected replaced playlist, got %+v", pl)
		}
	})

	t.Run("Deletes Orphans Once", func(t *testing.T) {
		orphan := models.RecommendationURI("gone")
		other := models.PlaylistNamespace + ":mine"
		foreign := "m3u:playlist:road-trip"
		store := newMockStore(
			models.LocalPlaylist{URI: orphan, Name: "Gone", Tracks: localTracks("x1")},
			models.LocalPlaylist{URI: other, Name: "Mine", Tracks: localTracks("x2")},
			models.LocalPlaylist{URI: foreign, Name: "Road Trip", Tracks: localTracks("x3")},
		)
		f := newEngineFixture(store, newMockRemote(playlistData("a", "m1")))
		f.searcher.add("m1")

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Deleted != 1 || !slices.Equal(res.Removed, []string{orphan}) {
			t.Errorf("expected only %s deleted, got %+v", orphan, res)
		}
		if _, ok := store.get(other); !ok {
			t.Error("non-recommendation playlist in the namespace was deleted")
		}
		if _, ok := store.get(foreign); !ok {
			t.Error("playlist outside the namespace was deleted")
		}

		store.resetCalls()
		res, err = f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Deleted != 0 || len(store.deletes) != 0 {
			t.Errorf("expected no deletes on second pass, got %v", store.deletes)
		}
	})

	t.Run("Skips Playlists Without Known Tracks", func(t *testing.T) {
		uri := models.RecommendationURI("a")
		store := newMockStore(models.LocalPlaylist{URI: uri, Name: "Kept", Tracks: localTracks("x1")})
		f := newEngineFixture(store, newMockRemote(playlistData("a", "unknown1", "unknown2"), playlistData("b", "unknown3")))

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Skipped != 2 {
			t.Errorf("expected 2 skipped, got %+v", res)
		}
		if len(store.creates) != 0 || len(store.saves) != 0 {
			t.Errorf("expected no writes, got creates %v saves %v", store.creates, store.saves)
		}
		if len(store.deletes) != 0 {
			t.Errorf("prior version should be left intact, got deletes %v", store.deletes)
		}
		if pl, _ := store.get(uri); pl.Name != "Kept" || len(pl.Tracks) != 1 {
			t.Errorf("stored playlist changed: %+v", pl)
		}
	})

	t.Run("Drops Unresolved Tracks", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote(playlistData("a", "m1", "missing", "m2")))
		f.searcher.add("m1")
		f.searcher.add("m2")

		if _, err := f.engine.Import(ctx, nil, SourceManual); err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		pl, _ := f.store.get(models.RecommendationURI("a"))
		if len(pl.Tracks) != 2 || pl.Tracks[0].MBID != "m1" || pl.Tracks[1].MBID != "m2" {
			t.Errorf("expected [m1 m2], got %+v", pl.Tracks)
		}
	})

	t.Run("Failed Detail", func(t *testing.T) {
		remote := newMockRemote(playlistData("a", "m1"))
		remote.ids = append(remote.ids, "broken")
		f := newEngineFixture(newMockStore(), remote)
		f.searcher.add("m1")

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Failed != 1 || res.Created != 1 {
			t.Errorf("unexpected counts: %+v", res)
		}
	})

	t.Run("Create Failure", func(t *testing.T) {
		store := newMockStore()
		store.failCreate[models.RecommendationURI("a")] = true
		f := newEngineFixture(store, newMockRemote(playlistData("a", "m1"), playlistData("b", "m2")))
		f.searcher.add("m1")
		f.searcher.add("m2")

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Failed != 1 || res.Created != 1 {
			t.Errorf("unexpected counts: %+v", res)
		}
		if slices.Contains(store.saves, models.RecommendationURI("a")) {
			t.Error("save attempted after failed create")
		}
	})

	t.Run("Save Failure", func(t *testing.T) {
		uri := models.RecommendationURI("a")
		store := newMockStore(models.LocalPlaylist{URI: uri, Name: "A", Tracks: localTracks("x1")})
		store.failSave[uri] = true
		f := newEngineFixture(store, newMockRemote(playlistData("a", "m1", "m2")))
		f.searcher.add("m1")
		f.searcher.add("m2")

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Failed != 1 || res.Deleted != 0 {
			t.Errorf("claimed playlist must survive a failed save: %+v", res)
		}
		if pl, ok := store.get(uri); !ok || len(pl.Tracks) != 1 {
			t.Errorf("expected stored playlist to be untouched, got %+v", pl)
		}
	})

	t.Run("Save Failure Removes Created Playlist", func(t *testing.T) {
		uri := models.RecommendationURI("a")
		store := newMockStore()
		store.failSave[uri] = true
		f := newEngineFixture(store, newMockRemote(playlistData("a", "m1")))
		f.searcher.add("m1")

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Failed != 1 || res.Created != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		if _, ok := store.get(uri); ok {
			t.Error("expected the empty playlist to be removed after a failed save")
		}
		if len(store.creates) != 1 || len(store.deletes) != 1 {
			t.Errorf("expected one create and one delete, got %v %v", store.creates, store.deletes)
		}
	})

	t.Run("Revalidates Token", func(t *testing.T) {
		remote := newMockRemote(playlistData("a", "m1"))
		remote.valid = false
		f := newEngineFixture(newMockStore(), remote)
		f.searcher.add("m1")

		if _, err := f.engine.Import(ctx, nil, SourceManual); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if remote.validateCalls != 1 {
			t.Errorf("expected one validation, got %d", remote.validateCalls)
		}
	})

	t.Run("Invalid Token", func(t *testing.T) {
		uri := models.RecommendationURI("a")
		store := newMockStore(models.LocalPlaylist{URI: uri, Name: "A", Tracks: localTracks("x1")})
		remote := newMockRemote(playlistData("b", "m1"))
		remote.valid = false
		remote.validateOK = false
		f := newEngineFixture(store, remote)

		_, err := f.engine.Import(ctx, nil, SourceManual)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if len(store.deletes) != 0 || len(remote.detailCalls) != 0 {
			t.Error("expected no work after failed validation")
		}

		if len(f.runs.updated) != 1 || f.runs.updated[0].Status != models.SyncFailed {
			t.Errorf("expected failed run recorded, got %+v", f.runs.updated)
		}
	})

	t.Run("Token Rejected While Listing", func(t *testing.T) {
		uri := models.RecommendationURI("a")
		store := newMockStore(models.LocalPlaylist{URI: uri, Name: "A", Tracks: localTracks("x1")})
		remote := newMockRemote()
		remote.invalidateOnList = true
		f := newEngineFixture(store, remote)

		_, err := f.engine.Import(ctx, nil, SourceManual)
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if len(store.deletes) != 0 {
			t.Error("expected no deletes after the token was rejected")
		}
	})

	t.Run("Listing Failure Keeps Playlists", func(t *testing.T) {
		for _, listErr := range []error{shared.ErrRateLimited, shared.ErrUnexpectedStatus, shared.ErrTransport, shared.ErrParse} {
			uri := models.RecommendationURI("a")
			store := newMockStore(models.LocalPlaylist{URI: uri, Name: "A", Tracks: localTracks("x1")})
			remote := newMockRemote()
			remote.listErr = fmt.Errorf("failed to list playlists: %w", listErr)
			f := newEngineFixture(store, remote)

			res, err := f.engine.Import(ctx, nil, SourceManual)
			if !errors.Is(err, listErr) {
				t.Errorf("expected %v, got %v", listErr, err)
			}
			if res.Deleted != 0 || len(store.deletes) != 0 {
				t.Errorf("%v: expected no deletes, got %v", listErr, store.deletes)
			}
			if _, ok := store.get(uri); !ok {
				t.Errorf("%v: stored playlist was removed", listErr)
			}
			if len(f.runs.updated) != 1 || f.runs.updated[0].Status != models.SyncFailed {
				t.Errorf("%v: expected a failed run, got %+v", listErr, f.runs.updated)
			}
		}
	})

	t.Run("Store List Error", func(t *testing.T) {
		store := newMockStore()
		store.listErr = errors.New("disk on fire")
		f := newEngineFixture(store, newMockRemote())

		if _, err := f.engine.Import(ctx, nil, SourceManual); err == nil {
			t.Error("expected error when the store cannot be listed")
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		uri := models.RecommendationURI("old")
		store := newMockStore(models.LocalPlaylist{URI: uri, Name: "Old", Tracks: localTracks("x1")})
		f := newEngineFixture(store, newMockRemote(playlistData("a", "m1")))

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.engine.Import(cctx, nil, SourceManual)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(store.deletes) != 0 {
			t.Error("cancelled pass must not delete playlists")
		}
	})

	t.Run("Records Sync Run", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote(playlistData("a", "m1"), playlistData("b", "nope")))
		f.searcher.add("m1")

		res, err := f.engine.Import(ctx, nil, SourceScheduler)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		if len(f.runs.created) != 1 || f.runs.created[0].Source != SourceScheduler {
			t.Fatalf("expected one run from the scheduler, got %+v", f.runs.created)
		}
		if res.Run == nil || res.Run.RunID != "run-1" {
			t.Errorf("expected run attached to result, got %+v", res.Run)
		}

		final := f.runs.updated[len(f.runs.updated)-1]
		if final.Status != models.SyncCompleted || final.Created != 1 || final.Skipped != 1 || final.Fetched != 2 {
			t.Errorf("unexpected final run: %+v", final)
		}
		if final.CompletedAt == nil || final.Identity != "rob" {
			t.Errorf("expected completion time and identity, got %+v", final)
		}
	})

	t.Run("Without Run Recorder", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote())
		f.engine.runs = nil

		res, err := f.engine.Import(ctx, nil, SourceManual)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if res.Run != nil {
			t.Error("expected no run without a recorder")
		}
	})

	t.Run("Progress Updates", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote(playlistData("a", "m1")))
		f.searcher.add("m1")

		progress := make(chan ProgressUpdate, 100)
		if _, err := f.engine.Import(ctx, progress, SourceManual); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		close(progress)

		phases := map[Phase]bool{}
		for u := range progress {
			phases[u.Phase] = true
		}
		for _, p := range []Phase{FetchPlaylists, FetchDetail, ResolveTracks, SavePlaylist} {
			if !phases[p] {
				t.Errorf("missing %s update", p)
			}
		}
	})

	t.Run("Progress Never Blocks", func(t *testing.T) {
		f := newEngineFixture(newMockStore(), newMockRemote(playlistData("a", "m1"), playlistData("b", "m1")))
		f.searcher.add("m1")

		progress := make(chan ProgressUpdate)
		if _, err := f.engine.Import(ctx, progress, SourceManual); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
	})

	t.Run("Not Initialized", func(t *testing.T) {
		e := NewPlaylistEngine(nil, nil, nil, nil, tu.DiscardLogger())
		if _, err := e.Import(ctx, nil, SourceManual); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{ValidateToken, "validate_token"},
		{FetchPlaylists, "fetch_playlists"},
		{FetchDetail, "fetch_detail"},
		{ResolveTracks, "resolve_tracks"},
		{SavePlaylist, "save_playlist"},
		{DeletePlaylist, "delete_playlist"},
		{ExportPlaylist, "export_playlist"},
		{Phase(99), ""},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
