package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
)

// mockStore is an in-memory [models.PlaylistStore] with the same non-regression rule as the SQLite store.
type mockStore struct {
	mu         sync.Mutex
	playlists  map[string]models.LocalPlaylist
	creates    []string
	saves      []string
	deletes    []string
	failCreate map[string]bool
	failSave   map[string]bool
	listErr    error
}

func newMockStore(initial ...models.LocalPlaylist) *mockStore {
	s := &mockStore{
		playlists:  map[string]models.LocalPlaylist{},
		failCreate: map[string]bool{},
		failSave:   map[string]bool{},
	}
	for _, pl := range initial {
		s.playlists[pl.URI] = pl
	}
	return s
}

func (s *mockStore) List(ctx context.Context) ([]models.LocalPlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.LocalPlaylist, 0, len(s.playlists))
	for _, pl := range s.playlists {
		out = append(out, pl)
	}
	return out, nil
}

func (s *mockStore) Lookup(ctx context.Context, uri string) (*models.LocalPlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.playlists[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, uri)
	}
	return &pl, nil
}

func (s *mockStore) Create(ctx context.Context, name string) (*models.LocalPlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !models.IsManaged(name) {
		return nil, shared.ErrOutsideNamespace
	}
	if s.failCreate[name] {
		return nil, fmt.Errorf("create failed")
	}
	if _, ok := s.playlists[name]; ok {
		return nil, fmt.Errorf("already exists: %s", name)
	}
	pl := models.LocalPlaylist{URI: name, Name: name}
	s.playlists[name] = pl
	s.creates = append(s.creates, name)
	return &pl, nil
}

func (s *mockStore) Save(ctx context.Context, pl models.LocalPlaylist) (*models.LocalPlaylist, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[pl.URI] {
		return nil, false, fmt.Errorf("save failed")
	}
	stored, ok := s.playlists[pl.URI]
	if !ok {
		return nil, false, shared.ErrPlaylistNotFound
	}
	s.saves = append(s.saves, pl.URI)
	if models.IsRecommendation(pl.URI) && len(pl.Tracks) <= len(stored.Tracks) {
		return &stored, false, nil
	}
	s.playlists[pl.URI] = pl
	return &pl, true, nil
}

func (s *mockStore) Delete(ctx context.Context, uri string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playlists[uri]; !ok {
		return false, nil
	}
	delete(s.playlists, uri)
	s.deletes = append(s.deletes, uri)
	return true, nil
}

func (s *mockStore) get(uri string) (models.LocalPlaylist, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.playlists[uri]
	return pl, ok
}

func (s *mockStore) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates, s.saves, s.deletes = nil, nil, nil
}

// mockRemote serves canned playlist data.
type mockRemote struct {
	valid            bool
	identity         string
	validateOK       bool
	validateCalls    int
	ids              []string
	details          map[string]*models.PlaylistData
	invalidateOnList bool
	listErr          error
	detailCalls      []string
}

func newMockRemote(playlists ...*models.PlaylistData) *mockRemote {
	r := &mockRemote{valid: true, identity: "rob", validateOK: true, details: map[string]*models.PlaylistData{}}
	r.setPlaylists(playlists...)
	return r
}

func (r *mockRemote) setPlaylists(playlists ...*models.PlaylistData) {
	r.ids = nil
	r.details = map[string]*models.PlaylistData{}
	for _, p := range playlists {
		r.ids = append(r.ids, p.PlaylistID)
		r.details[p.PlaylistID] = p
	}
}

func (r *mockRemote) Valid() bool      { return r.valid }
func (r *mockRemote) Identity() string { return r.identity }

func (r *mockRemote) ValidateToken(ctx context.Context) (bool, string) {
	r.validateCalls++
	r.valid = r.validateOK
	return r.validateOK, r.identity
}

func (r *mockRemote) ListPlaylistIDsForUser(ctx context.Context, identity string) ([]string, error) {
	if r.invalidateOnList {
		r.valid = false
		return nil, shared.ErrUnauthorized
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.ids, nil
}

func (r *mockRemote) FetchPlaylistDetail(ctx context.Context, id string) *models.PlaylistData {
	r.detailCalls = append(r.detailCalls, id)
	return r.details[id]
}

// mockSearcher answers MBID queries from byMBID and keyword queries from byKeywords (joined with a space).
type mockSearcher struct {
	byMBID     map[string][]models.LocalTrack
	byKeywords map[string][]models.LocalTrack
	queries    []models.TrackQuery
	err        error
}

func newMockSearcher() *mockSearcher {
	return &mockSearcher{byMBID: map[string][]models.LocalTrack{}, byKeywords: map[string][]models.LocalTrack{}}
}

func (s *mockSearcher) add(mbid string) models.LocalTrack {
	track := models.LocalTrack{URI: "local:track:" + mbid, Name: "Track " + mbid, Artist: "Artist", MBID: mbid}
	s.byMBID[mbid] = append(s.byMBID[mbid], track)
	return track
}

func (s *mockSearcher) Search(ctx context.Context, q models.TrackQuery) ([]models.LocalTrack, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	if q.MBID != "" {
		return s.byMBID[q.MBID], nil
	}
	return s.byKeywords[strings.Join(q.Any, " ")], nil
}

type mockLookup struct {
	recordings map[string]*services.Recording
	calls      int
}

func (l *mockLookup) RecordingByID(ctx context.Context, mbid string) (*services.Recording, error) {
	l.calls++
	rec, ok := l.recordings[mbid]
	if !ok {
		return nil, shared.ErrTrackNotFound
	}
	return rec, nil
}

type mockListenClient struct {
	events []models.ListenEvent
	accept bool
}

func (c *mockListenClient) SubmitListen(ctx context.Context, ev models.ListenEvent) bool {
	c.events = append(c.events, ev)
	return c.accept
}

type mockRuns struct {
	created []*models.SyncRun
	updated []models.SyncRun
}

func (r *mockRuns) Create(ctx context.Context, run *models.SyncRun) error {
	run.RunID = fmt.Sprintf("run-%d", len(r.created)+1)
	r.created = append(r.created, run)
	return nil
}

func (r *mockRuns) Update(ctx context.Context, run *models.SyncRun) error {
	r.updated = append(r.updated, *run)
	return nil
}

func playlistData(id string, mbids ...string) *models.PlaylistData {
	return &models.PlaylistData{PlaylistID: id, Name: "Playlist " + id, TrackMBIDs: mbids, LastModified: 1730073600}
}

func localTracks(mbids ...string) []models.LocalTrack {
	out := make([]models.LocalTrack, 0, len(mbids))
	for _, m := range mbids {
		out = append(out, models.LocalTrack{URI: "local:track:" + m, Name: "Track " + m, MBID: m})
	}
	return out
}
