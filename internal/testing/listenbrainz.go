package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeListenBrainz serves the subset of the ListenBrainz API used by lbx.
//
// Playlists are served in Order from the created-for listing. Detail bodies are raw JSON so tests can
// feed malformed documents. Status forces a response code for a request path.
type FakeListenBrainz struct {
	Token    string
	UserName string

	mu        sync.Mutex
	order     []string
	details   map[string]string
	status    map[string]int
	listens   []json.RawMessage
	requests  map[string]int
	lastAgent string
}

// NewFakeListenBrainz starts a fake server that accepts token and reports user as its owner.
func NewFakeListenBrainz(t *testing.T, token, user string) (*FakeListenBrainz, *httptest.Server) {
	t.Helper()
	f := &FakeListenBrainz{
		Token:    token,
		UserName: user,
		details:  map[string]string{},
		status:   map[string]int{},
		requests: map[string]int{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

// SetPlaylists replaces the created-for listing with ids in order.
func (f *FakeListenBrainz) SetPlaylists(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append([]string(nil), ids...)
}

// SetDetail sets the raw JSON served for a playlist id.
func (f *FakeListenBrainz) SetDetail(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[id] = body
}

// SetStatus forces path to answer with code.
func (f *FakeListenBrainz) SetStatus(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = code
}

// ClearStatus removes a forced status for path.
func (f *FakeListenBrainz) ClearStatus(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.status, path)
}

// Listens returns every submit-listens body received.
func (f *FakeListenBrainz) Listens() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.listens...)
}

// Requests returns how many times path was requested.
func (f *FakeListenBrainz) Requests(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

// LastUserAgent returns the User-Agent of the most recent request.
func (f *FakeListenBrainz) LastUserAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAgent
}

// PlaylistIdentifier returns the identifier URL ListenBrainz uses for a playlist id.
func PlaylistIdentifier(id string) string {
	return "https://listenbrainz.org/playlist/" + id
}

// RecordingIdentifier returns the identifier URL ListenBrainz uses for a recording MBID.
func RecordingIdentifier(mbid string) string {
	return "https://musicbrainz.org/recording/" + mbid
}

// PlaylistDetail renders a detail document with one identifier per track.
func PlaylistDetail(title, date string, mbids ...string) string {
	tracks := make([]string, 0, len(mbids))
	for _, m := range mbids {
		tracks = append(tracks, fmt.Sprintf(`{"identifier": %q}`, RecordingIdentifier(m)))
	}
	return fmt.Sprintf(`{"playlist": {"title": %q, "date": %q, "track": [%s]}}`, title, date, strings.Join(tracks, ","))
}

func (f *FakeListenBrainz) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests[r.URL.Path]++
	f.lastAgent = r.UserAgent()
	code, forced := f.status[r.URL.Path]
	f.mu.Unlock()

	if forced {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"code": %d, "error": "forced"}`, code)
		return
	}

	if r.Header.Get("Authorization") != "Token "+f.Token {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code": 401, "error": "You need to provide an Authorization header."}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/1/validate-token" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "Token valid.", "valid": true, "user_name": f.UserName})

	case r.URL.Path == "/1/submit-listens" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.listens = append(f.listens, json.RawMessage(body))
		f.mu.Unlock()
		fmt.Fprint(w, `{"status": "ok"}`)

	case r.URL.Path == "/1/user/"+f.UserName+"/playlists/createdfor":
		f.mu.Lock()
		entries := make([]map[string]any, 0, len(f.order))
		for _, id := range f.order {
			entries = append(entries, map[string]any{"playlist": map[string]any{"identifier": PlaylistIdentifier(id)}})
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"playlists": entries, "count": len(entries), "offset": 0})

	case strings.HasPrefix(r.URL.Path, "/1/playlist/"):
		id := strings.TrimPrefix(r.URL.Path, "/1/playlist/")
		f.mu.Lock()
		body, ok := f.details[id]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code": 404, "error": "Cannot find playlist"}`)
			return
		}
		fmt.Fprint(w, body)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code": 404, "error": "not found"}`)
	}
}
