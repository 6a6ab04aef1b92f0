package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lbx/internal/models"
	"github.com/desertthunder/lbx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	SyncView
	ResultView
)

// PlaylistSource reads playlists from the local store.
type PlaylistSource interface {
	List(ctx context.Context) ([]models.LocalPlaylist, error)
	Lookup(ctx context.Context, uri string) (*models.LocalPlaylist, error)
}

// Syncer runs a reconciliation pass; satisfied by [tasks.Agent].
type Syncer interface {
	Sync(ctx context.Context, progress chan<- tasks.ProgressUpdate, source string) (*tasks.ImportResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	store        PlaylistSource
	syncer       Syncer
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	selected     *models.LocalPlaylist
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.ImportResult
	err          error
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. syncer may be nil, in which case syncing is disabled.
func NewModel(ctx context.Context, store PlaylistSource, syncer Syncer) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.ok

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		store:        store,
		syncer:       syncer,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		trackList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		spinner:      s,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the mirrored playlists from the store.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize(&m.playlistList)
		m.resize(&m.trackList)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.setPlaylists(data.playlists)
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.selected = data.playlist
		items := make([]list.Item, len(data.playlist.Tracks))
		for i, track := range data.playlist.Tracks {
			items[i] = trackItem{track: track}
		}
		m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = data.playlist.Name
		m.resize(&m.trackList)
		m.view = TrackListView
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) setPlaylists(playlists []models.LocalPlaylist) {
	var items []list.Item
	for _, pl := range playlists {
		if models.IsManaged(pl.URI) {
			items = append(items, playlistItem{playlist: pl})
		}
	}
	m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.playlistList.Title = "ListenBrainz Playlists"
	m.resize(&m.playlistList)
}

func (m *Model) resize(l *list.Model) {
	if m.width > 4 && m.height > 8 {
		l.SetSize(m.width-4, m.height-8)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.sync):
		if m.syncer != nil {
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchTracks(pl.playlist.URI)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.selected = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startSync())
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.store.List(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(uri string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.store.Lookup(m.ctx, uri)
		return tracksFetchedMsg(playlist, err)
	}
}

// startSync runs the pass in the background; the progress channel is closed before the result is sent.
func (m *Model) startSync() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan = progress
	m.doneChan = done

	go func() {
		result, err := m.syncer.Sync(m.ctx, progress, tasks.SourceTUI)
		close(progress)
		done <- syncCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter}
	if m.syncer != nil {
		helpKeys = append(helpKeys, m.keys.sync)
	}
	helpKeys = append(helpKeys, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTrackList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	footer := ""
	if m.selected != nil {
		footer = styles.help.Render(m.selected.URI)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", m.trackList.View(), footer, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Sync ListenBrainz recommendation playlists?")
	info := "\nPlaylists created for you are fetched, resolved against the library and saved." +
		"\nLocal copies that are no longer recommended are deleted.\n"

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Playlists")

	var phase string
	switch m.progress.Phase {
	case tasks.ValidateToken:
		phase = "Validating token..."
	case tasks.FetchPlaylists:
		phase = "Listing recommendation playlists..."
	case tasks.FetchDetail:
		phase = fmt.Sprintf("Fetching playlists (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.SavePlaylist:
		phase = fmt.Sprintf("Saving playlists (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.DeletePlaylist:
		phase = fmt.Sprintf("Removing stale playlists (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	r := m.result
	title := styles.ok.Render("✓ Sync Complete")
	info := fmt.Sprintf(
		"\nFetched: %d\nCreated: %d\nUpdated: %d\nUnchanged: %d\nDeleted: %d",
		r.Fetched, r.Created, r.Updated, r.Unchanged, r.Deleted,
	)

	var warnings []string
	if r.Skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d playlists had no tracks in the library", r.Skipped))
	}
	if r.Failed > 0 {
		warnings = append(warnings, fmt.Sprintf("%d playlists failed", r.Failed))
	}
	warn := ""
	if len(warnings) > 0 {
		warn = "\n\n" + styles.warn.Render(strings.Join(warnings, "\n"))
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, warn, helpView)
}
