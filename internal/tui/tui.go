package tui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thomaskoefod/quakereadr/internal/feed"
	"github.com/thomaskoefod/quakereadr/pkg/models"
)

type View int

const (
	ViewQuakeList View = iota
	ViewQuakeDetail
	ViewActivity
	ViewHelp
)

const (
	defaultRefresh = 5 * time.Minute
	activityLimit  = 50
)

// Store is the part of the database the UI reads.
type Store interface {
	GetQuakes() ([]models.Quake, error)
	MarkQuakeViewed(externalID string) error
	EventsFor(externalID string) ([]models.Event, error)
	RecentEvents(limit int) ([]models.Event, error)
}

// Poller triggers an immediate feed poll.
type Poller interface {
	Poll(ctx context.Context) feed.Status
}

// Saver bookmarks a quake.
type Saver interface {
	SaveQuake(ctx context.Context, quake models.Entry) error
}

type Model struct {
	store   Store
	poller  Poller
	saver   Saver
	refresh time.Duration

	view      View
	quakes    []models.Quake
	list      list.Model
	width     int
	height    int
	err       error
	statusMsg string

	// shown is the quake in the detail view. It stays fixed while the
	// list is reloaded underneath it.
	shown    *models.Quake
	history  []models.Event
	detail   string
	activity []models.Event
	// back is the view help returns to
	back View
}

type quakesLoadedMsg struct {
	quakes []models.Quake
}

type errorMsg struct {
	err error
}

type historyLoadedMsg struct {
	externalID string
	events     []models.Event
}

type activityLoadedMsg struct {
	events []models.Event
}

type statusMsg string

type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// openURL opens a link in the system browser.
var openURL = func(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// New creates the UI model. poller and saver may be nil, which disables
// the matching keys. A non-positive refresh means five minutes.
func New(store Store, poller Poller, saver Saver, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "QuakeReadr - Earthquakes near home"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return Model{
		store:   store,
		poller:  poller,
		saver:   saver,
		refresh: refresh,
		view:    ViewQuakeList,
		list:    l,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadQuakes(m.store),
		tick(m.refresh),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		if m.shown != nil {
			m.detail = renderDetail(*m.shown, m.history, m.width)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case quakesLoadedMsg:
		m.quakes = msg.quakes
		items := make([]list.Item, len(m.quakes))
		for i, quake := range m.quakes {
			items[i] = quakeItem{quake}
		}
		cmd := m.list.SetItems(items)
		m.err = nil
		m.statusMsg = fmt.Sprintf("Loaded %d quakes", len(m.quakes))
		return m, cmd

	case historyLoadedMsg:
		if m.shown == nil || m.shown.ExternalID != msg.externalID {
			return m, nil
		}
		m.history = msg.events
		m.detail = renderDetail(*m.shown, m.history, m.width)
		return m, nil

	case activityLoadedMsg:
		m.activity = msg.events
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{loadQuakes(m.store), tick(m.refresh)}
		switch {
		case m.view == ViewQuakeDetail && m.shown != nil:
			cmds = append(cmds, loadHistory(m.store, m.shown.ExternalID))
		case m.view == ViewActivity:
			cmds = append(cmds, loadActivity(m.store))
		}
		return m, tea.Batch(cmds...)

	case errorMsg:
		m.err = msg.err
		return m, nil

	case statusMsg:
		m.err = nil
		m.statusMsg = string(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewQuakeList:
		return m.handleListKeys(msg)
	case ViewQuakeDetail:
		return m.handleDetailKeys(msg)
	case ViewActivity:
		return m.handleActivityKeys(msg)
	case ViewHelp:
		return m.handleHelpKeys(msg)
	}
	return m, nil
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// keys typed into the filter prompt belong to the list
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "enter":
		if i, ok := m.list.SelectedItem().(quakeItem); ok {
			quake := i.quake
			m.view = ViewQuakeDetail
			m.shown = &quake
			m.history = nil
			m.detail = renderDetail(quake, nil, m.width)
			return m, tea.Batch(
				markViewed(m.store, quake.ExternalID),
				loadHistory(m.store, quake.ExternalID),
			)
		}

	case "r":
		return m, tea.Batch(
			loadQuakes(m.store),
			func() tea.Msg { return statusMsg("Refreshing quakes...") },
		)

	case "f":
		if m.poller == nil {
			return m, nil
		}
		return m, tea.Sequence(
			func() tea.Msg { return statusMsg("Polling feed...") },
			pollFeed(m.poller),
			loadQuakes(m.store),
		)

	case "o":
		return m, m.openSelected()

	case "s":
		return m, m.saveSelected()

	case "a":
		m.view = ViewActivity
		return m, loadActivity(m.store)

	case "?":
		m.back = ViewQuakeList
		m.view = ViewHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc", "backspace":
		m.view = ViewQuakeList
		m.shown = nil
		m.history = nil
		m.detail = ""
		return m, loadQuakes(m.store)

	case "o":
		return m, m.openSelected()

	case "s":
		return m, m.saveSelected()

	case "?":
		m.back = ViewQuakeDetail
		m.view = ViewHelp
		return m, nil
	}

	return m, nil
}

func (m Model) handleActivityKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc", "backspace", "a":
		m.view = ViewQuakeList
		return m, nil

	case "r":
		return m, loadActivity(m.store)

	case "?":
		m.back = ViewActivity
		m.view = ViewHelp
		return m, nil
	}
	return m, nil
}

func (m Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "?", "q":
		m.view = m.back
		return m, nil
	}
	return m, nil
}

// selected is the quake that o and s act on: the one in the detail view,
// otherwise the one under the list cursor.
func (m Model) selected() (models.Quake, bool) {
	if m.view == ViewQuakeDetail && m.shown != nil {
		return *m.shown, true
	}
	i, ok := m.list.SelectedItem().(quakeItem)
	return i.quake, ok
}

func (m Model) openSelected() tea.Cmd {
	q, ok := m.selected()
	if !ok {
		return nil
	}
	if q.Link == "" {
		return func() tea.Msg { return statusMsg("Quake has no link") }
	}
	return func() tea.Msg {
		if err := openURL(q.Link); err != nil {
			return errorMsg{fmt.Errorf("opening browser: %w", err)}
		}
		return statusMsg("Opened in browser")
	}
}

func (m Model) saveSelected() tea.Cmd {
	q, ok := m.selected()
	if !ok {
		return nil
	}
	if m.saver == nil {
		return func() tea.Msg { return statusMsg("Raindrop.io is not configured") }
	}
	saver := m.saver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := saver.SaveQuake(ctx, q.Entry); err != nil {
			return errorMsg{err}
		}
		return statusMsg("Saved to Raindrop.io")
	}
}

func (m Model) View() string {
	switch m.view {
	case ViewQuakeList:
		return m.renderList()
	case ViewQuakeDetail:
		return m.renderDetail()
	case ViewActivity:
		return m.renderActivity()
	case ViewHelp:
		return m.renderHelp()
	}
	return ""
}

func (m Model) renderStatus(s *strings.Builder) {
	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.statusMsg != "" {
		s.WriteString(statusStyle.Render(m.statusMsg))
	}
	s.WriteString("\n")
}

func (m Model) renderList() string {
	var s strings.Builder

	s.WriteString(m.list.View())
	s.WriteString("\n")
	m.renderStatus(&s)
	s.WriteString(helpStyle.Render("enter: details • o: open browser • s: save • r: reload • f: poll feed • a: activity • ?: help • q: quit"))

	return s.String()
}

func (m Model) renderDetail() string {
	var s strings.Builder

	s.WriteString(m.detail)
	s.WriteString("\n")
	m.renderStatus(&s)
	s.WriteString(helpStyle.Render("o: open browser • s: save to Raindrop • esc: back • ?: help • q: quit"))

	return s.String()
}

func (m Model) renderActivity() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Recent activity"))
	s.WriteString("\n")
	if len(m.activity) == 0 {
		s.WriteString(helpStyle.Render("No feed activity recorded yet."))
		s.WriteString("\n")
	}
	for _, event := range m.activity {
		s.WriteString(FormatEvent(event))
		s.WriteString("\n")
	}
	s.WriteString("\n")
	m.renderStatus(&s)
	s.WriteString(helpStyle.Render("r: reload • esc: back • ?: help • q: quit"))

	return s.String()
}

func (m Model) renderHelp() string {
	help := `
QuakeReadr - Keyboard Shortcuts

Quake List:
  ↑/↓, j/k     Navigate quakes
  enter        Show quake details
  o            Open quake page in browser
  s            Save quake to Raindrop.io
  r            Reload quakes from the store
  f            Poll the feed now
  a            Show recent feed activity
  /            Filter quakes
  q, ctrl+c    Quit

Quake Detail:
  o            Open quake page in browser
  s            Save quake to Raindrop.io
  esc          Back to list
  q, ctrl+c    Quit

Activity:
  r            Reload activity
  esc, a       Back to list

General:
  ?            Show/hide this help

New quakes are marked with ●.
`
	return help + "\n" + helpStyle.Render("Press ? or esc to close help")
}

func loadQuakes(store Store) tea.Cmd {
	return func() tea.Msg {
		quakes, err := store.GetQuakes()
		if err != nil {
			return errorMsg{err}
		}
		return quakesLoadedMsg{quakes}
	}
}

func markViewed(store Store, externalID string) tea.Cmd {
	return func() tea.Msg {
		if err := store.MarkQuakeViewed(externalID); err != nil {
			return errorMsg{err}
		}
		return nil
	}
}

func loadHistory(store Store, externalID string) tea.Cmd {
	return func() tea.Msg {
		events, err := store.EventsFor(externalID)
		if err != nil {
			return errorMsg{err}
		}
		return historyLoadedMsg{externalID: externalID, events: events}
	}
}

func loadActivity(store Store) tea.Cmd {
	return func() tea.Msg {
		events, err := store.RecentEvents(activityLimit)
		if err != nil {
			return errorMsg{err}
		}
		return activityLoadedMsg{events}
	}
}

func pollFeed(poller Poller) tea.Cmd {
	return func() tea.Msg {
		switch status := poller.Poll(context.Background()); status {
		case feed.StatusError:
			return errorMsg{errors.New("feed poll failed")}
		case feed.StatusOKNoData:
			return statusMsg("Feed is empty")
		default:
			return statusMsg("Feed polled")
		}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
