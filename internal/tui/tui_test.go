package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thomaskoefod/quakereadr/internal/feed"
	"github.com/thomaskoefod/quakereadr/pkg/models"
)

type fakeStore struct {
	quakes []models.Quake
	events []models.Event
	err    error
	viewed []string
}

func (f *fakeStore) GetQuakes() ([]models.Quake, error) {
	return f.quakes, f.err
}

func (f *fakeStore) MarkQuakeViewed(id string) error {
	f.viewed = append(f.viewed, id)
	return nil
}

func (f *fakeStore) EventsFor(id string) ([]models.Event, error) {
	var events []models.Event
	for _, e := range f.events {
		if e.ExternalID == id {
			events = append(events, e)
		}
	}
	return events, f.err
}

func (f *fakeStore) RecentEvents(limit int) ([]models.Event, error) {
	if len(f.events) > limit {
		return f.events[:limit], f.err
	}
	return f.events, f.err
}

type fakePoller struct {
	status feed.Status
	calls  int
}

func (f *fakePoller) Poll(ctx context.Context) feed.Status {
	f.calls++
	return f.status
}

type fakeSaver struct {
	saved []models.Entry
	err   error
}

func (f *fakeSaver) SaveQuake(ctx context.Context, q models.Entry) error {
	f.saved = append(f.saved, q)
	return f.err
}

func ptr[T any](v T) *T {
	return &v
}

func sampleQuakes() []models.Quake {
	return []models.Quake{
		{
			Entry: models.Entry{
				ExternalID:     "1234",
				Title:          "Title 1",
				Category:       "Category 1",
				Link:           "http://example.com/1234",
				Published:      ptr(time.Date(2018, 9, 29, 8, 30, 0, 0, time.UTC)),
				Coordinates:    &models.Coordinates{Latitude: 44.11, Longitude: -66.23},
				DistanceToHome: ptr(4272.4),
				Magnitude:      ptr(4.5),
				Attribution:    "Natural Resources Canada",
				Description:    "<b>magnitude: </b>4.5<br/><b>depth: </b>10 km<br/>",
			},
			FirstSeen: time.Date(2018, 9, 29, 8, 35, 0, 0, time.UTC),
		},
		{
			Entry:  models.Entry{ExternalID: "2345", Title: "Title 2"},
			Viewed: true,
		},
	}
}

func loadedModel(t *testing.T, store *fakeStore, poller Poller, saver Saver) Model {
	t.Helper()
	m := New(store, poller, saver, time.Minute)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	next, _ = next.Update(quakesLoadedMsg{store.quakes})
	return next.(Model)
}

// run executes cmd, expanding batches, and returns the messages produced.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		msgs = append(msgs, run(c)...)
	}
	return msgs
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestQuakeItem(t *testing.T) {
	quakes := sampleQuakes()

	first := quakeItem{quakes[0]}
	if got := first.Title(); got != "● M4.5  Title 1" {
		t.Errorf("unexpected title %q", got)
	}
	if got := first.Description(); got != "4272 km | Sep 29, 2018 08:30 UTC | Category 1" {
		t.Errorf("unexpected description %q", got)
	}
	if !strings.Contains(first.FilterValue(), "depth: 10 km") {
		t.Errorf("filter value should include the plain description, got %q", first.FilterValue())
	}

	second := quakeItem{quakes[1]}
	if got := second.Title(); got != "  M?    Title 2" {
		t.Errorf("unexpected title %q", got)
	}
	if got := second.Description(); got != "distance unknown | time unknown" {
		t.Errorf("unexpected description %q", got)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"<b>magnitude: </b>4.5<br/><b>depth: </b>10 km<br/>", "magnitude: 4.5 depth: 10 km"},
		{"<p>line\n\n  one</p>", "line one"},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetailMarkdown(t *testing.T) {
	history := []models.Event{
		{ExternalID: "1234", Kind: models.EventGenerated, At: time.Date(2018, 9, 29, 8, 35, 0, 0, time.UTC)},
		{ExternalID: "1234", Kind: models.EventUpdated, At: time.Date(2018, 9, 29, 8, 40, 0, 0, time.UTC)},
	}
	doc := detailMarkdown(sampleQuakes()[0], history)
	for _, want := range []string{
		"# Title 1",
		"**Magnitude:** M4.5",
		"**Distance:** 4272 km",
		"**Coordinates:** (44.11, -66.23)",
		"magnitude:",
		"<http://example.com/1234>",
		"_Source: Natural Resources Canada_",
		"## History",
		"- Sep 29, 2018 08:35 UTC: generated",
		"- Sep 29, 2018 08:40 UTC: updated",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("detail missing %q:\n%s", want, doc)
		}
	}

	if strings.Contains(detailMarkdown(sampleQuakes()[0], nil), "History") {
		t.Error("expected no history section without events")
	}

	if out := renderDetail(sampleQuakes()[0], nil, 60); !strings.Contains(out, "Title") {
		t.Errorf("rendered detail missing title:\n%s", out)
	}
}

func TestLoadAndSelect(t *testing.T) {
	store := &fakeStore{
		quakes: sampleQuakes(),
		events: []models.Event{{ExternalID: "1234", Kind: models.EventGenerated, At: time.Date(2018, 9, 29, 8, 35, 0, 0, time.UTC)}},
	}
	m := loadedModel(t, store, nil, nil)

	if len(m.list.Items()) != 2 {
		t.Fatalf("expected 2 items, got %d", len(m.list.Items()))
	}
	if m.statusMsg != "Loaded 2 quakes" {
		t.Errorf("unexpected status %q", m.statusMsg)
	}

	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	if m.view != ViewQuakeDetail {
		t.Fatalf("expected detail view, got %v", m.view)
	}
	if !strings.Contains(m.View(), "Title") {
		t.Error("detail view missing title")
	}
	if cmd == nil {
		t.Fatal("expected mark-viewed command")
	}
	for _, msg := range run(cmd) {
		if msg == nil {
			continue
		}
		next, _ = m.Update(msg)
		m = next.(Model)
	}
	if len(store.viewed) != 1 || store.viewed[0] != "1234" {
		t.Errorf("expected 1234 marked viewed, got %v", store.viewed)
	}
	if len(m.history) != 1 || m.history[0].Kind != models.EventGenerated {
		t.Errorf("expected history for 1234, got %v", m.history)
	}

	next, _ = m.Update(key("esc"))
	if next.(Model).view != ViewQuakeList {
		t.Error("esc should return to the list")
	}
}

func TestHelpToggle(t *testing.T) {
	m := loadedModel(t, &fakeStore{}, nil, nil)
	next, _ := m.Update(key("?"))
	m = next.(Model)
	if m.view != ViewHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatal("expected help view")
	}
	next, _ = m.Update(key("?"))
	if next.(Model).view != ViewQuakeList {
		t.Error("expected list view after closing help")
	}
}

func TestLoadError(t *testing.T) {
	store := &fakeStore{err: errors.New("disk on fire")}
	m := New(store, nil, nil, 0)
	msg := loadQuakes(store)()
	next, _ := m.Update(msg)
	if !strings.Contains(next.(Model).View(), "disk on fire") {
		t.Error("expected error in view")
	}
}

func TestPollFeed(t *testing.T) {
	tests := []struct {
		status  feed.Status
		wantErr bool
		want    string
	}{
		{feed.StatusOK, false, "Feed polled"},
		{feed.StatusOKNoData, false, "Feed is empty"},
		{feed.StatusError, true, ""},
	}
	for _, tt := range tests {
		p := &fakePoller{status: tt.status}
		msg := pollFeed(p)()
		if p.calls != 1 {
			t.Errorf("%v: expected one poll, got %d", tt.status, p.calls)
		}
		switch got := msg.(type) {
		case errorMsg:
			if !tt.wantErr {
				t.Errorf("%v: unexpected error %v", tt.status, got.err)
			}
		case statusMsg:
			if tt.wantErr || string(got) != tt.want {
				t.Errorf("%v: unexpected status %q", tt.status, got)
			}
		default:
			t.Errorf("%v: unexpected message %T", tt.status, msg)
		}
	}
}

func TestPollKeyWithoutPoller(t *testing.T) {
	m := loadedModel(t, &fakeStore{quakes: sampleQuakes()}, nil, nil)
	if _, cmd := m.Update(key("f")); cmd != nil {
		t.Error("expected no command without a poller")
	}
}

func TestSaveSelected(t *testing.T) {
	store := &fakeStore{quakes: sampleQuakes()}

	saver := &fakeSaver{}
	m := loadedModel(t, store, nil, saver)
	_, cmd := m.Update(key("s"))
	if cmd == nil {
		t.Fatal("expected save command")
	}
	if msg := cmd(); msg != statusMsg("Saved to Raindrop.io") {
		t.Errorf("unexpected message %v", msg)
	}
	if len(saver.saved) != 1 || saver.saved[0].ExternalID != "1234" {
		t.Errorf("unexpected saves %v", saver.saved)
	}

	failing := &fakeSaver{err: errors.New("quota exceeded")}
	m = loadedModel(t, store, nil, failing)
	_, cmd = m.Update(key("s"))
	if _, ok := cmd().(errorMsg); !ok {
		t.Error("expected error message from failing saver")
	}

	m = loadedModel(t, store, nil, nil)
	_, cmd = m.Update(key("s"))
	if msg := cmd(); msg != statusMsg("Raindrop.io is not configured") {
		t.Errorf("unexpected message %v", msg)
	}
}

func TestOpenSelected(t *testing.T) {
	var opened []string
	orig := openURL
	openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	defer func() { openURL = orig }()

	m := loadedModel(t, &fakeStore{quakes: sampleQuakes()}, nil, nil)
	_, cmd := m.Update(key("o"))
	if cmd == nil {
		t.Fatal("expected open command")
	}
	if msg := cmd(); msg != statusMsg("Opened in browser") {
		t.Errorf("unexpected message %v", msg)
	}
	if len(opened) != 1 || opened[0] != "http://example.com/1234" {
		t.Errorf("unexpected opened urls %v", opened)
	}
}

func TestDetailKeepsQuakeAcrossReload(t *testing.T) {
	var opened []string
	orig := openURL
	openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	defer func() { openURL = orig }()

	saver := &fakeSaver{}
	m := loadedModel(t, &fakeStore{quakes: sampleQuakes()}, nil, saver)

	next, _ := m.Update(key("enter"))
	m = next.(Model)
	if m.shown == nil || m.shown.ExternalID != "1234" {
		t.Fatalf("expected detail for 1234, got %v", m.shown)
	}

	// a newer quake arrives and takes the cursor position
	newer := models.Quake{Entry: models.Entry{ExternalID: "9999", Title: "Title 9", Link: "http://example.com/9999"}}
	reloaded := append([]models.Quake{newer}, sampleQuakes()...)
	next, _ = m.Update(quakesLoadedMsg{reloaded})
	m = next.(Model)
	if i, ok := m.list.SelectedItem().(quakeItem); !ok || i.quake.ExternalID != "9999" {
		t.Fatalf("expected cursor on 9999 after reload")
	}

	// history for a different quake is ignored
	next, _ = m.Update(historyLoadedMsg{externalID: "9999", events: []models.Event{{ExternalID: "9999"}}})
	m = next.(Model)
	if len(m.history) != 0 {
		t.Errorf("expected history of other quake ignored, got %v", m.history)
	}

	_, cmd := m.Update(key("s"))
	run(cmd)
	if len(saver.saved) != 1 || saver.saved[0].ExternalID != "1234" {
		t.Errorf("expected 1234 saved from detail view, got %v", saver.saved)
	}

	_, cmd = m.Update(key("o"))
	run(cmd)
	if len(opened) != 1 || opened[0] != "http://example.com/1234" {
		t.Errorf("expected 1234 opened from detail view, got %v", opened)
	}

	// back in the list, keys follow the cursor again
	next, _ = m.Update(key("esc"))
	m = next.(Model)
	_, cmd = m.Update(key("s"))
	run(cmd)
	if len(saver.saved) != 2 || saver.saved[1].ExternalID != "9999" {
		t.Errorf("expected 9999 saved from list view, got %v", saver.saved)
	}
}

func TestActivityView(t *testing.T) {
	store := &fakeStore{
		quakes: sampleQuakes(),
		events: []models.Event{
			{ID: 2, ExternalID: "2345", Kind: models.EventRemoved, At: time.Date(2018, 9, 29, 9, 0, 0, 0, time.UTC)},
			{ID: 1, ExternalID: "1234", Kind: models.EventGenerated, At: time.Date(2018, 9, 29, 8, 35, 0, 0, time.UTC)},
		},
	}
	m := loadedModel(t, store, nil, nil)

	next, cmd := m.Update(key("a"))
	m = next.(Model)
	if m.view != ViewActivity {
		t.Fatalf("expected activity view, got %v", m.view)
	}
	if !strings.Contains(m.View(), "No feed activity") {
		t.Error("expected empty activity before load")
	}
	for _, msg := range run(cmd) {
		next, _ = m.Update(msg)
		m = next.(Model)
	}
	if len(m.activity) != 2 {
		t.Fatalf("expected 2 events, got %v", m.activity)
	}
	view := m.View()
	for _, want := range []string{"Sep 29 09:00 UTC  removed   2345", "generated 1234"} {
		if !strings.Contains(view, want) {
			t.Errorf("activity view missing %q:\n%s", want, view)
		}
	}

	next, _ = m.Update(key("?"))
	m = next.(Model)
	next, _ = m.Update(key("esc"))
	m = next.(Model)
	if m.view != ViewActivity {
		t.Errorf("expected help to return to activity, got %v", m.view)
	}

	next, _ = m.Update(key("esc"))
	if next.(Model).view != ViewQuakeList {
		t.Error("esc should return to the list")
	}
}
