package raindrop

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

func ptr[T any](v T) *T {
	return &v
}

func sampleQuake() models.Entry {
	return models.Entry{
		ExternalID:     "1234",
		Title:          "Title 1",
		Category:       "Category 1",
		Link:           "http://example.com/1234",
		Published:      ptr(time.Date(2018, 9, 29, 8, 30, 0, 0, time.UTC)),
		DistanceToHome: ptr(4272.4),
		Magnitude:      ptr(4.5),
		Attribution:    "Natural Resources Canada",
	}
}

func TestSaveQuake(t *testing.T) {
	var got RaindropItem
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/raindrop" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Write([]byte(`{"result": true}`))
	}))
	defer server.Close()

	c := NewClient("token", server.URL+"/")
	if err := c.SaveQuake(context.Background(), sampleQuake()); err != nil {
		t.Fatalf("SaveQuake failed: %v", err)
	}

	if got.Link != "http://example.com/1234" || got.Title != "Title 1" {
		t.Errorf("unexpected item: %+v", got)
	}
	if !strings.HasPrefix(got.Excerpt, "M4.5 · 4272 km from home · 2018-09-29 08:30 UTC") {
		t.Errorf("unexpected excerpt %q", got.Excerpt)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "earthquake" || got.Tags[1] != "Category 1" {
		t.Errorf("unexpected tags %v", got.Tags)
	}
}

func TestSaveQuakeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer bad":
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		default:
			w.Write([]byte(`{"result": false}`))
		}
	}))
	defer server.Close()

	if err := NewClient("", server.URL).SaveQuake(context.Background(), sampleQuake()); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}

	noLink := sampleQuake()
	noLink.Link = ""
	if err := NewClient("token", server.URL).SaveQuake(context.Background(), noLink); !errors.Is(err, ErrNoLink) {
		t.Errorf("expected ErrNoLink, got %v", err)
	}

	err := NewClient("bad", server.URL).SaveQuake(context.Background(), sampleQuake())
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected status error, got %v", err)
	}

	if err := NewClient("token", server.URL).SaveQuake(context.Background(), sampleQuake()); err == nil {
		t.Error("expected failure result to be an error")
	}
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"result": true}`))
	}))
	defer server.Close()

	if err := NewClient("token", server.URL).TestConnection(context.Background()); err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if err := NewClient("wrong", server.URL).TestConnection(context.Background()); err == nil {
		t.Error("expected error for bad token")
	}
}

func TestDefaultBaseURL(t *testing.T) {
	if c := NewClient("token", ""); c.baseURL != DefaultBaseURL {
		t.Errorf("expected default base url, got %q", c.baseURL)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt(models.Entry{}); got != "" {
		t.Errorf("expected empty excerpt, got %q", got)
	}
	q := models.Entry{Magnitude: ptr(3.0)}
	if got := Excerpt(q); got != "M3.0" {
		t.Errorf("expected M3.0, got %q", got)
	}
}
