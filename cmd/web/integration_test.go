package main

// Integration tests spin up the full HTTP server with an in-memory database and
// exercise a typical flow: login, callback, organize and export. The Spotify
// side is replaced by in-process fakes so no network access is needed.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"Camelot-Organizer-Go/pkg/db"
	"Camelot-Organizer-Go/pkg/export"
	"Camelot-Organizer-Go/pkg/handlers"
	"Camelot-Organizer-Go/pkg/music"
)

type stubAuth struct{}

func (stubAuth) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (stubAuth) Token(state string, r *http.Request) (*oauth2.Token, error) {
	if r.URL.Query().Get("code") == "" {
		return nil, fmt.Errorf("missing code")
	}
	return &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}, nil
}

type stubLibrary struct {
	music.Library
	tracks  []music.Track
	written []string
}

func (s *stubLibrary) CurrentUser(context.Context) (music.User, error) {
	return music.User{ID: "dj", DisplayName: "DJ"}, nil
}

func (s *stubLibrary) Playlist(_ context.Context, id string) (music.Playlist, error) {
	return music.Playlist{ID: id, Name: "Saturday"}, nil
}

func (s *stubLibrary) PlaylistTracks(context.Context, string) ([]music.Track, error) {
	return s.tracks, nil
}

func (s *stubLibrary) CreatePlaylist(_ context.Context, owner, name, description string) (string, error) {
	return "exported-1", nil
}

func (s *stubLibrary) AddTracks(_ context.Context, id string, uris []string) error {
	s.written = append(s.written, uris...)
	return nil
}

func (s *stubLibrary) PlaylistExists(context.Context, string) (bool, error) {
	return true, nil
}

type stubFeatures map[string]music.Features

func (s stubFeatures) AudioFeatures(_ context.Context, ids []string) ([]music.Features, error) {
	var out []music.Features
	for _, id := range ids {
		if f, ok := s[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// TestIntegrationOrganizeExport logs in, organizes a playlist using cached
// provider analysis and exports it.
func TestIntegrationOrganizeExport(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	lib := &stubLibrary{tracks: []music.Track{
		{ID: "fast", URI: "spotify:track:fast", Name: "Fast"},
		{ID: "slow", URI: "spotify:track:slow", Name: "Slow"},
		{ID: "mystery", URI: "spotify:track:mystery", Name: "Mystery"},
	}}
	features := stubFeatures{
		"fast": {ID: "fast", Tempo: 174, Key: 5, Mode: 0},
		"slow": {ID: "slow", Tempo: 92.4, Key: 0, Mode: 1},
	}
	app := &handlers.Application{
		Auth:     stubAuth{},
		Library:  func(*oauth2.Token) music.Library { return lib },
		Analyzer: newAnalyzer("spotify", features, database),
		DB:       database,
		SignKey:  []byte("integration"),
	}
	srv := httptest.NewServer(app.Routes())
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	res, err := client.Get(srv.URL + "/login")
	if err != nil {
		t.Fatal(err)
	}
	loc, _ := url.Parse(res.Header.Get("Location"))
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("login did not redirect with state")
	}

	res, err = client.Get(srv.URL + "/callback?code=abc&state=" + url.QueryEscape(state))
	if err != nil || res.StatusCode != http.StatusFound {
		t.Fatalf("callback failed %v %d", err, res.StatusCode)
	}

	res, err = client.Get(srv.URL + "/api/organize?playlist_id=sat")
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("organize failed %v %d", err, res.StatusCode)
	}
	var organized struct {
		Groups []struct {
			BPM     int    `json:"bpm"`
			Camelot string `json:"camelot"`
		} `json:"groups"`
	}
	json.NewDecoder(res.Body).Decode(&organized)
	res.Body.Close()
	if len(organized.Groups) != 2 || organized.Groups[0].BPM != 80 || organized.Groups[1].Camelot != "4A" {
		t.Fatalf("unexpected groups %+v", organized.Groups)
	}

	cached, err := database.GetAnalysis(context.Background(), "spotify", []string{"fast", "slow", "mystery"})
	if err != nil || len(cached) != 2 {
		t.Fatalf("expected provider analysis to be cached, got %v %v", cached, err)
	}

	var csrf string
	u, _ := url.Parse(srv.URL)
	for _, c := range jar.Cookies(u) {
		if c.Name == "csrf_token" {
			csrf = c.Value
		}
	}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/export", strings.NewReader(`{"playlist_id":"sat"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	res, err = client.Do(req)
	if err != nil || res.StatusCode != http.StatusCreated {
		t.Fatalf("export failed %v %d", err, res.StatusCode)
	}
	var result export.Result
	json.NewDecoder(res.Body).Decode(&result)
	res.Body.Close()
	if result.Name != "Saturday - Organized" || result.TrackCount != 2 {
		t.Errorf("unexpected export result %+v", result)
	}
	if strings.Join(lib.written, ",") != "spotify:track:slow,spotify:track:fast" {
		t.Errorf("unexpected export order %v", lib.written)
	}

	res, err = client.Get(srv.URL + "/api/exports")
	if err != nil {
		t.Fatal(err)
	}
	var history []db.Export
	json.NewDecoder(res.Body).Decode(&history)
	res.Body.Close()
	if len(history) != 1 || history[0].UserID != "dj" {
		t.Errorf("unexpected history %+v", history)
	}
}
